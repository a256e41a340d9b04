// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package impl is the implementation of a tool which validates platform
// memory descriptions and reports the regions they describe.
package impl

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/seL4/util-libs/platform"
)

// ErrInvalid is returned when at least one file could not be reported on.
var ErrInvalid = errors.New("invalid platform description")

// SiftOpts encapsulates parameters for the platform_sift Main below.
type SiftOpts struct {
	// Program prefixes diagnostics and names the generator in C output.
	Program string
	// Files are the platform descriptions to report on, in order.
	Files []string
	// EmitC selects the C fragment instead of the human-readable report.
	EmitC bool
	// Symbols names the identifiers in the C fragment.
	Symbols platform.CSymbols
	// Output receives one report per valid file.
	Output io.Writer
	// Diagnostics receives one line per problem found.
	Diagnostics io.Writer
}

// Main is the entrypoint for the implementation of platform_sift. Every file
// is processed even if an earlier one is invalid; the reports of valid files
// are written in order and ErrInvalid is returned if any file failed.
func Main(ctx context.Context, opts SiftOpts) error {
	bad := 0
	for _, f := range opts.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := sift(f, opts)
		if err != nil {
			return err
		}
		if !ok {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%w: %d of %d files", ErrInvalid, bad, len(opts.Files))
	}
	return nil
}

// sift reports on one platform file, returning false if it is invalid.
func sift(file string, opts SiftOpts) (bool, error) {
	c, err := platform.Load(file)
	if err != nil {
		var verr *platform.ValidationError
		if errors.As(err, &verr) {
			for _, l := range verr.Diagnostics(opts.Program) {
				fmt.Fprintln(opts.Diagnostics, l)
			}
		} else {
			fmt.Fprintf(opts.Diagnostics, "%s: file \"%s\": %v\n", opts.Program, file, err)
		}
		return false, nil
	}
	glog.V(1).Infof("%q: %d memory regions", file, c.Len())

	report := c.Report()
	if opts.EmitC {
		report = c.CReport(opts.Program, opts.Symbols)
	}
	if _, err := fmt.Fprintln(opts.Output, report); err != nil {
		return false, fmt.Errorf("failed to write report: %w", err)
	}
	return true, nil
}
