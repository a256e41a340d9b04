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

// Package impl is the implementation of a tool which totals the memory
// footprints of ELF files.
package impl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/bits"

	"github.com/golang/glog"
	"github.com/seL4/util-libs/internal/footprint"
)

// ErrOverflow is returned when the total does not fit in 64 bits.
var ErrOverflow = errors.New("total footprint overflows 64 bits")

// SiftOpts encapsulates parameters for the elf_sift Main below.
type SiftOpts struct {
	// Files are the ELF objects to measure.
	Files []string
	// Align rounds each file's footprint, and the total, up to a page.
	Align bool
	// Reserve is added to the total.
	Reserve uint64
	// Output receives the total in decimal.
	Output io.Writer
}

// Main is the entrypoint for the implementation of elf_sift.
func Main(ctx context.Context, opts SiftOpts) error {
	total, err := Total(ctx, opts.Files, opts.Align, opts.Reserve)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(opts.Output, total); err != nil {
		return fmt.Errorf("failed to write total: %w", err)
	}
	return nil
}

// Total returns reserve plus the memory footprints of files.
func Total(ctx context.Context, files []string, align bool, reserve uint64) (uint64, error) {
	total := reserve
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := footprint.FileFootprint(f, align)
		if err != nil {
			return 0, fmt.Errorf("failed to size ELF file: %w", err)
		}
		glog.V(1).Infof("%s: 0x%x", f, n)

		var carry uint64
		total, carry = bits.Add64(total, n, 0)
		if carry != 0 {
			return 0, fmt.Errorf("%w after %q", ErrOverflow, f)
		}
	}
	if align {
		a := footprint.AlignedSize(total)
		if a < total {
			return 0, ErrOverflow
		}
		total = a
	}
	return total, nil
}
