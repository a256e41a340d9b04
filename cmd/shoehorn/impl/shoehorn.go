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

// Package impl is the implementation of a tool which computes the load
// address of an ELF-loader image.
package impl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
	"github.com/seL4/util-libs/internal/archive"
	"github.com/seL4/util-libs/internal/shoehorn"
	"github.com/seL4/util-libs/platform"
)

// Exit statuses reported by the tool.
const (
	ExitOK = 0
	// ExitNoFit covers images which do not fit and rejected platform descriptions.
	ExitNoFit = 1
	// ExitUsage is returned for malformed command lines.
	ExitUsage = 2
	// ExitFatal is returned for unreadable or malformed inputs.
	ExitFatal = 3
)

// ShoehornOpts encapsulates parameters for the shoehorn Main below.
type ShoehornOpts struct {
	// PlatformFile is the YAML description of the platform's memory.
	PlatformFile string
	// PayloadFile is the ELF-loader image, with its archive appended.
	PayloadFile string
	// LoadRootserversHigh indicates the ELF-loader puts the rootservers at
	// the top of memory.
	LoadRootserversHigh bool
	// FudgeFactor is reserved after the rootservers.
	FudgeFactor uint64
	// Archive controls how the image's archive members are classified.
	Archive archive.Options
	// Output receives the generated header.
	Output io.Writer
}

// Main is the entrypoint for the implementation of shoehorn. On success it
// writes a C preprocessor definition of IMAGE_START_ADDR to opts.Output.
func Main(ctx context.Context, opts ShoehornOpts) error {
	cat, err := platform.Load(opts.PlatformFile)
	if err != nil {
		return err
	}
	glog.V(1).Infof("%d memory regions in %q", cat.Len(), opts.PlatformFile)

	fi, err := os.Stat(opts.PayloadFile)
	if err != nil {
		return fmt.Errorf("failed to stat payload: %w", err)
	}
	p, err := archive.UnpackFile(opts.PayloadFile, opts.Archive)
	if err != nil {
		return err
	}

	in, err := shoehorn.InputsFromPayload(p, uint64(fi.Size()), opts.LoadRootserversHigh)
	if err != nil {
		return fmt.Errorf("%q: %w", opts.PayloadFile, err)
	}
	in.FudgeFactor = opts.FudgeFactor

	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := shoehorn.Place(cat, in)
	if err != nil {
		return err
	}
	glog.Infof("Placing %q at 0x%x in region %d", opts.PayloadFile, res.LoadAddress, res.Region)

	if _, err := fmt.Fprintf(opts.Output, "#define IMAGE_START_ADDR 0x%x\n", res.LoadAddress); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// ExitStatus maps an error returned by Main to the process exit status
// build scripts branch on.
func ExitStatus(err error) int {
	var verr *platform.ValidationError
	var nf *shoehorn.NoFitError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &verr), errors.As(err, &nf):
		return ExitNoFit
	default:
		return ExitFatal
	}
}
