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

// shoehorn prints a C header defining the physical address at which an
// ELF-loader image can be loaded without overlapping the kernel, device tree
// and rootservers it unpacks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/seL4/util-libs/cmd/shoehorn/impl"
	"github.com/seL4/util-libs/internal/archive"
	"github.com/seL4/util-libs/internal/shoehorn"
	"github.com/seL4/util-libs/platform"
)

const program = "shoehorn"

var (
	loadRootserversHigh = flag.Bool("load-rootservers-high", false, "Assume the ELF-loader will put rootservers at the top of memory")
	fudgeFactor         = flag.Uint64("fudge_factor", shoehorn.DefaultFudgeFactor, "Bytes to reserve after the rootservers when they follow the kernel")
	kernelName          = flag.String("kernel_name", archive.DefaultOptions.KernelName, "Name of the kernel ELF in the image's archive")
	dtbName             = flag.String("dtb_name", archive.DefaultOptions.DeviceTreeName, "Name of the device tree blob in the image's archive")
	checksumSuffix      = flag.String("checksum_suffix", archive.DefaultOptions.ChecksumSuffix, "Suffix of checksum files in the image's archive, which are not placed")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] platform_file payload_file\n", program)
		flag.PrintDefaults()
	}
	// Diagnostics belong in the build log.
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Warningf("failed to default logtostderr: %v", err)
	}
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() != 2 {
		flag.Usage()
		glog.Flush()
		os.Exit(impl.ExitUsage)
	}

	err := impl.Main(context.Background(), impl.ShoehornOpts{
		PlatformFile:        flag.Arg(0),
		PayloadFile:         flag.Arg(1),
		LoadRootserversHigh: *loadRootserversHigh,
		FudgeFactor:         *fudgeFactor,
		Archive: archive.Options{
			KernelName:     *kernelName,
			DeviceTreeName: *dtbName,
			ChecksumSuffix: *checksumSuffix,
		},
		Output: os.Stdout,
	})
	if err != nil {
		var verr *platform.ValidationError
		if errors.As(err, &verr) {
			for _, l := range verr.Diagnostics(program) {
				fmt.Fprintln(os.Stderr, l)
			}
		} else {
			glog.Errorf("%s: %v", program, err)
		}
		glog.Flush()
		os.Exit(impl.ExitStatus(err))
	}
}
