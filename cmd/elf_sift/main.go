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

// elf_sift prints the total memory footprint of the loadable segments of the
// ELF files given as arguments.
//
// With --align the space after each file, and the total, is rounded up to the
// next 4KiB boundary.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/seL4/util-libs/cmd/elf_sift/impl"
)

var (
	align   = flag.Bool("align", false, "Align to 4KiB between files")
	reserve = flag.Uint64("reserve", 0, "Number of additional bytes to reserve")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] elf_file...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := impl.Main(context.Background(), impl.SiftOpts{
		Files:   flag.Args(),
		Align:   *align,
		Reserve: *reserve,
		Output:  os.Stdout,
	}); err != nil {
		glog.Exitf("elf_sift: %v", err)
	}
}
