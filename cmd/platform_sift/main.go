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

// platform_sift validates platform memory descriptions and prints the
// memory regions they describe, either for humans or as C source.
//
// If a file lacks a valid description of memory, or fails to parse, its
// problems are printed to standard error and the exit status is 1. Exit
// status 2 indicates a malformed command line.
//
// With --emit-c-syntax the output declares the length of the region array
// and the array itself using C99 designated initialisers, e.g.
//
//	for (int i = 0; i < num_memory_regions; i++) {
//	    printf("memory region %d: 0x%08lx - 0x%08lx\n",
//	           i, memory_region[i].start, memory_region[i].end);
//	}
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/seL4/util-libs/cmd/platform_sift/impl"
	"github.com/seL4/util-libs/platform"
)

var (
	emitC        = flag.Bool("emit-c-syntax", false, "Emit C syntax instead of human-readable output")
	arraySymbol  = flag.String("array_symbol", platform.DefaultCSymbols.Array, "C identifier for the struct array")
	lengthSymbol = flag.String("array_length_symbol", platform.DefaultCSymbols.ArrayLength, "C identifier for the length of the struct array")
	tagSymbol    = flag.String("structure_tag_symbol", platform.DefaultCSymbols.StructureTag, "C identifier for the structure tag")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] platform_file...\n", os.Args[0])
		flag.PrintDefaults()
	}
	if err := flag.Set("logtostderr", "true"); err != nil {
		glog.Warningf("failed to default logtostderr: %v", err)
	}
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() == 0 {
		flag.Usage()
		glog.Flush()
		os.Exit(2)
	}

	err := impl.Main(context.Background(), impl.SiftOpts{
		Program: os.Args[0],
		Files:   flag.Args(),
		EmitC:   *emitC,
		Symbols: platform.CSymbols{
			Array:        *arraySymbol,
			ArrayLength:  *lengthSymbol,
			StructureTag: *tagSymbol,
		},
		Output:      os.Stdout,
		Diagnostics: os.Stderr,
	})
	if err != nil {
		if !errors.Is(err, impl.ErrInvalid) {
			glog.Errorf("%s: %v", os.Args[0], err)
		}
		glog.Flush()
		os.Exit(1)
	}
}
