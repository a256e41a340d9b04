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

package platform

import (
	"fmt"
	"strings"
)

// CSymbols names the C identifiers emitted by CReport.
type CSymbols struct {
	// Array is the identifier of the array of region structures.
	Array string
	// ArrayLength is the identifier of the int holding the array's length.
	ArrayLength string
	// StructureTag is the tag of the region structure type.
	StructureTag string
}

// DefaultCSymbols are the identifiers the ELF-loader sources expect.
var DefaultCSymbols = CSymbols{
	Array:        "memory_region",
	ArrayLength:  "num_memory_regions",
	StructureTag: "memory_region",
}

// Report returns a human-readable, multi-line description of the regions.
// There is no trailing newline.
func (c Catalog) Report() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "number of memory regions: %d\n", len(c.regions))
	for i, r := range c.regions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "region %d:\n\tstart: %d\n\tend: %d", i, r.Start, r.End)
	}
	return b.String()
}

// CReport returns the regions as a C fragment declaring the array length and
// an array of structures with C99 designated initialisers. The fragment is
// bracketed by comments naming generator. There is no trailing newline.
//
// The output is consumed verbatim by the build, so its layout must not change.
func (c Catalog) CReport(generator string, sym CSymbols) string {
	comment := func(tag string) string {
		return fmt.Sprintf("/* generated by %s %s */", generator, tag)
	}
	n := len(c.regions)

	b := &strings.Builder{}
	fmt.Fprintf(b, "%s\nint %s = %d;\n\n", comment("BEGIN"), sym.ArrayLength, n)
	fmt.Fprintf(b, "struct %s {\n    size_t start;\n    size_t end;\n} %s[%d] = {\n", sym.StructureTag, sym.Array, n)
	for i, r := range c.regions {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "\t{ .start = %d, .end = %d },", r.Start, r.End)
	}
	fmt.Fprintf(b, "\n};\n%s", comment("END"))
	return b.String()
}
