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

// Package platform reads and validates the description of a target's physical
// memory regions, and renders it for consumption by the build.
package platform

import (
	"fmt"
	"math"
	"math/big"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MemoryRegion is a half-open [Start, End) range of physical memory.
type MemoryRegion struct {
	Start uint64 `yaml:"start"`
	End   uint64 `yaml:"end"`
}

// Size returns the number of bytes in the region.
func (r MemoryRegion) Size() uint64 {
	return r.End - r.Start
}

// Catalog is a validated, ordered list of disjoint memory regions of
// strictly increasing address.
type Catalog struct {
	regions []MemoryRegion
}

// Len returns the number of regions in the catalog.
func (c Catalog) Len() int {
	return len(c.regions)
}

// Region returns the i'th region in declaration order.
func (c Catalog) Region(i int) MemoryRegion {
	return c.regions[i]
}

// Regions returns a copy of the regions in declaration order.
func (c Catalog) Regions() []MemoryRegion {
	return append([]MemoryRegion(nil), c.regions...)
}

// ValidationError is returned when a memory description is rejected. It
// carries every problem found, in the order they were found.
type ValidationError struct {
	Source   string
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return fmt.Sprintf("file %q: %s", e.Source, e.Problems[0])
	}
	return fmt.Sprintf("file %q has multiple problems: %s", e.Source, strings.Join(e.Problems, "; "))
}

// Diagnostics formats the problems as lines suitable for a build log, each
// identifying the program and the file at fault.
func (e *ValidationError) Diagnostics(program string) []string {
	prefix := fmt.Sprintf("%s: file \"%s\":", program, e.Source)
	if len(e.Problems) == 1 {
		return []string{fmt.Sprintf("%s %s", prefix, e.Problems[0])}
	}
	lines := []string{fmt.Sprintf("%s has multiple problems:", prefix)}
	for _, p := range e.Problems {
		lines = append(lines, fmt.Sprintf("%s\t%s", prefix, p))
	}
	return lines
}

// problems accumulates diagnostics so validation can carry on past the
// first one.
type problems []string

func (p *problems) addf(format string, args ...interface{}) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Load reads and validates the memory description in the YAML file at path.
func Load(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read platform description: %w", err)
	}
	return Parse(data, path)
}

// Parse validates the YAML memory description in data. The source names the
// document in any error returned.
func Parse(data []byte, source string) (Catalog, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Catalog{}, &ValidationError{
			Source:   source,
			Problems: []string{fmt.Sprintf("failed to parse YAML: %v", err)},
		}
	}
	c, ps := Validate(&doc)
	if len(ps) > 0 {
		return Catalog{}, &ValidationError{Source: source, Problems: ps}
	}
	return c, nil
}

// Validate checks that doc holds a well-formed, non-empty list of disjoint
// memory regions ordered by increasing address.
//
// Every problem is reported, not just the first. If there are none the
// returned slice is nil and the catalog holds the regions.
func Validate(doc *yaml.Node) (Catalog, []string) {
	var ps problems

	root := resolve(doc)
	if root != nil && root.Kind == 0 {
		root = nil
	}
	if root != nil && root.Kind == yaml.DocumentNode {
		if len(root.Content) == 0 {
			root = nil
		} else {
			root = resolve(root.Content[0])
		}
	}

	var regions []MemoryRegion
	switch {
	case root == nil || isNull(root):
		ps.addf("no data in file")
	default:
		memory := lookup(root, "memory")
		switch {
		case memory == nil:
			ps.addf(`no description of memory in file (no "memory" key)`)
		case memory.Kind != yaml.SequenceNode:
			ps.addf(`bad description of memory in file ("memory" is not a list)`)
		case len(memory.Content) == 0:
			ps.addf("memory described as empty in file (list is zero-length)")
		default:
			regions = validateRegions(memory.Content, &ps)
		}
	}

	if len(ps) > 0 {
		return Catalog{}, ps
	}
	return Catalog{regions: regions}, nil
}

// validateRegions checks each region's bounds, start then end, against the
// last bound accepted. The initial bound of -1 also rules out negative
// addresses.
func validateRegions(nodes []*yaml.Node, ps *problems) []MemoryRegion {
	last := big.NewInt(-1)
	maxAddr := new(big.Int).SetUint64(math.MaxUint64)

	regions := make([]MemoryRegion, 0, len(nodes))
	for i, n := range nodes {
		n = resolve(n)
		var bounds [2]uint64
		for j, name := range []string{"start", "end"} {
			v := lookup(n, name)
			if v == nil {
				ps.addf("region %d is missing its %s bound", i, name)
				continue
			}
			b, ok := integer(v)
			if !ok {
				ps.addf("region %s \"%s\" is not an integer", name, display(v))
				continue
			}
			if b.Cmp(last) <= 0 {
				ps.addf("region bounds are not in strictly increasing order (%s not > %s)", b, last)
				continue
			}
			if b.Cmp(maxAddr) > 0 {
				ps.addf("region %s \"%s\" does not fit in 64 bits", name, b)
				continue
			}
			last = b
			bounds[j] = b.Uint64()
		}
		regions = append(regions, MemoryRegion{Start: bounds[0], End: bounds[1]})
	}
	return regions
}

// resolve follows alias nodes to their targets.
func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// lookup returns the value stored under key in the mapping n, or nil if n is
// not a mapping or has no such key.
func lookup(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if k := resolve(n.Content[i]); k.Kind == yaml.ScalarNode && k.Value == key {
			return resolve(n.Content[i+1])
		}
	}
	return nil
}

// wideDecimal matches decimal literals too large for the YAML decoder to
// tag as integers; it tags them as floats.
var wideDecimal = regexp.MustCompile(`^[-+]?[0-9]+$`)

// widePrefixed matches hexadecimal, octal and binary literals too large for
// the YAML decoder to tag as integers; it tags them as strings.
var widePrefixed = regexp.MustCompile(`^[-+]?0(?:[xX][0-9a-fA-F]+|[oO][0-7]+|[bB][01]+)$`)

// integer returns the value of n if it is a YAML integer scalar.
func integer(n *yaml.Node) (*big.Int, bool) {
	if n.Kind != yaml.ScalarNode {
		return nil, false
	}
	switch n.ShortTag() {
	case "!!int":
	case "!!float":
		if !wideDecimal.MatchString(n.Value) {
			return nil, false
		}
	case "!!str":
		// Quoted strings are never integers.
		if n.Style != 0 || !widePrefixed.MatchString(n.Value) {
			return nil, false
		}
	default:
		return nil, false
	}
	return new(big.Int).SetString(n.Value, 0)
}

// display renders a non-integer bound for a diagnostic.
func display(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		if isNull(n) {
			return "null"
		}
		return n.Value
	case yaml.SequenceNode:
		return "[...]"
	case yaml.MappingNode:
		return "{...}"
	}
	return n.Value
}
