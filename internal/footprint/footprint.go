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

// Package footprint measures how much physical memory an ELF object occupies
// once its loadable segments are resident.
package footprint

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"os"
)

// PageSize is the granularity the ELF-loader places objects at.
const PageSize = 4096

// Segment is the subset of an ELF program header needed to size an image.
type Segment struct {
	Type  elf.ProgType
	Vaddr uint64
	Memsz uint64
}

// AlignedSize returns the smallest multiple of PageSize not less than n.
// Values which are already a multiple of PageSize are returned unchanged.
func AlignedSize(n uint64) uint64 {
	if r := n % PageSize; r != 0 {
		return n + (PageSize - r)
	}
	return n
}

// MemoryFootprint returns the span of memory covered by the PT_LOAD segments
// in segs, i.e. the highest segment end minus the lowest segment start.
// Gaps between segments are counted since the loader maps the image as one
// contiguous block. If there are no loadable segments the footprint is 0.
func MemoryFootprint(segs []Segment, align bool) uint64 {
	var lo, hi uint64
	found := false
	for _, s := range segs {
		if s.Type != elf.PT_LOAD {
			continue
		}
		end := s.Vaddr + s.Memsz
		if !found || s.Vaddr < lo {
			lo = s.Vaddr
		}
		if !found || end > hi {
			hi = end
		}
		found = true
	}
	if !found {
		return 0
	}
	if align {
		return AlignedSize(hi - lo)
	}
	return hi - lo
}

// Segments reads the program header table of the ELF object in r.
func Segments(r io.ReaderAt) ([]Segment, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ELF: %w", err)
	}
	defer f.Close()

	segs := make([]Segment, 0, len(f.Progs))
	for _, p := range f.Progs {
		segs = append(segs, Segment{
			Type:  p.Type,
			Vaddr: p.Vaddr,
			Memsz: p.Memsz,
		})
	}
	return segs, nil
}

// ImageFootprint returns the memory footprint of the ELF image held in img.
func ImageFootprint(img []byte, align bool) (uint64, error) {
	segs, err := Segments(bytes.NewReader(img))
	if err != nil {
		return 0, err
	}
	return MemoryFootprint(segs, align), nil
}

// FileFootprint returns the memory footprint of the ELF object at path.
func FileFootprint(path string, align bool) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	segs, err := Segments(f)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", path, err)
	}
	return MemoryFootprint(segs, align), nil
}
