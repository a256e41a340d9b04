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

// Package shoehorn finds a physical load address for an ELF-loader image
// which keeps it clear of the kernel, device tree and rootservers the
// ELF-loader will unpack.
package shoehorn

import (
	"fmt"
	"math/bits"

	"github.com/golang/glog"
	"github.com/seL4/util-libs/internal/archive"
	"github.com/seL4/util-libs/internal/footprint"
	"github.com/seL4/util-libs/platform"
)

// DefaultFudgeFactor is reserved after the rootservers when they are placed
// after the kernel. The sel4test driver uses almost 4MiB more at runtime
// than its ELF segments declare.
const DefaultFudgeFactor = 4 * 1024 * 1024

// Extra is a rootserver packed alongside the kernel.
type Extra struct {
	Name      string
	Footprint uint64
}

// Inputs are the sizes the placement is computed from.
type Inputs struct {
	// ImageSize is the size of the ELF-loader image file.
	ImageSize uint64
	// KernelFootprint is the memory footprint of the kernel's loadable segments.
	KernelFootprint uint64
	// DeviceTreeSize is the size of the device tree blob, or nil if none is packed.
	DeviceTreeSize *uint64
	// Extras are the rootservers in the order the ELF-loader loads them.
	Extras []Extra
	// LoadRootserversHigh indicates the ELF-loader puts the rootservers at the
	// top of memory, so no room is left for them after the kernel.
	LoadRootserversHigh bool
	// FudgeFactor is reserved after the rootservers unless LoadRootserversHigh is set.
	FudgeFactor uint64
}

// Result describes a successful placement.
type Result struct {
	// LoadAddress is the physical address to link the ELF-loader image at.
	LoadAddress uint64
	// Region is the index of the catalog region the image was placed in.
	Region int
	// Notes holds warnings raised while placing the image.
	Notes []string
}

// NoFitError is returned when the image does not fit into any region.
type NoFitError struct {
	ImageSize uint64
}

func (e *NoFitError) Error() string {
	return fmt.Sprintf("ELF-loader image of size 0x%x does not fit within any available memory region", e.ImageSize)
}

// Place returns the load address of the image in the first region of cat,
// in declaration order, in which it fits.
//
// Within a region the kernel is assumed to be loaded at the region's start,
// as the ELF-loader's linker script arranges. The device tree follows the
// kernel, then (unless loaded high) the rootservers and the fudge factor, each
// on a page boundary. The image goes directly after all of them.
func Place(cat platform.Catalog, in Inputs) (Result, error) {
	var notes []string
	n := cat.Len()
	for i := 0; i < n; i++ {
		r := cat.Region(i)
		if in.LoadRootserversHigh && i == n-1 {
			note := fmt.Sprintf(`"--load-rootservers-high" specified but placing ELF-loader in last (or only) region (%d of %d); overlap may not be detected by this tool`, i+1, n)
			glog.Warning(note)
			notes = append(notes, note)
		}

		addr, ok := layout(i, r, in)
		if !ok {
			glog.V(1).Infof("region %d: layout overflows the address space", i)
			continue
		}
		end, carry := bits.Add64(addr, in.ImageSize, 0)
		if carry != 0 || end > r.End {
			glog.V(1).Infof("region %d: image at 0x%x would end at 0x%x, beyond 0x%x", i, addr, end, r.End)
			continue
		}
		glog.V(1).Infof("region %d: image fits at 0x%x", i, addr)
		return Result{LoadAddress: addr, Region: i, Notes: notes}, nil
	}
	return Result{}, &NoFitError{ImageSize: in.ImageSize}
}

// layout returns the first address after everything the ELF-loader places
// ahead of its own image in region r. It returns false if the layout runs
// past the top of the address space.
func layout(i int, r platform.MemoryRegion, in Inputs) (uint64, bool) {
	m := &marker{pos: r.Start, ok: true}
	m.set(fmt.Sprintf("region %d start", i))

	m.advanceAligned(footprint.AlignedSize(in.KernelFootprint))
	m.set("kernel_end")

	if in.DeviceTreeSize != nil {
		m.advanceAligned(*in.DeviceTreeSize)
		m.set("dtb_end")
	}

	if !in.LoadRootserversHigh {
		for _, e := range in.Extras {
			m.advance(footprint.AlignedSize(e.Footprint))
			m.set(fmt.Sprintf("end of %s", e.Name))
		}
		m.advance(footprint.AlignedSize(in.FudgeFactor))
		m.set("end of (aligned) fudge factor")
	}
	return m.pos, m.ok
}

// marker tracks the next free address while laying out a region. Once an
// addition overflows, ok stays false.
type marker struct {
	pos uint64
	ok  bool
}

func (m *marker) advance(n uint64) {
	var carry uint64
	m.pos, carry = bits.Add64(m.pos, n, 0)
	if carry != 0 {
		m.ok = false
	}
}

// advanceAligned moves past n bytes and then up to the next page boundary.
func (m *marker) advanceAligned(n uint64) {
	m.advance(n)
	if a := footprint.AlignedSize(m.pos); a < m.pos {
		m.ok = false
	} else {
		m.pos = a
	}
}

func (m *marker) set(what string) {
	if m.ok {
		glog.V(2).Infof("setting marker to 0x%x (%s)", m.pos, what)
	}
}

// InputsFromPayload measures the members of an unpacked ELF-loader image.
// Rootservers loaded high are not placed after the kernel, so they are
// neither measured nor required to be ELF files.
func InputsFromPayload(p *archive.Payload, imageSize uint64, loadRootserversHigh bool) (Inputs, error) {
	kfp, err := footprint.ImageFootprint(p.Kernel.Data, true)
	if err != nil {
		return Inputs{}, fmt.Errorf("kernel %q: %w", p.Kernel.Name, err)
	}
	if kfp == 0 {
		return Inputs{}, fmt.Errorf("kernel %q has no loadable segments", p.Kernel.Name)
	}

	in := Inputs{
		ImageSize:           imageSize,
		KernelFootprint:     kfp,
		LoadRootserversHigh: loadRootserversHigh,
		FudgeFactor:         DefaultFudgeFactor,
	}
	if p.DeviceTree != nil {
		s := p.DeviceTree.Size
		in.DeviceTreeSize = &s
	}
	if loadRootserversHigh {
		glog.V(1).Infof("skipping %d rootservers loaded high", len(p.Extras))
		return in, nil
	}
	for _, m := range p.Extras {
		fp, err := footprint.ImageFootprint(m.Data, true)
		if err != nil {
			return Inputs{}, fmt.Errorf("payload %q: %w", m.Name, err)
		}
		if fp == 0 {
			glog.Warningf("payload %q has no loadable segments", m.Name)
		}
		in.Extras = append(in.Extras, Extra{Name: m.Name, Footprint: fp})
	}
	return in, nil
}
