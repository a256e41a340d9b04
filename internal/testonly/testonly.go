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

// Package testonly builds synthetic ELF objects and boot images for tests.
package testonly

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/u-root/u-root/pkg/cpio"
)

// Seg describes one program header of a synthetic ELF object.
type Seg struct {
	Type  elf.ProgType
	Vaddr uint64
	Memsz uint64
}

// Load is shorthand for a PT_LOAD segment.
func Load(vaddr, memsz uint64) Seg {
	return Seg{Type: elf.PT_LOAD, Vaddr: vaddr, Memsz: memsz}
}

// ELF returns a minimal little-endian ELF64 executable carrying only a
// program header table built from segs. Segment contents are empty; only
// the in-memory sizes are recorded.
func ELF(segs ...Seg) []byte {
	const (
		ehsize    = 64
		phentsize = 56
	)
	hdr := elf.Header64{
		Type:      uint16(elf.ET_EXEC),
		Machine:   uint16(elf.EM_AARCH64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phentsize,
		Phnum:     uint16(len(segs)),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	if len(segs) > 0 {
		hdr.Entry = segs[0].Vaddr
	}

	buf := &bytes.Buffer{}
	mustWrite(buf, hdr)
	for _, s := range segs {
		mustWrite(buf, elf.Prog64{
			Type:  uint32(s.Type),
			Flags: uint32(elf.PF_R | elf.PF_X),
			Vaddr: s.Vaddr,
			Paddr: s.Vaddr,
			Memsz: s.Memsz,
			Align: 0x1000,
		})
	}
	return buf.Bytes()
}

func mustWrite(buf *bytes.Buffer, v interface{}) {
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		panic(fmt.Sprintf("binary.Write(%T): %v", v, err))
	}
}

// File is a member of a synthetic archive.
type File struct {
	Name string
	Data []byte
}

// Archive returns a newc CPIO archive holding files, in order, followed by
// the trailer record.
func Archive(files ...File) []byte {
	buf := &bytes.Buffer{}
	w := cpio.Newc.Writer(buf)
	for _, f := range files {
		if err := w.WriteRecord(cpio.StaticFile(f.Name, string(f.Data), 0o644)); err != nil {
			panic(fmt.Sprintf("WriteRecord(%q): %v", f.Name, err))
		}
	}
	if err := cpio.WriteTrailer(w); err != nil {
		panic(fmt.Sprintf("WriteTrailer: %v", err))
	}
	return buf.Bytes()
}

// BootImage returns an ELF-loader image: a loader object followed directly
// by an archive of files.
func BootImage(files ...File) []byte {
	loader := ELF(Load(0x10000, 0x8000))
	return append(loader, Archive(files...)...)
}
