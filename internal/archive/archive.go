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

// Package archive extracts the payloads packed into an ELF-loader image.
//
// The image is an object file with a newc CPIO archive appended to it. The
// archive holds the kernel, optionally a device tree blob, the checksums of
// those files and any further payloads (rootservers) in load order.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/golang/glog"
	"github.com/u-root/u-root/pkg/cpio"
	"github.com/u-root/u-root/pkg/dt"
)

// Magic marks the start of a newc archive header.
const Magic = "070701"

var (
	// ErrNoArchive is returned when no archive header can be found in the image.
	ErrNoArchive = errors.New("no CPIO archive found")
	// ErrNoKernel is returned when the archive does not contain a kernel.
	ErrNoKernel = errors.New("no kernel image in archive")
	// ErrTruncated is returned when the archive ends before its trailer or
	// a member holds fewer bytes than its header declares.
	ErrTruncated = errors.New("truncated CPIO archive")
)

// Options controls how archive members are classified.
type Options struct {
	// KernelName is the name of the kernel ELF member.
	KernelName string
	// DeviceTreeName is the name of the device tree blob member.
	DeviceTreeName string
	// ChecksumSuffix marks members holding checksums, which are never placed.
	ChecksumSuffix string
}

// DefaultOptions matches the archive layout produced by the seL4 build.
var DefaultOptions = Options{
	KernelName:     "kernel.elf",
	DeviceTreeName: "kernel.dtb",
	ChecksumSuffix: ".bin",
}

// Member is a file extracted from the archive.
type Member struct {
	Name string
	// Size is the file size recorded in the archive entry.
	Size uint64
	Data []byte
}

// Payload holds the members of an ELF-loader image sorted by role.
type Payload struct {
	Kernel Member
	// DeviceTree is nil if the image carries no device tree blob.
	DeviceTree *Member
	// Extras are the remaining members in archive order.
	Extras []Member
}

// UnpackFile reads the ELF-loader image at path and unpacks it.
func UnpackFile(path string, opts Options) (*Payload, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	p, err := Unpack(img, opts)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return p, nil
}

// Unpack locates the archive embedded in img and sorts its members.
func Unpack(img []byte, opts Options) (*Payload, error) {
	off := bytes.Index(img, []byte(Magic))
	if off < 0 {
		return nil, ErrNoArchive
	}
	glog.V(1).Infof("archive found at offset 0x%x", off)

	rr := cpio.Newc.Reader(io.NewSectionReader(bytes.NewReader(img), int64(off), int64(len(img)-off)))
	// The EOF wrapper hides whether the stream ended at the trailer or at
	// the end of the image, so read the raw records and look for it.
	if eof, ok := rr.(cpio.EOFReader); ok {
		rr = eof.RecordReader
	}

	p := &Payload{}
	haveKernel := false
	for {
		rec, err := rr.ReadRecord()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: no trailer after offset 0x%x", ErrTruncated, off)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive at offset 0x%x: %w", off, err)
		}
		if rec.Name == cpio.Trailer {
			break
		}
		m, err := readMember(rec)
		if err != nil {
			return nil, err
		}

		switch {
		case m.Name == opts.KernelName:
			glog.V(1).Infof("kernel %q: %d bytes", m.Name, m.Size)
			p.Kernel = m
			haveKernel = true
		case m.Name == opts.DeviceTreeName:
			glog.V(1).Infof("device tree %q: %d bytes", m.Name, m.Size)
			checkDeviceTree(m)
			p.DeviceTree = &m
		case opts.ChecksumSuffix != "" && strings.HasSuffix(m.Name, opts.ChecksumSuffix):
			glog.V(2).Infof("skipping checksum %q", m.Name)
		default:
			glog.V(1).Infof("payload %q: %d bytes", m.Name, m.Size)
			p.Extras = append(p.Extras, m)
		}
	}

	if !haveKernel {
		return nil, fmt.Errorf("%w (looking for %q)", ErrNoKernel, opts.KernelName)
	}
	return p, nil
}

func readMember(rec cpio.Record) (Member, error) {
	name := path.Clean(rec.Name)
	data, err := io.ReadAll(io.NewSectionReader(rec, 0, int64(rec.FileSize)))
	if err != nil {
		return Member{}, fmt.Errorf("failed to read archive member %q: %w", name, err)
	}
	if uint64(len(data)) != rec.FileSize {
		return Member{}, fmt.Errorf("%w: member %q holds %d of %d bytes", ErrTruncated, name, len(data), rec.FileSize)
	}
	return Member{
		Name: name,
		Size: rec.FileSize,
		Data: data,
	}, nil
}

// checkDeviceTree warns about a device tree member which does not look
// sound. The member is placed by its archive size regardless.
func checkDeviceTree(m Member) {
	fdt, err := dt.ReadFDT(bytes.NewReader(m.Data))
	if err != nil {
		glog.Warningf("device tree %q does not parse: %v", m.Name, err)
		return
	}
	if uint64(fdt.Header.TotalSize) > m.Size {
		glog.Warningf("device tree %q claims %d bytes but the archive holds %d", m.Name, fdt.Header.TotalSize, m.Size)
	}
}
