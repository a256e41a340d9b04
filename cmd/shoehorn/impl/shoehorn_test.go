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

package impl

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seL4/util-libs/internal/archive"
	"github.com/seL4/util-libs/internal/shoehorn"
	"github.com/seL4/util-libs/internal/testonly"
)

const goodPlatform = `
devices:
  - {start: 0x30000000, end: 0x30400000}
memory:
  - {start: 0, end: 0x10000000}
`

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", p, err)
	}
	return p
}

func TestShoehornMain(t *testing.T) {
	kernel := testonly.ELF(testonly.Load(0xe0000000, 0x2000))
	rootserver := testonly.ELF(testonly.Load(0x400000, 0x3000))

	for _, test := range []struct {
		desc       string
		platform   string
		payload    []byte
		high       bool
		want       string
		wantStatus int
		wantErr    string
	}{
		{
			desc:     "kernel only",
			platform: goodPlatform,
			payload: testonly.BootImage(
				testonly.File{Name: "kernel.elf", Data: kernel},
				testonly.File{Name: "kernel.bin", Data: []byte("checksum")},
			),
			want: "#define IMAGE_START_ADDR 0x402000\n",
		}, {
			desc:     "kernel, dtb and rootserver",
			platform: goodPlatform,
			payload: testonly.BootImage(
				testonly.File{Name: "kernel.elf", Data: kernel},
				testonly.File{Name: "kernel.dtb", Data: []byte("dtb")},
				testonly.File{Name: "sel4test-driver", Data: rootserver},
			),
			want: "#define IMAGE_START_ADDR 0x406000\n",
		}, {
			desc:     "rootservers high",
			platform: goodPlatform,
			payload: testonly.BootImage(
				testonly.File{Name: "kernel.elf", Data: kernel},
				testonly.File{Name: "kernel.dtb", Data: []byte("dtb")},
				testonly.File{Name: "sel4test-driver", Data: rootserver},
			),
			high: true,
			want: "#define IMAGE_START_ADDR 0x3000\n",
		}, {
			desc:     "rootservers high need not be ELF",
			platform: goodPlatform,
			payload: testonly.BootImage(
				testonly.File{Name: "kernel.elf", Data: kernel},
				testonly.File{Name: "config.txt", Data: []byte("console=ttyS0")},
			),
			high: true,
			want: "#define IMAGE_START_ADDR 0x2000\n",
		}, {
			desc:     "does not fit",
			platform: "memory: [{start: 0, end: 0x400000}]",
			payload: testonly.BootImage(
				testonly.File{Name: "kernel.elf", Data: kernel},
			),
			wantStatus: ExitNoFit,
			wantErr:    "does not fit within any available memory region",
		}, {
			desc:     "invalid platform",
			platform: "memory: [{start: 4096, end: 0}]",
			payload: testonly.BootImage(
				testonly.File{Name: "kernel.elf", Data: kernel},
			),
			wantStatus: ExitNoFit,
			wantErr:    "not in strictly increasing order (0 not > 4096)",
		}, {
			desc:       "no archive",
			platform:   goodPlatform,
			payload:    kernel,
			wantStatus: ExitFatal,
			wantErr:    "no CPIO archive found",
		}, {
			desc:     "no kernel",
			platform: goodPlatform,
			payload: testonly.BootImage(
				testonly.File{Name: "sel4test-driver", Data: rootserver},
			),
			wantStatus: ExitFatal,
			wantErr:    "no kernel image in archive",
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			dir := t.TempDir()
			out := &bytes.Buffer{}
			err := Main(context.Background(), ShoehornOpts{
				PlatformFile:        writeFile(t, dir, "platform_gen.yaml", []byte(test.platform)),
				PayloadFile:         writeFile(t, dir, "archive.o", test.payload),
				LoadRootserversHigh: test.high,
				FudgeFactor:         shoehorn.DefaultFudgeFactor,
				Archive:             archive.DefaultOptions,
				Output:              out,
			})
			if got := ExitStatus(err); got != test.wantStatus {
				t.Fatalf("ExitStatus(%v) = %d, want %d", err, got, test.wantStatus)
			}
			if test.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), test.wantErr) {
					t.Fatalf("Main() = %v, want error containing %q", err, test.wantErr)
				}
				if out.Len() != 0 {
					t.Errorf("Main() wrote %q on failure", out)
				}
				return
			}
			if got := out.String(); got != test.want {
				t.Errorf("Main() wrote %q, want %q", got, test.want)
			}
		})
	}
}

func TestMainNoFitReportsImageSize(t *testing.T) {
	dir := t.TempDir()
	img := testonly.BootImage(testonly.File{Name: "kernel.elf", Data: testonly.ELF(testonly.Load(0, 0x1000))})
	err := Main(context.Background(), ShoehornOpts{
		PlatformFile: writeFile(t, dir, "platform_gen.yaml", []byte("memory: [{start: 0, end: 0x1000}]")),
		PayloadFile:  writeFile(t, dir, "archive.o", img),
		FudgeFactor:  shoehorn.DefaultFudgeFactor,
		Archive:      archive.DefaultOptions,
		Output:       &bytes.Buffer{},
	})
	var nf *shoehorn.NoFitError
	if !errors.As(err, &nf) {
		t.Fatalf("Main() = %v, want NoFitError", err)
	}
	if want := fmt.Sprintf("0x%x", len(img)); !strings.Contains(err.Error(), want) {
		t.Errorf("Main() = %q, want it to cite image size %s", err, want)
	}
}

func TestMainCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := &bytes.Buffer{}
	err := Main(ctx, ShoehornOpts{
		PlatformFile: writeFile(t, dir, "platform_gen.yaml", []byte(goodPlatform)),
		PayloadFile:  writeFile(t, dir, "archive.o", testonly.BootImage(testonly.File{Name: "kernel.elf", Data: testonly.ELF(testonly.Load(0, 0x1000))})),
		FudgeFactor:  shoehorn.DefaultFudgeFactor,
		Archive:      archive.DefaultOptions,
		Output:       out,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Main() = %v, want %v", err, context.Canceled)
	}
	if out.Len() != 0 {
		t.Errorf("Main() wrote %q after cancellation", out)
	}
}

func TestMainMissingFiles(t *testing.T) {
	dir := t.TempDir()
	platform := writeFile(t, dir, "platform_gen.yaml", []byte(goodPlatform))
	for _, test := range []struct {
		desc     string
		platform string
		payload  string
	}{
		{desc: "platform", platform: filepath.Join(dir, "nope.yaml"), payload: filepath.Join(dir, "archive.o")},
		{desc: "payload", platform: platform, payload: filepath.Join(dir, "nope.o")},
	} {
		t.Run(test.desc, func(t *testing.T) {
			err := Main(context.Background(), ShoehornOpts{
				PlatformFile: test.platform,
				PayloadFile:  test.payload,
				Archive:      archive.DefaultOptions,
				Output:       &bytes.Buffer{},
			})
			if got := ExitStatus(err); got != ExitFatal {
				t.Errorf("ExitStatus(%v) = %d, want %d", err, got, ExitFatal)
			}
		})
	}
}
