// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nativedist/nativedist/pkg/target"
)

func TestDetectLibcFrom(t *testing.T) {
	t.Parallel()

	notFound := func(string) ([]byte, error) { return nil, os.ErrNotExist }
	noMatches := func(string) ([]string, error) { return nil, nil }

	tests := []struct {
		name  string
		probe probeFuncs
		want  target.Libc
	}{
		{
			name: "musl loader present",
			probe: probeFuncs{
				glob:     func(string) ([]string, error) { return []string{"/lib/ld-musl-x86_64.so.1"}, nil },
				readFile: notFound,
			},
			want: target.LibcMusl,
		},
		{
			name: "ldd mentions musl",
			probe: probeFuncs{
				glob:     noMatches,
				readFile: func(string) ([]byte, error) { return []byte("#!/bin/sh\nexec /lib/ld-musl-aarch64.so.1 --list \"$@\"\n"), nil },
			},
			want: target.LibcMusl,
		},
		{
			name: "glibc ldd",
			probe: probeFuncs{
				glob:     noMatches,
				readFile: func(string) ([]byte, error) { return []byte("#! /bin/bash\n# ldd from GNU libc\n"), nil },
			},
			want: target.LibcGNU,
		},
		{
			name: "nothing readable defaults to gnu",
			probe: probeFuncs{
				glob:     func(string) ([]string, error) { return nil, errors.New("bad pattern") },
				readFile: notFound,
			},
			want: target.LibcGNU,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := detectLibcFrom("/", tt.probe); got != tt.want {
				t.Errorf("detectLibcFrom() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSystemDetectorFakeRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "lib"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "lib", "ld-musl-x86_64.so.1"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	d := SystemDetector{Root: root, GOOS: "linux", GOARCH: "amd64"}
	h, err := d.DetectHost()
	if err != nil {
		t.Fatalf("DetectHost() error = %v", err)
	}
	want := target.HostTuple{OS: target.OSLinux, Arch: target.ArchX64, Libc: target.LibcMusl}
	if h != want {
		t.Errorf("DetectHost() = %v, want %v", h, want)
	}

	got, err := target.Resolve(h)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.ID != target.LinuxX64Musl {
		t.Errorf("Resolve() = %s, want linux-x64-musl", got)
	}
}

func TestSystemDetectorSkipsLibcOffLinux(t *testing.T) {
	t.Parallel()

	d := SystemDetector{Root: t.TempDir(), GOOS: "darwin", GOARCH: "arm64"}
	h, err := d.DetectHost()
	if err != nil {
		t.Fatalf("DetectHost() error = %v", err)
	}
	if h.Libc != target.LibcNone {
		t.Errorf("Libc = %q, want empty off Linux", h.Libc)
	}
	if h.OS != target.OSDarwin || h.Arch != target.ArchARM64 {
		t.Errorf("DetectHost() = %v", h)
	}
}

func TestOSAndArchMapping(t *testing.T) {
	t.Parallel()

	if got := OSFromGOOS("windows"); got != target.OSWindows {
		t.Errorf("OSFromGOOS(windows) = %q", got)
	}
	if got := OSFromGOOS("freebsd"); got != "freebsd" {
		t.Errorf("OSFromGOOS(freebsd) = %q", got)
	}
	if got := ArchFromGOARCH("amd64"); got != target.ArchX64 {
		t.Errorf("ArchFromGOARCH(amd64) = %q", got)
	}
	if got := ArchFromGOARCH("riscv64"); got != "riscv64" {
		t.Errorf("ArchFromGOARCH(riscv64) = %q", got)
	}
}
