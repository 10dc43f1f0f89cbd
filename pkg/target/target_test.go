// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"strings"
	"testing"
)

func TestCatalog_ResolveRoundTrip(t *testing.T) {
	t.Parallel()

	for _, tgt := range All() {
		got, err := Resolve(tgt.HostTuple())
		if err != nil {
			t.Errorf("Resolve(%s) error = %v", tgt.HostTuple(), err)
			continue
		}
		if got != tgt {
			t.Errorf("Resolve(%s) = %s, want %s", tgt.HostTuple(), got, tgt)
		}
	}
}

func TestCatalog_UniqueNamesAndTuples(t *testing.T) {
	t.Parallel()

	names := make(map[string]ID)
	tuples := make(map[HostTuple]ID)
	artifacts := make(map[string]ID)
	for _, tgt := range All() {
		if prev, ok := names[tgt.CanonicalName]; ok {
			t.Errorf("canonical name %q used by %d and %d", tgt.CanonicalName, prev, tgt.ID)
		}
		names[tgt.CanonicalName] = tgt.ID

		key := tgt.HostTuple().Normalize()
		if prev, ok := tuples[key]; ok {
			t.Errorf("host tuple %s maps to both %s and %s", key, prev, tgt.ID)
		}
		tuples[key] = tgt.ID

		if prev, ok := artifacts[tgt.ArtifactFileName]; ok {
			t.Errorf("artifact %q used by %s and %s", tgt.ArtifactFileName, prev, tgt.ID)
		}
		artifacts[tgt.ArtifactFileName] = tgt.ID
	}
}

func TestCatalog_CanonicalNameDerivation(t *testing.T) {
	t.Parallel()

	for _, tgt := range All() {
		want := string(tgt.OS) + "-" + string(tgt.Arch)
		if tgt.Libc != LibcNone {
			want += "-" + string(tgt.Libc)
		}
		if tgt.CanonicalName != want {
			t.Errorf("CanonicalName = %q, want %q", tgt.CanonicalName, want)
		}
		if tgt.Libc != LibcNone && tgt.OS != OSLinux {
			t.Errorf("%s: libc variant set on non-Linux target", tgt)
		}
		if tgt.OS == OSLinux && tgt.Libc == LibcNone {
			t.Errorf("%s: Linux target without libc variant", tgt)
		}
	}
}

func TestArtifactFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id   ID
		want string
	}{
		{DarwinARM64, "edr.darwin-arm64.node"},
		{LinuxX64Musl, "edr.linux-x64-musl.node"},
		{LinuxARM64GNU, "edr.linux-arm64-gnu.node"},
		{Win32X64, "edr.win32-x64.node"},
	}

	for _, tt := range tests {
		tgt, ok := Lookup(tt.id)
		if !ok {
			t.Fatalf("Lookup(%d) not found", tt.id)
		}
		if tgt.ArtifactFileName != tt.want {
			t.Errorf("%s ArtifactFileName = %q, want %q", tgt, tgt.ArtifactFileName, tt.want)
		}
	}

	tgt, _ := Lookup(LinuxX64Musl)
	if got := tgt.ArtifactFor("other"); got != "other.linux-x64-musl.node" {
		t.Errorf("ArtifactFor(other) = %q", got)
	}
	if got := tgt.ArtifactFor(""); got != tgt.ArtifactFileName {
		t.Errorf("ArtifactFor(\"\") = %q, want default", got)
	}
}

func TestResolve_Examples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		host    HostTuple
		want    string
		wantErr bool
	}{
		{name: "linux x64 musl", host: HostTuple{OS: OSLinux, Arch: ArchX64, Libc: LibcMusl}, want: "linux-x64-musl"},
		{name: "linux x64 gnu", host: HostTuple{OS: OSLinux, Arch: ArchX64, Libc: LibcGNU}, want: "linux-x64-gnu"},
		{name: "darwin arm64", host: HostTuple{OS: OSDarwin, Arch: ArchARM64}, want: "darwin-arm64"},
		{name: "darwin ignores libc", host: HostTuple{OS: OSDarwin, Arch: ArchARM64, Libc: LibcMusl}, want: "darwin-arm64"},
		{name: "freebsd arm", host: HostTuple{OS: "freebsd", Arch: "arm"}, wantErr: true},
		{name: "linux without libc", host: HostTuple{OS: OSLinux, Arch: ArchX64}, wantErr: true},
		{name: "windows arm64", host: HostTuple{OS: OSWindows, Arch: ArchARM64}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Resolve(tt.host)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedPlatform) {
					t.Fatalf("Resolve(%s) error = %v, want ErrUnsupportedPlatform", tt.host, err)
				}
				if !strings.Contains(err.Error(), "from source") {
					t.Errorf("error %q lacks build-from-source remediation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve(%s) error = %v", tt.host, err)
			}
			if got.CanonicalName != tt.want {
				t.Errorf("Resolve(%s) = %s, want %s", tt.host, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	got, err := Parse(" linux-arm64-musl ")
	if err != nil {
		t.Fatalf("Parse error = %v", err)
	}
	if got.ID != LinuxARM64Musl {
		t.Errorf("Parse = %s, want linux-arm64-musl", got)
	}

	_, err = Parse("linux-riscv64-gnu")
	if !errors.Is(err, ErrUnknownTarget) {
		t.Fatalf("Parse(unknown) error = %v, want ErrUnknownTarget", err)
	}
}

func TestParseAll(t *testing.T) {
	t.Parallel()

	got, err := ParseAll([]string{"win32-x64", "darwin-x64"})
	if err != nil {
		t.Fatalf("ParseAll error = %v", err)
	}
	if len(got) != 2 || got[0].ID != Win32X64 || got[1].ID != DarwinX64 {
		t.Errorf("ParseAll = %v", got)
	}

	if _, err := ParseAll([]string{"darwin-x64", "darwin-x64"}); err == nil {
		t.Error("ParseAll accepted a duplicate target")
	}
}

func TestLookup_OutOfRange(t *testing.T) {
	t.Parallel()

	for _, id := range []ID{0, -1, ID(len(catalog) + 1)} {
		if _, ok := Lookup(id); ok {
			t.Errorf("Lookup(%d) found a target", id)
		}
	}
	if got := ID(0).String(); got != "unknown(0)" {
		t.Errorf("ID(0).String() = %q", got)
	}
}

func TestPackageName(t *testing.T) {
	t.Parallel()

	tgt, _ := Lookup(LinuxX64GNU)
	if got := tgt.PackageName("@nomicfoundation/edr"); got != "@nomicfoundation/edr-linux-x64-gnu" {
		t.Errorf("PackageName = %q", got)
	}
}
