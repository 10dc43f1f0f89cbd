// SPDX-License-Identifier: MPL-2.0

package target

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// DefaultModule is the native module base name used in artifact file names.
	DefaultModule = "edr"

	// ArtifactExt is the file extension of a compiled native module.
	ArtifactExt = "node"

	// OSDarwin is the macOS operating system identifier.
	OSDarwin OS = "darwin"
	// OSLinux is the Linux operating system identifier.
	OSLinux OS = "linux"
	// OSWindows is the Windows operating system identifier (Node.js naming).
	OSWindows OS = "win32"

	// ArchX64 is the 64-bit x86 architecture identifier.
	ArchX64 Arch = "x64"
	// ArchARM64 is the 64-bit ARM architecture identifier.
	ArchARM64 Arch = "arm64"

	// LibcNone is used for operating systems where the C library is not part of the target.
	LibcNone Libc = ""
	// LibcGNU is the GNU C library (glibc).
	LibcGNU Libc = "gnu"
	// LibcMusl is the musl C library.
	LibcMusl Libc = "musl"
)

// Catalog entries. The declaration order is the fixed build order.
const (
	DarwinARM64 ID = iota + 1
	DarwinX64
	LinuxARM64GNU
	LinuxARM64Musl
	LinuxX64GNU
	LinuxX64Musl
	Win32X64
)

var (
	// ErrUnknownTarget is returned when a canonical name or ID is not in the catalog.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrUnsupportedPlatform is returned when a host tuple has no catalog entry.
	ErrUnsupportedPlatform = errors.New("unsupported platform")
)

type (
	// ID identifies one catalog entry. The zero value is not a valid ID.
	ID int

	// OS is an operating system identifier using Node.js platform naming.
	OS string

	// Arch is a CPU architecture identifier using Node.js arch naming.
	Arch string

	// Libc is the C library variant. Only meaningful on Linux.
	Libc string

	// Target is one prebuilt platform. Values are immutable copies of catalog rows.
	Target struct {
		ID               ID
		OS               OS
		Arch             Arch
		Libc             Libc
		CanonicalName    string // os-arch[-libc]
		ArtifactFileName string // <DefaultModule>.<CanonicalName>.<ArtifactExt>
		CompilerTriple   string
	}

	// UnknownTargetError is returned by Parse for names missing from the catalog.
	UnknownTargetError struct {
		Name string
	}
)

// catalog holds one row per ID, indexed by ID-1.
var catalog = [...]Target{
	row(DarwinARM64, OSDarwin, ArchARM64, LibcNone, "aarch64-apple-darwin"),
	row(DarwinX64, OSDarwin, ArchX64, LibcNone, "x86_64-apple-darwin"),
	row(LinuxARM64GNU, OSLinux, ArchARM64, LibcGNU, "aarch64-unknown-linux-gnu"),
	row(LinuxARM64Musl, OSLinux, ArchARM64, LibcMusl, "aarch64-unknown-linux-musl"),
	row(LinuxX64GNU, OSLinux, ArchX64, LibcGNU, "x86_64-unknown-linux-gnu"),
	row(LinuxX64Musl, OSLinux, ArchX64, LibcMusl, "x86_64-unknown-linux-musl"),
	row(Win32X64, OSWindows, ArchX64, LibcNone, "x86_64-pc-windows-msvc"),
}

func row(id ID, os OS, arch Arch, libc Libc, triple string) Target {
	name := canonicalName(os, arch, libc)
	return Target{
		ID:               id,
		OS:               os,
		Arch:             arch,
		Libc:             libc,
		CanonicalName:    name,
		ArtifactFileName: artifactFileName(DefaultModule, name),
		CompilerTriple:   triple,
	}
}

func canonicalName(os OS, arch Arch, libc Libc) string {
	name := string(os) + "-" + string(arch)
	if libc != LibcNone {
		name += "-" + string(libc)
	}
	return name
}

func artifactFileName(module, canonical string) string {
	return module + "." + canonical + "." + ArtifactExt
}

// Error returns a message listing the known target names.
func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q (known targets: %s)", e.Name, strings.Join(Names(), ", "))
}

// Unwrap returns ErrUnknownTarget so callers can use errors.Is.
func (e *UnknownTargetError) Unwrap() error { return ErrUnknownTarget }

// String returns the canonical name of the ID, or "unknown(n)".
func (id ID) String() string {
	if t, ok := Lookup(id); ok {
		return t.CanonicalName
	}
	return fmt.Sprintf("unknown(%d)", int(id))
}

// ArtifactFor returns the artifact file name for a module other than DefaultModule.
func (t Target) ArtifactFor(module string) string {
	if module == "" {
		return t.ArtifactFileName
	}
	return artifactFileName(module, t.CanonicalName)
}

// PackageName returns the per-target package name for the given scope prefix,
// e.g. "@nomicfoundation/edr" -> "@nomicfoundation/edr-linux-x64-gnu".
func (t Target) PackageName(prefix string) string {
	return prefix + "-" + t.CanonicalName
}

// HostTuple returns the host tuple this target is resolved from.
func (t Target) HostTuple() HostTuple {
	return HostTuple{OS: t.OS, Arch: t.Arch, Libc: t.Libc}
}

// String returns the canonical name.
func (t Target) String() string { return t.CanonicalName }

// All returns every catalog target in build order. The slice is a fresh copy.
func All() []Target {
	out := make([]Target, len(catalog))
	copy(out, catalog[:])
	return out
}

// Names returns the canonical names of all catalog targets in build order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for i := range catalog {
		names = append(names, catalog[i].CanonicalName)
	}
	return names
}

// Lookup returns the catalog row for id.
func Lookup(id ID) (Target, bool) {
	if id < 1 || int(id) > len(catalog) {
		return Target{}, false
	}
	return catalog[id-1], true
}

// Parse returns the target whose canonical name is name.
func Parse(name string) (Target, error) {
	name = strings.TrimSpace(name)
	for i := range catalog {
		if catalog[i].CanonicalName == name {
			return catalog[i], nil
		}
	}
	return Target{}, &UnknownTargetError{Name: name}
}

// ParseAll parses a list of canonical names, preserving order and rejecting duplicates.
func ParseAll(names []string) ([]Target, error) {
	seen := make(map[ID]bool, len(names))
	out := make([]Target, 0, len(names))
	for _, n := range names {
		t, err := Parse(n)
		if err != nil {
			return nil, err
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("target %s listed more than once", t.CanonicalName)
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out, nil
}
