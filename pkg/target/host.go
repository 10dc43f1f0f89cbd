// SPDX-License-Identifier: MPL-2.0

package target

import (
	"fmt"
)

type (
	// HostTuple describes a machine: operating system, CPU architecture and,
	// on Linux only, the C library variant in use.
	HostTuple struct {
		OS   OS
		Arch Arch
		Libc Libc
	}

	// UnsupportedPlatformError is returned by Resolve for host tuples without a
	// catalog entry. It is never retryable.
	UnsupportedPlatformError struct {
		Host HostTuple
	}
)

// byHost maps each normalized host tuple to its catalog entry. It is built
// once from the catalog table and checked for collisions.
var byHost = func() map[HostTuple]ID {
	m := make(map[HostTuple]ID, len(catalog))
	for i := range catalog {
		key := catalog[i].HostTuple().Normalize()
		if prev, dup := m[key]; dup {
			panic(fmt.Sprintf("target catalog: %s and %s share host tuple %s", prev, catalog[i].ID, key))
		}
		m[key] = catalog[i].ID
	}
	return m
}()

// Normalize drops the C library variant for operating systems other than Linux.
func (h HostTuple) Normalize() HostTuple {
	if h.OS != OSLinux {
		h.Libc = LibcNone
	}
	return h
}

// String renders the tuple as os/arch[/libc].
func (h HostTuple) String() string {
	s := string(h.OS) + "/" + string(h.Arch)
	if h.Libc != LibcNone {
		s += "/" + string(h.Libc)
	}
	return s
}

// Error returns the unsupported host with a build-from-source hint.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("no prebuilt binary for %s; build the native module from source for this platform", e.Host)
}

// Unwrap returns ErrUnsupportedPlatform so callers can use errors.Is.
func (e *UnsupportedPlatformError) Unwrap() error { return ErrUnsupportedPlatform }

// Resolve maps a host tuple to its catalog target by exact lookup.
func Resolve(h HostTuple) (Target, error) {
	id, ok := byHost[h.Normalize()]
	if !ok {
		return Target{}, &UnsupportedPlatformError{Host: h}
	}
	t, _ := Lookup(id)
	return t, nil
}
