// SPDX-License-Identifier: MPL-2.0

package platform

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"

	"github.com/nativedist/nativedist/pkg/target"
)

const (
	// muslLoaderGlob matches the musl dynamic loader, e.g. /lib/ld-musl-x86_64.so.1.
	muslLoaderGlob = "lib/ld-musl-*.so.1"

	// lddPath is the glibc/musl ldd script. On musl systems it is a symlink to
	// the musl loader or a script mentioning musl.
	lddPath = "usr/bin/ldd"
)

type (
	// SystemDetector detects the host tuple of the running process.
	// Root is the filesystem root used for the libc probe ("/" when empty).
	SystemDetector struct {
		Root   string
		GOOS   string // defaults to runtime.GOOS
		GOARCH string // defaults to runtime.GOARCH
	}

	// probeFuncs bundles the filesystem lookups used by the libc probe.
	probeFuncs struct {
		glob     func(pattern string) ([]string, error)
		readFile func(name string) ([]byte, error)
	}
)

// osProbe is the production adapter set for detectLibcFrom.
var osProbe = probeFuncs{
	glob:     filepath.Glob,
	readFile: os.ReadFile,
}

// DetectHost reports the host tuple. The C library is only probed on Linux.
func (d SystemDetector) DetectHost() (target.HostTuple, error) {
	goos, goarch := d.GOOS, d.GOARCH
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}

	h := target.HostTuple{
		OS:   OSFromGOOS(goos),
		Arch: ArchFromGOARCH(goarch),
	}
	if h.OS == target.OSLinux {
		root := d.Root
		if root == "" {
			root = "/"
		}
		h.Libc = detectLibcFrom(root, osProbe)
	}
	return h, nil
}

// detectLibcFrom decides between musl and glibc using marker files under root.
// Accepting the lookups as parameters lets tests probe a fake root without
// touching process-wide state. Anything that is not recognizably musl is gnu.
func detectLibcFrom(root string, p probeFuncs) target.Libc {
	if matches, err := p.glob(filepath.Join(root, muslLoaderGlob)); err == nil && len(matches) > 0 {
		return target.LibcMusl
	}
	if data, err := p.readFile(filepath.Join(root, lddPath)); err == nil && bytes.Contains(data, []byte("musl")) {
		return target.LibcMusl
	}
	return target.LibcGNU
}
