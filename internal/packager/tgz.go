// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
)

// archivePrefix is the directory every npm package entry lives under.
const archivePrefix = "package/"

// entryModTime is the fixed timestamp npm writes into package tarballs, which
// keeps archives byte-identical across rebuilds of the same inputs.
var entryModTime = time.Date(1985, time.October, 26, 8, 15, 0, 0, time.UTC)

// entry is one archive member, sourced from memory or from a file.
type entry struct {
	name string // slash-separated, relative to the package directory
	data []byte
	path string
}

// writeTgz writes entries to dst atomically and returns the archive digest
// and size.
func writeTgz(dst string, entries []entry) (hash string, size int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".pack-*.tgz")
	if err != nil {
		return "", 0, err
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(0o644); err != nil {
		return "", 0, err
	}

	h := sha256.New()
	zw, err := gzip.NewWriterLevel(io.MultiWriter(tmp, h), gzip.BestCompression)
	if err != nil {
		return "", 0, err
	}
	tw := tar.NewWriter(zw)
	for _, e := range entries {
		if err := writeEntry(tw, e); err != nil {
			return "", 0, fmt.Errorf("adding %s: %w", e.name, err)
		}
	}
	if err := tw.Close(); err != nil {
		return "", 0, err
	}
	if err := zw.Close(); err != nil {
		return "", 0, err
	}
	info, err := tmp.Stat()
	if err != nil {
		return "", 0, err
	}
	if err := tmp.Close(); err != nil {
		return "", 0, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return "", 0, err
	}
	renamed = true
	return hex.EncodeToString(h.Sum(nil)), info.Size(), nil
}

func writeEntry(tw *tar.Writer, e entry) error {
	var r io.Reader
	size := int64(len(e.data))
	if e.path != "" {
		f, err := os.Open(e.path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return fmt.Errorf("%s is not a regular file", e.path)
		}
		r, size = f, info.Size()
	} else {
		r = bytes.NewReader(e.data)
	}

	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     archivePrefix + e.name,
		Mode:     0o644,
		Size:     size,
		ModTime:  entryModTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	n, err := io.Copy(tw, r)
	if err != nil {
		return err
	}
	if n != size {
		return fmt.Errorf("%s changed while archiving", e.name)
	}
	return nil
}
