// SPDX-License-Identifier: MPL-2.0

package release

import (
	"bufio"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
)

// ChecksumsFileName is the name of the checksums asset in a release.
const ChecksumsFileName = "checksums.txt"

var (
	// ErrAssetNotFound indicates the requested file was not listed.
	ErrAssetNotFound = errors.New("asset not found in checksums")

	// errNoValidEntries indicates the checksums file contained no parseable entries.
	errNoValidEntries = errors.New("no valid checksum entries found")
)

// ChecksumEntry represents a SHA256 checksum for a release asset.
type ChecksumEntry struct {
	Hash     string // Hex-encoded SHA256 hash (64 characters)
	Filename string // Asset filename this hash applies to
}

// ParseChecksums parses a checksums.txt file in the standard sha256sum output format.
// Each line is expected to be "{sha256_hex}  {filename}" (two spaces between hash
// and filename; a leading '*' on the filename marks binary mode and is dropped).
// Lines that don't match are skipped. Returns an error if no valid entries are found.
func ParseChecksums(r io.Reader) ([]ChecksumEntry, error) {
	var entries []ChecksumEntry

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		hash, filename, ok := strings.Cut(line, "  ")
		if !ok {
			hash, filename, ok = strings.Cut(line, " *")
		}
		if !ok {
			continue
		}
		filename = strings.TrimPrefix(strings.TrimSpace(filename), "*")

		if filename == "" || !IsValidHexHash(hash) {
			continue
		}

		entries = append(entries, ChecksumEntry{
			Hash:     strings.ToLower(hash),
			Filename: filename,
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading checksums: %w", err)
	}

	if len(entries) == 0 {
		return nil, errNoValidEntries
	}

	return entries, nil
}

// FindChecksum searches entries for the given filename and returns its hash.
func FindChecksum(entries []ChecksumEntry, filename string) (string, error) {
	for _, e := range entries {
		if e.Filename == filename {
			return e.Hash, nil
		}
	}
	return "", fmt.Errorf("%s: %w", filename, ErrAssetNotFound)
}

// WriteChecksums writes entries in sha256sum format, sorted by file name.
func WriteChecksums(w io.Writer, entries []ChecksumEntry) error {
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b ChecksumEntry) int { return cmp.Compare(a.Filename, b.Filename) })
	for _, e := range sorted {
		if _, err := fmt.Fprintf(w, "%s  %s\n", e.Hash, e.Filename); err != nil {
			return err
		}
	}
	return nil
}

// ComputeFileHash returns the lowercase hex SHA256 digest and size of the file
// at path, streaming it through the hash.
func ComputeFileHash(path string) (hash string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		// Read-only file handle; close errors are exotic (NFS edge cases).
		_ = f.Close()
	}()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hashing file %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// IsValidHexHash checks if s is a valid 64-character hex-encoded SHA256 hash.
func IsValidHexHash(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}
