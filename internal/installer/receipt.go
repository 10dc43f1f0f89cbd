// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nativedist/nativedist/pkg/release"
	"github.com/nativedist/nativedist/pkg/target"
)

// receipt records what was installed next to the binary.
type receipt struct {
	Target      string    `json:"target"`
	Version     string    `json:"version"`
	SHA256      string    `json:"sha256"`
	Size        int64     `json:"size"`
	InstalledAt time.Time `json:"installed_at"`
}

// receiptPath returns ".<artifact>.receipt.json" beside the binary.
func receiptPath(binary string) string {
	return filepath.Join(filepath.Dir(binary), "."+filepath.Base(binary)+".receipt.json")
}

func readReceipt(path string) (receipt, error) {
	var r receipt
	data, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	err = json.Unmarshal(data, &r)
	return r, err
}

// writeReceipt writes the receipt through a temp file and rename.
func writeReceipt(path string, r receipt) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".receipt-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }() // no-op after a successful rename
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// satisfied reports whether binary already holds version for t: the receipt
// matches and the bytes on disk hash to the recorded digest. A binary replaced
// after the receipt was written (a failed or interrupted upgrade) never matches.
func satisfied(binary string, t target.Target, version string) bool {
	r, err := readReceipt(receiptPath(binary))
	if err != nil || r.Version != version || r.Target != t.CanonicalName || r.SHA256 == "" {
		return false
	}
	info, err := os.Stat(binary)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if r.Size != 0 && info.Size() != r.Size {
		return false
	}
	hash, _, err := release.ComputeFileHash(binary)
	return err == nil && strings.EqualFold(hash, r.SHA256)
}
