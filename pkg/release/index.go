// SPDX-License-Identifier: MPL-2.0

package release

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nativedist/nativedist/pkg/target"
)

const (
	// IndexFileName is the name of the release index asset.
	IndexFileName = "release.yaml"

	// DescriptorFileName is the index copy shipped inside the meta package so
	// an installer can verify downloads without fetching release.yaml.
	DescriptorFileName = "install.yaml"

	// IndexSchemaVersion is bumped on incompatible index changes.
	IndexSchemaVersion = 1
)

type (
	// Index describes one release: every target's artifact plus the packages.
	Index struct {
		Schema    int       `yaml:"schema"`
		Module    string    `yaml:"module"`
		Version   string    `yaml:"version"`
		Tag       string    `yaml:"tag"`
		BaseURL   string    `yaml:"base_url,omitempty"`
		Generated time.Time `yaml:"generated"`
		Assets    []Asset   `yaml:"assets"`
		Packages  []Package `yaml:"packages,omitempty"`
	}

	// Asset is one per-target native artifact.
	Asset struct {
		Target string `yaml:"target"`
		File   string `yaml:"file"`
		SHA256 string `yaml:"sha256"`
		Size   int64  `yaml:"size"`
	}

	// Package is one distributable archive (per-target or meta).
	Package struct {
		Name   string `yaml:"name"`
		Target string `yaml:"target,omitempty"` // empty for the meta package
		File   string `yaml:"file"`
		SHA256 string `yaml:"sha256"`
		Size   int64  `yaml:"size"`
	}
)

// Lookup returns the asset for the target, if the index lists one.
func (ix *Index) Lookup(t target.Target) (Asset, bool) {
	for _, a := range ix.Assets {
		if a.Target == t.CanonicalName {
			return a, true
		}
	}
	return Asset{}, false
}

// Validate checks that every asset names a catalog target once and carries a
// usable digest.
func (ix *Index) Validate() error {
	if ix.Schema != IndexSchemaVersion {
		return fmt.Errorf("unsupported release index schema %d (want %d)", ix.Schema, IndexSchemaVersion)
	}
	seen := make(map[string]bool, len(ix.Assets))
	var errs []error
	for _, a := range ix.Assets {
		if _, err := target.Parse(a.Target); err != nil {
			errs = append(errs, err)
		}
		if seen[a.Target] {
			errs = append(errs, fmt.Errorf("target %s listed twice", a.Target))
		}
		seen[a.Target] = true
		if !IsValidHexHash(a.SHA256) {
			errs = append(errs, fmt.Errorf("asset %s: invalid sha256 %q", a.File, a.SHA256))
		}
		if a.Size < 0 {
			errs = append(errs, fmt.Errorf("asset %s: negative size", a.File))
		}
	}
	return errors.Join(errs...)
}

// ParseIndex decodes and validates a release index.
func ParseIndex(r io.Reader) (*Index, error) {
	var ix Index
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&ix); err != nil {
		return nil, fmt.Errorf("parsing release index: %w", err)
	}
	if err := ix.Validate(); err != nil {
		return nil, fmt.Errorf("invalid release index: %w", err)
	}
	return &ix, nil
}

// Marshal encodes the index as YAML.
func (ix *Index) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(ix); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
