// SPDX-License-Identifier: MPL-2.0

package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/jsonc"

	"github.com/nativedist/nativedist/pkg/target"
)

// FileName is the manifest file name inside a package.
const FileName = "package.json"

// ErrInvalidManifest is returned when a manifest fails schema validation.
var ErrInvalidManifest = errors.New("invalid manifest")

//go:embed manifest.schema.json
var schemaSource string

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return jsonschema.CompileString("manifest.schema.json", schemaSource)
})

// knownKeys are the fields Manifest models, in the order they are written.
var knownKeys = []string{
	"name", "version", "description", "os", "cpu", "libc",
	"main", "types", "files", "scripts", "license", "optionalDependencies",
}

// Manifest is a package.json document.
type Manifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version,omitempty"`
	Description          string            `json:"description,omitempty"`
	OS                   []string          `json:"os,omitempty"`
	CPU                  []string          `json:"cpu,omitempty"`
	Libc                 []string          `json:"libc,omitempty"`
	Main                 string            `json:"main,omitempty"`
	Types                string            `json:"types,omitempty"`
	Files                []string          `json:"files,omitempty"`
	Scripts              map[string]string `json:"scripts,omitempty"`
	License              string            `json:"license,omitempty"`
	OptionalDependencies map[string]string `json:"optionalDependencies,omitempty"`

	// extra holds fields not modeled above, preserved on write.
	extra map[string]json.RawMessage
}

// Parse decodes a JSONC manifest and validates it against the schema.
func Parse(data []byte) (*Manifest, error) {
	stripped := jsonc.ToJSON(data)

	var doc any
	if err := json.Unmarshal(stripped, &doc); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compiling manifest schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}

	var m Manifest
	if err := json.Unmarshal(stripped, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(stripped, &all); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	for _, k := range knownKeys {
		delete(all, k)
	}
	if len(all) > 0 {
		m.extra = all
	}
	return &m, nil
}

// ReadFile reads and parses a manifest from disk.
func ReadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Clone returns a deep copy.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.OS = slices.Clone(m.OS)
	c.CPU = slices.Clone(m.CPU)
	c.Libc = slices.Clone(m.Libc)
	c.Files = slices.Clone(m.Files)
	c.Scripts = maps.Clone(m.Scripts)
	c.OptionalDependencies = maps.Clone(m.OptionalDependencies)
	c.extra = maps.Clone(m.extra)
	return &c
}

// Stamp sets the version after validating it.
func (m *Manifest) Stamp(version string) error {
	v, err := NormalizeVersion(version)
	if err != nil {
		return err
	}
	m.Version = v
	return nil
}

// ApplyTarget sets the platform constraints and file list for a per-target
// package whose only payload is artifact.
func (m *Manifest) ApplyTarget(t target.Target, artifact string) {
	m.OS = []string{string(t.OS)}
	m.CPU = []string{string(t.Arch)}
	m.Libc = nil
	if t.Libc != target.LibcNone {
		m.Libc = []string{string(t.Libc)}
	}
	m.Main = artifact
	m.Files = []string{artifact}
}

// SetScript sets a lifecycle script such as "postinstall".
func (m *Manifest) SetScript(name, command string) {
	if m.Scripts == nil {
		m.Scripts = make(map[string]string, 1)
	}
	m.Scripts[name] = command
}

// Extra returns a preserved unmodeled field.
func (m *Manifest) Extra(key string) (json.RawMessage, bool) {
	v, ok := m.extra[key]
	return v, ok
}

// Marshal encodes the manifest with modeled fields first, in a fixed order,
// followed by preserved fields sorted by key.
func (m *Manifest) Marshal() ([]byte, error) {
	modeled, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(modeled, &fields); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString("{\n")
	first := true
	write := func(k string, v json.RawMessage) error {
		if !first {
			buf.WriteString(",\n")
		}
		first = false
		key, _ := json.Marshal(k)
		var val bytes.Buffer
		if err := json.Indent(&val, v, "  ", "  "); err != nil {
			return err
		}
		fmt.Fprintf(&buf, "  %s: %s", key, val.Bytes())
		return nil
	}
	for _, k := range knownKeys {
		if v, ok := fields[k]; ok {
			if err := write(k, v); err != nil {
				return nil, err
			}
		}
	}
	for _, k := range slices.Sorted(maps.Keys(m.extra)) {
		if err := write(k, m.extra[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteString("\n}\n")
	return buf.Bytes(), nil
}

// WriteFile writes the manifest atomically (temp file + rename).
func (m *Manifest) WriteFile(path string) error {
	data, err := m.Marshal()
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".manifest-*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
