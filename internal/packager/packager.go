// SPDX-License-Identifier: MPL-2.0

// Package packager turns staged build artifacts into versioned npm-style
// archives: one per target plus a platform-agnostic meta package, and the
// checksums.txt and release.yaml files published alongside them.
package packager

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nativedist/nativedist/internal/matrix"
	"github.com/nativedist/nativedist/pkg/manifest"
	"github.com/nativedist/nativedist/pkg/release"
	"github.com/nativedist/nativedist/pkg/target"
)

const (
	// DefaultOutDir is the archive output directory, relative to the root.
	DefaultOutDir = "dist"

	// DefaultInstaller is the installer script shipped in the meta package
	// and run by its postinstall hook.
	DefaultInstaller = "install.js"
)

// ErrPackagingFailure is the sentinel for every packaging error.
var ErrPackagingFailure = errors.New("packaging failure")

type (
	// PackagingError describes why a package could not be produced.
	PackagingError struct {
		Package string // package or target name
		Reason  string
		Err     error
	}

	// Archive is one produced .tgz.
	Archive struct {
		Name     string
		Version  string
		Target   *target.Target // nil for the meta package
		Path     string
		SHA256   string
		Size     int64
		Manifest *manifest.Manifest
	}

	// Packager produces archives for one project root.
	Packager struct {
		root          string
		stagingDir    string
		outDir        string
		module        string
		cargoManifest string
		tagPrefix     string
		baseURL       string
		installer     string
		targets       []target.Target
		logger        *log.Logger
		now           func() time.Time
	}

	// Option configures a Packager.
	Option func(*Packager)
)

func (e *PackagingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("packaging %s: %s: %v", e.Package, e.Reason, e.Err)
	}
	return fmt.Sprintf("packaging %s: %s", e.Package, e.Reason)
}

// Unwrap exposes both ErrPackagingFailure and the underlying cause.
func (e *PackagingError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPackagingFailure}
	}
	return []error{ErrPackagingFailure, e.Err}
}

// File returns the archive's base name.
func (a *Archive) File() string { return filepath.Base(a.Path) }

// WithStagingDir sets the staging directory, relative to the root.
func WithStagingDir(dir string) Option {
	return func(p *Packager) { p.stagingDir = dir }
}

// WithOutDir sets where archives and release files are written. Relative
// paths are resolved against the root.
func WithOutDir(dir string) Option {
	return func(p *Packager) { p.outDir = dir }
}

// WithModule sets the native module name used in artifact file names.
func WithModule(module string) Option {
	return func(p *Packager) { p.module = module }
}

// WithCargoManifest sets the Cargo.toml consulted when no version is given.
// Relative paths are resolved against the project root.
func WithCargoManifest(path string) Option {
	return func(p *Packager) { p.cargoManifest = path }
}

// WithTagPrefix sets the prefix of the release tag, "v" by default.
func WithTagPrefix(prefix string) Option {
	return func(p *Packager) { p.tagPrefix = prefix }
}

// WithBaseURL records the artifact store location in release indexes.
func WithBaseURL(u string) Option {
	return func(p *Packager) { p.baseURL = u }
}

// WithInstaller sets the installer script, relative to the root, that the
// meta package ships and runs after installation.
func WithInstaller(path string) Option {
	return func(p *Packager) { p.installer = path }
}

// WithTargets sets the targets the meta package depends on. Defaults to the
// whole catalog.
func WithTargets(targets []target.Target) Option {
	return func(p *Packager) { p.targets = slices.Clone(targets) }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Packager) { p.logger = l }
}

// WithClock overrides the time source used for release index timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Packager) { p.now = now }
}

// New returns a Packager for the project at root.
func New(root string, opts ...Option) (*Packager, error) {
	if root == "" {
		return nil, errors.New("packaging root must be set")
	}
	p := &Packager{
		root:      root,
		module:    target.DefaultModule,
		tagPrefix: "v",
		targets:   target.All(),
		logger:    log.New(io.Discard),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.outDir = cmp.Or(p.outDir, DefaultOutDir)
	if !filepath.IsAbs(p.outDir) {
		p.outDir = filepath.Join(root, p.outDir)
	}
	p.installer = cmp.Or(p.installer, DefaultInstaller)
	p.cargoManifest = cmp.Or(p.cargoManifest, CargoManifestName)
	if !filepath.IsAbs(p.cargoManifest) {
		p.cargoManifest = filepath.Join(root, p.cargoManifest)
	}
	return p, nil
}

// OutDir returns the resolved output directory.
func (p *Packager) OutDir() string { return p.outDir }

// Version returns the normalized release version: version itself when set,
// otherwise the crate version from Cargo.toml.
func (p *Packager) Version(version string) (string, error) {
	if version == "" {
		v, err := CrateVersion(p.cargoManifest)
		if err != nil {
			return "", &PackagingError{Package: "release", Reason: "no version given and none found in Cargo.toml", Err: err}
		}
		version = v
	}
	v, err := manifest.NormalizeVersion(version)
	if err != nil {
		return "", &PackagingError{Package: "release", Reason: "invalid version", Err: err}
	}
	return v, nil
}

// PackageTarget stamps the target's manifest template with version and
// archives it together with the staged artifact.
func (p *Packager) PackageTarget(t target.Target, version string) (*Archive, error) {
	v, err := p.Version(version)
	if err != nil {
		return nil, err
	}

	dir := matrix.StageDir(p.root, p.stagingDir, t)
	artifact := t.ArtifactFor(p.module)
	artifactPath := filepath.Join(dir, artifact)
	tmplPath := filepath.Join(dir, manifest.FileName)

	if _, err := os.Stat(artifactPath); err != nil {
		return nil, &PackagingError{Package: t.CanonicalName, Reason: "staged artifact missing (run build first)", Err: err}
	}
	m, err := manifest.ReadFile(tmplPath)
	if err != nil {
		return nil, &PackagingError{Package: t.CanonicalName, Reason: "manifest template unreadable", Err: err}
	}
	if err := m.Stamp(v); err != nil {
		return nil, &PackagingError{Package: t.CanonicalName, Reason: "stamping version", Err: err}
	}
	m.ApplyTarget(t, artifact)
	if err := m.WriteFile(tmplPath); err != nil {
		return nil, &PackagingError{Package: t.CanonicalName, Reason: "writing stamped manifest", Err: err}
	}

	data, err := m.Marshal()
	if err != nil {
		return nil, &PackagingError{Package: t.CanonicalName, Reason: "encoding manifest", Err: err}
	}
	a, err := p.archive(m, []entry{
		{name: manifest.FileName, data: data},
		{name: artifact, path: artifactPath},
	})
	if err != nil {
		return nil, &PackagingError{Package: m.Name, Reason: "writing archive", Err: err}
	}
	a.Target = &t
	p.logger.Info("packaged", "package", a.Name, "version", v, "archive", a.Path)
	return a, nil
}

// PackageMeta archives the platform-agnostic package: the root manifest
// stamped with version and depending optionally on every per-target package,
// the shared files (paths relative to the root), the installer script wired
// to the postinstall hook, and an install descriptor listing each target's
// artifact digest.
//
// Per-target manifests must already carry version, which holds after
// PackageTarget has run for every target.
func (p *Packager) PackageMeta(version string, shared []string) (*Archive, error) {
	v, err := p.Version(version)
	if err != nil {
		return nil, err
	}
	return p.packageMeta(v, shared, p.targets)
}

func (p *Packager) packageMeta(v string, shared []string, targets []target.Target) (*Archive, error) {
	tmplPath := filepath.Join(p.root, manifest.FileName)
	m, err := manifest.ReadFile(tmplPath)
	if err != nil {
		return nil, &PackagingError{Package: "meta", Reason: "manifest template unreadable", Err: err}
	}
	if err := m.Stamp(v); err != nil {
		return nil, &PackagingError{Package: "meta", Reason: "stamping version", Err: err}
	}

	owners := map[string]string{m.Name: "meta package"}
	deps := make(map[string]string, len(targets))
	descriptor := &release.Index{
		Schema:  release.IndexSchemaVersion,
		Module:  p.module,
		Version: v,
		Tag:     manifest.TagFor(p.tagPrefix, v),
		BaseURL: p.baseURL,
	}
	for _, t := range targets {
		dir := matrix.StageDir(p.root, p.stagingDir, t)
		tm, err := manifest.ReadFile(filepath.Join(dir, manifest.FileName))
		if err != nil {
			return nil, &PackagingError{Package: t.CanonicalName, Reason: "per-target manifest unreadable", Err: err}
		}
		if tm.Version != v {
			return nil, &PackagingError{
				Package: tm.Name,
				Reason:  fmt.Sprintf("version %q diverges from release version %q (package the target first)", tm.Version, v),
			}
		}
		if prev, dup := owners[tm.Name]; dup {
			return nil, &PackagingError{Package: tm.Name, Reason: fmt.Sprintf("name used by both %s and %s", prev, t.CanonicalName)}
		}
		owners[tm.Name] = t.CanonicalName
		deps[tm.Name] = v

		artifact := t.ArtifactFor(p.module)
		hash, size, err := release.ComputeFileHash(filepath.Join(dir, artifact))
		if err != nil {
			return nil, &PackagingError{Package: t.CanonicalName, Reason: "staged artifact missing", Err: err}
		}
		descriptor.Assets = append(descriptor.Assets, release.Asset{
			Target: t.CanonicalName,
			File:   artifact,
			SHA256: hash,
			Size:   size,
		})
	}

	if m.OptionalDependencies == nil {
		m.OptionalDependencies = make(map[string]string, len(deps))
	}
	for name, dv := range deps {
		m.OptionalDependencies[name] = dv
	}

	script, err := sharedPath(p.installer)
	if err != nil {
		return nil, &PackagingError{Package: m.Name, Reason: "invalid installer script", Err: err}
	}
	scriptSrc := filepath.Join(p.root, filepath.FromSlash(script))
	if _, err := os.Stat(scriptSrc); err != nil {
		return nil, &PackagingError{Package: m.Name, Reason: "installer script missing", Err: err}
	}
	m.SetScript("postinstall", "node "+script)

	entries := make([]entry, 0, len(shared)+3)
	files := slices.Clone(m.Files)
	for _, rel := range shared {
		clean, err := sharedPath(rel)
		if err != nil {
			return nil, &PackagingError{Package: m.Name, Reason: "invalid shared file", Err: err}
		}
		if clean == script {
			continue
		}
		src := filepath.Join(p.root, filepath.FromSlash(clean))
		if _, err := os.Stat(src); err != nil {
			return nil, &PackagingError{Package: m.Name, Reason: "shared file missing", Err: err}
		}
		entries = append(entries, entry{name: clean, path: src})
		files = append(files, clean)
	}
	entries = append(entries, entry{name: script, path: scriptSrc})
	files = append(files, script)
	files = append(files, release.DescriptorFileName)
	slices.Sort(files)
	m.Files = slices.Compact(files)

	desc, err := descriptor.Marshal()
	if err != nil {
		return nil, &PackagingError{Package: m.Name, Reason: "encoding install descriptor", Err: err}
	}
	if err := m.WriteFile(tmplPath); err != nil {
		return nil, &PackagingError{Package: m.Name, Reason: "writing stamped manifest", Err: err}
	}
	data, err := m.Marshal()
	if err != nil {
		return nil, &PackagingError{Package: m.Name, Reason: "encoding manifest", Err: err}
	}
	entries = append([]entry{{name: manifest.FileName, data: data}}, entries...)
	entries = append(entries, entry{name: release.DescriptorFileName, data: desc})

	a, err := p.archive(m, entries)
	if err != nil {
		return nil, &PackagingError{Package: m.Name, Reason: "writing archive", Err: err}
	}
	p.logger.Info("packaged meta", "package", a.Name, "version", v, "targets", len(targets), "archive", a.Path)
	return a, nil
}

func (p *Packager) archive(m *manifest.Manifest, entries []entry) (*Archive, error) {
	if err := os.MkdirAll(p.outDir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(p.outDir, ArchiveFileName(m.Name, m.Version))
	hash, size, err := writeTgz(path, entries)
	if err != nil {
		return nil, err
	}
	return &Archive{
		Name:     m.Name,
		Version:  m.Version,
		Path:     path,
		SHA256:   hash,
		Size:     size,
		Manifest: m.Clone(),
	}, nil
}

// ArchiveFileName follows npm pack naming: "@scope/name" at 1.2.3 becomes
// "scope-name-1.2.3.tgz".
func ArchiveFileName(name, version string) string {
	n := strings.ReplaceAll(strings.TrimPrefix(name, "@"), "/", "-")
	return n + "-" + version + ".tgz"
}

// sharedPath validates a root-relative path and returns it in slash form.
func sharedPath(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", fmt.Errorf("%q must be a path relative to the project root", rel)
	}
	clean := filepath.ToSlash(filepath.Clean(rel))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%q escapes the project root", rel)
	}
	if clean == manifest.FileName || clean == release.DescriptorFileName {
		return "", fmt.Errorf("%q is generated and cannot be shared", rel)
	}
	return clean, nil
}
