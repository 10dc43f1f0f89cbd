// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/nativedist/nativedist/internal/matrix"
	"github.com/nativedist/nativedist/pkg/manifest"
	"github.com/nativedist/nativedist/pkg/release"
	"github.com/nativedist/nativedist/pkg/target"
)

// ReleaseSet is everything Release produced.
type ReleaseSet struct {
	Version       string
	Tag           string
	Packages      []*Archive // per-target, in catalog order
	Meta          *Archive
	Index         *release.Index
	ChecksumsPath string
	IndexPath     string
}

// Release packages every target, then the meta package, then publishes the
// raw artifacts with checksums.txt and release.yaml into the output
// directory. All packages share one version.
func (p *Packager) Release(ctx context.Context, targets []target.Target, version string, shared []string) (*ReleaseSet, error) {
	v, err := p.Version(version)
	if err != nil {
		return nil, err
	}
	set := &ReleaseSet{Version: v, Tag: manifest.TagFor(p.tagPrefix, v)}
	ix := &release.Index{
		Schema:    release.IndexSchemaVersion,
		Module:    p.module,
		Version:   v,
		Tag:       set.Tag,
		BaseURL:   p.baseURL,
		Generated: p.now().UTC(),
	}
	var sums []release.ChecksumEntry

	for _, t := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		a, err := p.PackageTarget(t, v)
		if err != nil {
			return nil, err
		}
		set.Packages = append(set.Packages, a)

		asset, err := p.publishArtifact(t)
		if err != nil {
			return nil, &PackagingError{Package: t.CanonicalName, Reason: "publishing artifact", Err: err}
		}
		ix.Assets = append(ix.Assets, asset)
		sums = append(sums, release.ChecksumEntry{Hash: asset.SHA256, Filename: asset.File})
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	meta, err := p.packageMeta(v, shared, targets)
	if err != nil {
		return nil, err
	}
	set.Meta = meta

	for _, a := range append(slices.Clone(set.Packages), meta) {
		if a.Manifest.Version != v {
			return nil, &PackagingError{Package: a.Name, Reason: fmt.Sprintf("version %q diverges from release version %q", a.Manifest.Version, v)}
		}
		pkg := release.Package{Name: a.Name, File: a.File(), SHA256: a.SHA256, Size: a.Size}
		if a.Target != nil {
			pkg.Target = a.Target.CanonicalName
		}
		ix.Packages = append(ix.Packages, pkg)
		sums = append(sums, release.ChecksumEntry{Hash: a.SHA256, Filename: a.File()})
	}
	set.Index = ix

	var buf bytes.Buffer
	if err := release.WriteChecksums(&buf, sums); err != nil {
		return nil, &PackagingError{Package: "release", Reason: "encoding checksums", Err: err}
	}
	set.ChecksumsPath = filepath.Join(p.outDir, release.ChecksumsFileName)
	if err := writeFileAtomic(set.ChecksumsPath, buf.Bytes()); err != nil {
		return nil, &PackagingError{Package: "release", Reason: "writing checksums", Err: err}
	}

	data, err := ix.Marshal()
	if err != nil {
		return nil, &PackagingError{Package: "release", Reason: "encoding release index", Err: err}
	}
	set.IndexPath = filepath.Join(p.outDir, release.IndexFileName)
	if err := writeFileAtomic(set.IndexPath, data); err != nil {
		return nil, &PackagingError{Package: "release", Reason: "writing release index", Err: err}
	}

	p.logger.Info("release ready", "version", v, "tag", set.Tag, "packages", len(set.Packages)+1, "dir", p.outDir)
	return set, nil
}

// publishArtifact copies the staged artifact of t into the output directory,
// where it is uploaded under its canonical file name.
func (p *Packager) publishArtifact(t target.Target) (release.Asset, error) {
	name := t.ArtifactFor(p.module)
	src := filepath.Join(matrix.StageDir(p.root, p.stagingDir, t), name)
	dst := filepath.Join(p.outDir, name)

	in, err := os.Open(src)
	if err != nil {
		return release.Asset{}, err
	}
	defer in.Close()
	if err := writeAtomic(dst, in); err != nil {
		return release.Asset{}, err
	}
	hash, size, err := release.ComputeFileHash(dst)
	if err != nil {
		return release.Asset{}, err
	}
	return release.Asset{Target: t.CanonicalName, File: name, SHA256: hash, Size: size}, nil
}

func writeFileAtomic(path string, data []byte) error {
	return writeAtomic(path, bytes.NewReader(data))
}

func writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".publish-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath) // no-op after a successful rename
	}()
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
