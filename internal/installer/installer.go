// SPDX-License-Identifier: MPL-2.0

// Package installer resolves the host to a catalog target and makes sure the
// matching prebuilt native module for a release is present locally. A run
// moves through detect, resolve, check, download, verify and place; an
// existing install of the requested version short-circuits after the check.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nativedist/nativedist/pkg/manifest"
	"github.com/nativedist/nativedist/pkg/platform"
	"github.com/nativedist/nativedist/pkg/release"
	"github.com/nativedist/nativedist/pkg/target"
)

const (
	// DefaultAttempts is the download attempt cap.
	DefaultAttempts = 4

	// DefaultBackoff is the wait before the second attempt.
	DefaultBackoff = time.Second

	// DefaultTimeout bounds a single download attempt.
	DefaultTimeout = 60 * time.Second
)

type (
	// Detector reports the tuple of the machine the installer runs on.
	Detector interface {
		DetectHost() (target.HostTuple, error)
	}

	// ReleaseAsset is the remote artifact for one target and version.
	ReleaseAsset struct {
		Target         target.Target
		Version        string
		File           string
		URL            string
		ExpectedSHA256 string // empty when unknown
		ExpectedSize   int64  // 0 when unknown
	}

	// InstalledBinary is the materialized artifact on this machine.
	InstalledBinary struct {
		Path    string
		Target  target.Target
		Version string
		// Satisfied is true when an existing install was reused and nothing was fetched.
		Satisfied bool
	}

	// fileOps holds the filesystem calls of the placement step.
	fileOps struct {
		rename func(oldpath, newpath string) error
		chmod  func(name string, mode os.FileMode) error
	}

	// Installer installs the native module for one project.
	Installer struct {
		dest            string
		module          string
		baseURL         string
		tagPrefix       string
		override        string
		attempts        int
		backoff         time.Duration
		timeout         time.Duration
		requireChecksum bool
		index           *release.Index
		detector        Detector
		httpClient      *http.Client
		userAgent       string
		token           string
		progress        io.Writer
		logger          *log.Logger
		observe         func(State)
		now             func() time.Time
		fs              fileOps
	}

	// Option configures an Installer.
	Option func(*Installer)
)

// WithDest sets the directory the binary is installed into.
func WithDest(dir string) Option { return func(in *Installer) { in.dest = dir } }

// WithModule sets the native module name used in artifact file names.
func WithModule(module string) Option { return func(in *Installer) { in.module = module } }

// WithBaseURL sets the artifact store location; assets live under
// <base>/<tag>/<file>.
func WithBaseURL(u string) Option {
	return func(in *Installer) { in.baseURL = strings.TrimRight(u, "/") }
}

// WithTagPrefix sets the release tag prefix, "v" by default.
func WithTagPrefix(prefix string) Option { return func(in *Installer) { in.tagPrefix = prefix } }

// WithTargetOverride forces a target by canonical name instead of detecting the host.
func WithTargetOverride(name string) Option { return func(in *Installer) { in.override = name } }

// WithAttempts sets the download attempt cap.
func WithAttempts(n int) Option { return func(in *Installer) { in.attempts = n } }

// WithBackoff sets the base wait between download attempts.
func WithBackoff(d time.Duration) Option { return func(in *Installer) { in.backoff = d } }

// WithTimeout bounds each download attempt.
func WithTimeout(d time.Duration) Option { return func(in *Installer) { in.timeout = d } }

// WithRequireChecksum makes a missing published digest an error.
func WithRequireChecksum(require bool) Option {
	return func(in *Installer) { in.requireChecksum = require }
}

// WithIndex supplies a release index (for example the install descriptor
// shipped in the meta package) so digests need not be fetched.
func WithIndex(ix *release.Index) Option { return func(in *Installer) { in.index = ix } }

// WithDetector replaces host detection.
func WithDetector(d Detector) Option { return func(in *Installer) { in.detector = d } }

// WithHTTPClient sets the HTTP client used for the artifact store.
func WithHTTPClient(c *http.Client) Option { return func(in *Installer) { in.httpClient = c } }

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option { return func(in *Installer) { in.userAgent = ua } }

// WithToken sets a bearer token sent to the artifact store host only.
func WithToken(token string) Option { return func(in *Installer) { in.token = token } }

// WithProgress renders a download progress bar on w.
func WithProgress(w io.Writer) Option { return func(in *Installer) { in.progress = w } }

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option { return func(in *Installer) { in.logger = l } }

// WithObserver is called on every state transition.
func WithObserver(fn func(State)) Option { return func(in *Installer) { in.observe = fn } }

// New returns an Installer with defaults applied.
func New(opts ...Option) *Installer {
	in := &Installer{
		dest:       ".",
		module:     target.DefaultModule,
		tagPrefix:  "v",
		attempts:   DefaultAttempts,
		backoff:    DefaultBackoff,
		timeout:    DefaultTimeout,
		detector:   platform.SystemDetector{},
		httpClient: http.DefaultClient,
		userAgent:  "nativedist",
		logger:     log.New(io.Discard),
		now:        time.Now,
		fs:         fileOps{rename: os.Rename, chmod: os.Chmod},
	}
	for _, opt := range opts {
		opt(in)
	}
	in.attempts = max(in.attempts, 1)
	return in
}

// Resolve runs host detection and target resolution only.
func (in *Installer) Resolve() (target.HostTuple, target.Target, error) {
	h, err := in.detectHost()
	if err != nil {
		return target.HostTuple{}, target.Target{}, err
	}
	t, err := target.Resolve(h)
	return h, t, err
}

// detectHost returns the forced target's tuple when an override is set.
func (in *Installer) detectHost() (target.HostTuple, error) {
	if in.override != "" {
		t, err := target.Parse(in.override)
		if err != nil {
			return target.HostTuple{}, fmt.Errorf("target override: %w", err)
		}
		return t.HostTuple(), nil
	}
	h, err := in.detector.DetectHost()
	if err != nil {
		return target.HostTuple{}, fmt.Errorf("detecting host: %w", err)
	}
	return h, nil
}

// Path returns where the binary for t is installed.
func (in *Installer) Path(t target.Target) string {
	return filepath.Join(in.dest, t.ArtifactFor(in.module))
}

// Install makes sure the binary for version is installed. Fatal failures
// leave the canonical path as it was: the previous binary or nothing.
func (in *Installer) Install(ctx context.Context, version string) (_ *InstalledBinary, err error) {
	in.enter(StateStart)
	defer func() {
		if err != nil && !errors.Is(err, target.ErrUnsupportedPlatform) {
			in.enter(StateFailed)
		}
	}()

	v, err := manifest.NormalizeVersion(version)
	if err != nil {
		return nil, err
	}

	in.enter(StateDetectHost)
	host, err := in.detectHost()
	if err != nil {
		return nil, err
	}
	in.enter(StateResolveTarget)
	t, err := target.Resolve(host)
	if err != nil {
		in.enter(StateUnsupported)
		return nil, err
	}
	in.logger.Debug("resolved target", "host", host, "target", t.CanonicalName)

	in.enter(StateCheckLocal)
	final := in.Path(t)
	if satisfied(final, t, v) {
		in.logger.Info("already installed", "path", final, "version", v)
		in.enter(StateSatisfied)
		in.enter(StateDone)
		return &InstalledBinary{Path: final, Target: t, Version: v, Satisfied: true}, nil
	}

	asset, err := in.Asset(ctx, t, v)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(in.dest, 0o755); err != nil {
		return nil, fmt.Errorf("creating install directory: %w", err)
	}

	in.enter(StateDownload)
	tmp, err := in.download(ctx, asset)
	if err != nil {
		return nil, err
	}
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmp)
		}
	}()

	in.enter(StateVerify)
	hash, size, err := verify(tmp, asset)
	if err != nil {
		return nil, err
	}

	in.enter(StatePlace)
	if err := in.fs.rename(tmp, final); err != nil {
		return nil, fmt.Errorf("placing %s: %w", final, err)
	}
	renamed = true
	if t.OS != target.OSWindows {
		if err := in.fs.chmod(final, 0o755); err != nil {
			return nil, &PermissionError{Path: final, Err: err}
		}
	}
	rec := receipt{Target: t.CanonicalName, Version: v, SHA256: hash, Size: size, InstalledAt: in.now().UTC()}
	if err := writeReceipt(receiptPath(final), rec); err != nil {
		return nil, fmt.Errorf("writing install receipt: %w", err)
	}

	in.logger.Info("installed", "path", final, "target", t.CanonicalName, "version", v)
	in.enter(StateSatisfied)
	in.enter(StateDone)
	return &InstalledBinary{Path: final, Target: t, Version: v}, nil
}

// Asset computes the release asset for t at version, with the digest and
// size when the release publishes them.
func (in *Installer) Asset(ctx context.Context, t target.Target, version string) (ReleaseAsset, error) {
	if in.baseURL == "" {
		return ReleaseAsset{}, errors.New("no artifact store configured (set NATIVEDIST_BASE_URL or install.base_url)")
	}
	file := t.ArtifactFor(in.module)
	asset := ReleaseAsset{
		Target:  t,
		Version: version,
		File:    file,
		URL:     AssetURL(in.baseURL, in.tagPrefix, version, file),
	}
	exp, source := in.expectation(ctx, t, version, file)
	asset.ExpectedSHA256, asset.ExpectedSize = exp.SHA256, exp.Size
	if asset.ExpectedSHA256 == "" && in.requireChecksum {
		return ReleaseAsset{}, fmt.Errorf("no published checksum for %s", file)
	}
	in.logger.Debug("release asset", "url", redactURL(asset.URL), "sha256", asset.ExpectedSHA256, "source", source)
	return asset, nil
}

func (in *Installer) enter(s State) {
	in.logger.Debug("installer", "state", s)
	if in.observe != nil {
		in.observe(s)
	}
}

// verify checks size then digest, when known.
func verify(path string, asset ReleaseAsset) (hash string, size int64, err error) {
	hash, size, err = release.ComputeFileHash(path)
	if err != nil {
		return "", 0, err
	}
	file := asset.File
	if asset.ExpectedSize > 0 && size != asset.ExpectedSize {
		return "", 0, &ChecksumError{Filename: file, ExpectedSize: asset.ExpectedSize, GotSize: size, Expected: asset.ExpectedSHA256, Got: hash}
	}
	if asset.ExpectedSHA256 != "" && !strings.EqualFold(hash, asset.ExpectedSHA256) {
		return "", 0, &ChecksumError{Filename: file, Expected: strings.ToLower(asset.ExpectedSHA256), Got: hash, ExpectedSize: asset.ExpectedSize, GotSize: size}
	}
	return hash, size, nil
}
