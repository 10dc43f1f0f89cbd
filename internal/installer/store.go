// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/nativedist/nativedist/internal/retry"
	"github.com/nativedist/nativedist/pkg/manifest"
	"github.com/nativedist/nativedist/pkg/release"
	"github.com/nativedist/nativedist/pkg/target"
)

// maxMetadataBytes bounds release.yaml and checksums.txt responses.
const maxMetadataBytes = 1 << 20

type (
	// expectation is what the release publishes about an asset.
	expectation struct {
		SHA256 string
		Size   int64
	}

	// StatusError is an unexpected HTTP status from the artifact store.
	StatusError struct {
		URL        string
		StatusCode int
	}
)

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// AssetURL returns where a release file lives: <base>/<tag>/<file>. It needs
// no server-side lookup.
func AssetURL(baseURL, tagPrefix, version, file string) string {
	return strings.TrimRight(baseURL, "/") + "/" +
		url.PathEscape(manifest.TagFor(tagPrefix, version)) + "/" +
		url.PathEscape(file)
}

// retryableStatus reports whether an HTTP status may succeed on a later attempt.
func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
}

// download fetches asset into a temp file in the install directory, retrying
// transient failures. The caller owns the returned file.
func (in *Installer) download(ctx context.Context, asset ReleaseAsset) (string, error) {
	var (
		tmpPath  string
		status   int
		attempts int
	)
	err := retry.WithBackoff(ctx, in.attempts, in.backoff, func(attempt int) (bool, error) {
		attempts = attempt + 1
		path, code, transient, err := in.fetchOnce(ctx, asset)
		status = code
		if err == nil {
			tmpPath = path
			return false, nil
		}
		transient = transient && ctx.Err() == nil
		in.logger.Warn("download attempt failed",
			"attempt", attempts, "max", in.attempts, "url", redactURL(asset.URL), "retryable", transient, "err", err)
		return transient, err
	})
	if err != nil {
		return "", &DownloadError{URL: redactURL(asset.URL), Attempts: attempts, StatusCode: status, Err: err}
	}
	return tmpPath, nil
}

// fetchOnce runs one bounded download attempt.
func (in *Installer) fetchOnce(ctx context.Context, asset ReleaseAsset) (_ string, status int, transient bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	resp, err := in.doRequest(ctx, asset.URL)
	if err != nil {
		return "", 0, true, err
	}
	defer func() { _ = resp.Body.Close() }() // read-only HTTP response body

	if resp.StatusCode != http.StatusOK {
		return "", resp.StatusCode, retryableStatus(resp.StatusCode),
			&StatusError{URL: redactURL(asset.URL), StatusCode: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(in.dest, "."+asset.File+".download-*")
	if err != nil {
		return "", 0, false, fmt.Errorf("creating temp file: %w", err)
	}

	var w io.Writer = tmp
	if in.progress != nil {
		bar := newProgressBar(in.progress, resp.ContentLength, asset.File)
		defer func() { _ = bar.Finish() }()
		w = io.MultiWriter(tmp, bar)
	}
	n, err := io.Copy(w, resp.Body)
	if err == nil && resp.ContentLength >= 0 && n != resp.ContentLength {
		err = fmt.Errorf("short body: got %d of %d bytes: %w", n, resp.ContentLength, io.ErrUnexpectedEOF)
	}
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		_ = os.Remove(tmp.Name())
		return "", 0, false, fmt.Errorf("writing temp file: %w", closeErr)
	}
	if err != nil {
		// Best-effort removal of the partially written temp file.
		_ = os.Remove(tmp.Name())
		return "", 0, true, fmt.Errorf("reading body: %w", err)
	}
	return tmp.Name(), http.StatusOK, false, nil
}

// expectation looks up the published digest for file: first the supplied
// index, then release.yaml, then checksums.txt. The second result names the
// source, "none" when nothing is published.
func (in *Installer) expectation(ctx context.Context, t target.Target, version, file string) (expectation, string) {
	if in.index != nil && in.index.Version == version {
		if a, ok := in.index.Lookup(t); ok && a.File == file {
			return expectation{SHA256: a.SHA256, Size: a.Size}, "descriptor"
		}
	}

	data, err := in.fetchMetadata(ctx, version, release.IndexFileName)
	if err == nil {
		ix, perr := release.ParseIndex(bytes.NewReader(data))
		switch {
		case perr != nil:
			in.logger.Warn("ignoring invalid release index", "err", perr)
		case ix.Version != version:
			in.logger.Warn("ignoring release index for another version", "index", ix.Version, "want", version)
		default:
			if a, ok := ix.Lookup(t); ok && a.File == file {
				return expectation{SHA256: a.SHA256, Size: a.Size}, release.IndexFileName
			}
		}
	} else {
		in.logger.Debug("no release index", "err", err)
	}

	data, err = in.fetchMetadata(ctx, version, release.ChecksumsFileName)
	if err == nil {
		entries, perr := release.ParseChecksums(bytes.NewReader(data))
		if perr == nil {
			if hash, ferr := release.FindChecksum(entries, file); ferr == nil {
				return expectation{SHA256: hash}, release.ChecksumsFileName
			}
		}
	} else {
		in.logger.Debug("no checksums file", "err", err)
	}
	return expectation{}, "none"
}

// fetchMetadata downloads a small release file in one attempt.
func (in *Installer) fetchMetadata(ctx context.Context, version, name string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, in.timeout)
	defer cancel()

	u := AssetURL(in.baseURL, in.tagPrefix, version, name)
	resp, err := in.doRequest(ctx, u)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: redactURL(u), StatusCode: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxMetadataBytes {
		return nil, errors.New(name + " exceeds size limit")
	}
	return data, nil
}

// doRequest creates and executes a GET request with the common headers.
func (in *Installer) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", in.userAgent)

	// Only attach the token when the request targets the configured store
	// host, so a redirect to a CDN does not leak it.
	if in.token != "" && sameHost(req.URL, in.baseURL) {
		req.Header.Set("Authorization", "Bearer "+in.token)
	}

	resp, err := in.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

func newProgressBar(w io.Writer, total int64, file string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("downloading "+file),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(w) }),
	)
}

func sameHost(reqURL *url.URL, baseURL string) bool {
	base, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(reqURL.Host, base.Host)
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in logs and errors.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
