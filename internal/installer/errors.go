// SPDX-License-Identifier: MPL-2.0

package installer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDownloadFailure is returned when the artifact could not be fetched:
	// either the retry budget ran out or the store answered with a permanent error.
	ErrDownloadFailure = errors.New("download failure")

	// ErrChecksumMismatch indicates the downloaded bytes do not match the
	// published digest or size.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrPermissionFailure indicates the installed binary could not be made executable.
	ErrPermissionFailure = errors.New("permission failure")
)

type (
	// DownloadError describes a failed fetch.
	DownloadError struct {
		URL        string
		Attempts   int
		StatusCode int // last HTTP status, 0 if none was received
		Err        error
	}

	// ChecksumError provides details about a verification failure.
	ChecksumError struct {
		Filename     string
		Expected     string
		Got          string
		ExpectedSize int64
		GotSize      int64
	}

	// PermissionError is returned when chmod on the installed binary fails.
	PermissionError struct {
		Path string
		Err  error
	}
)

func (e *DownloadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "downloading %s failed after %d attempt(s)", e.URL, e.Attempts)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes ErrDownloadFailure and the last attempt's error.
func (e *DownloadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDownloadFailure}
	}
	return []error{ErrDownloadFailure, e.Err}
}

// Error shows both expected and actual values.
func (e *ChecksumError) Error() string {
	if e.ExpectedSize > 0 && e.ExpectedSize != e.GotSize {
		return fmt.Sprintf("size verification failed for %s\nExpected: %d bytes\nGot:      %d bytes", e.Filename, e.ExpectedSize, e.GotSize)
	}
	return fmt.Sprintf("checksum verification failed for %s\nExpected: %s\nGot:      %s", e.Filename, e.Expected, e.Got)
}

// Unwrap returns ErrChecksumMismatch so callers can use errors.Is.
func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }

func (e *PermissionError) Error() string {
	return fmt.Sprintf("cannot make %s executable: %v (run `chmod 0755 %s` or install into a directory you own)", e.Path, e.Err, e.Path)
}

// Unwrap exposes ErrPermissionFailure and the chmod error.
func (e *PermissionError) Unwrap() []error { return []error{ErrPermissionFailure, e.Err} }
