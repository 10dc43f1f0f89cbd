// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared by the CLI and its services.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Process exit statuses reported by nativedist.
const (
	// ExitSuccess means every requested target or package succeeded.
	ExitSuccess ExitCode = 0
	// ExitFailure means a build, packaging or install step failed.
	ExitFailure ExitCode = 1
	// ExitUsage means the invocation or configuration was invalid.
	ExitUsage ExitCode = 2
	// ExitUnsupported means the host has no prebuilt binary.
	ExitUnsupported ExitCode = 3
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode is a process exit status in the POSIX range 0-255.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode for errors.Is.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside 0-255.
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess reports whether c is ExitSuccess.
func (c ExitCode) IsSuccess() bool { return c == ExitSuccess }

// String returns the decimal form, with the meaning for known codes,
// e.g. "3 (unsupported platform)".
func (c ExitCode) String() string {
	switch c {
	case ExitSuccess:
		return "0 (success)"
	case ExitFailure:
		return "1 (failure)"
	case ExitUsage:
		return "2 (usage)"
	case ExitUnsupported:
		return "3 (unsupported platform)"
	default:
		return strconv.Itoa(int(c))
	}
}
