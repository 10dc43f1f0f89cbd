// SPDX-License-Identifier: MPL-2.0

package types

import (
	"errors"
	"testing"
)

func TestExitCodeValidate(t *testing.T) {
	t.Parallel()

	for _, c := range []ExitCode{ExitSuccess, ExitFailure, ExitUsage, ExitUnsupported, 255} {
		if err := c.Validate(); err != nil {
			t.Errorf("ExitCode(%d).Validate() = %v", c, err)
		}
	}
	for _, c := range []ExitCode{-1, 256, 1000} {
		err := c.Validate()
		if !errors.Is(err, ErrInvalidExitCode) {
			t.Errorf("ExitCode(%d).Validate() = %v, want ErrInvalidExitCode", c, err)
		}
		var ie *InvalidExitCodeError
		if !errors.As(err, &ie) || ie.Value != c {
			t.Errorf("ExitCode(%d): error does not carry the value", c)
		}
	}
}

func TestExitCodeString(t *testing.T) {
	t.Parallel()

	tests := map[ExitCode]string{
		ExitSuccess:     "0 (success)",
		ExitUnsupported: "3 (unsupported platform)",
		42:              "42",
	}
	for c, want := range tests {
		if got := c.String(); got != want {
			t.Errorf("ExitCode(%d).String() = %q, want %q", int(c), got, want)
		}
	}
	if !ExitSuccess.IsSuccess() || ExitFailure.IsSuccess() {
		t.Error("IsSuccess mismatch")
	}
}
