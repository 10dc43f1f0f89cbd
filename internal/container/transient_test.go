// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"testing"
)

func TestIsTransientError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil error", err: nil, want: false},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "wrapped context deadline", err: fmt.Errorf("run failed: %w", context.DeadlineExceeded), want: false},
		{name: "generic error", err: errors.New("image not found"), want: false},
		{name: "exit code 1", err: newExitError(t, 1), want: false},

		{name: "exit code 125", err: newExitError(t, 125), want: true},
		{name: "wrapped exit code 125", err: fmt.Errorf("run failed: %w", newExitError(t, 125)), want: true},
		{name: "ping_group_range", err: errors.New("error reading /proc/sys/net/ipv4/ping_group_range"), want: true},
		{name: "OCI runtime error", err: errors.New("OCI runtime error: container_linux.go"), want: true},
		{name: "dns failure", err: errors.New("Could not resolve host: ghcr.io"), want: true},
		{name: "tls timeout", err: errors.New("net/http: TLS handshake timeout"), want: true},
		{name: "overlay race", err: errors.New("error creating overlay mount to /var/lib/containers"), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := IsTransientError(tt.err); got != tt.want {
				t.Errorf("IsTransientError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientExitCode(t *testing.T) {
	t.Parallel()

	if !IsTransientExitCode(125) {
		t.Error("125 should be transient")
	}
	if IsTransientExitCode(101) {
		t.Error("101 (cargo failure) should not be transient")
	}
}

// newExitError produces a real *exec.ExitError with the given code.
func newExitError(t *testing.T, code int) error {
	t.Helper()
	recorder := NewMockCommandRecorder()
	recorder.ExitCode = code
	err := recorder.ContextCommandFunc(t)(context.Background(), "docker").Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *exec.ExitError, got %v", err)
	}
	return err
}
