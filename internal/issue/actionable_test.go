// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestActionableError_Error(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      *ActionableError
		expected string
	}{
		{
			name:     "operation only",
			err:      &ActionableError{Operation: "package target"},
			expected: "failed to package target",
		},
		{
			name:     "operation with resource",
			err:      &ActionableError{Operation: "package target", Resource: "linux-x64-gnu"},
			expected: "failed to package target: linux-x64-gnu",
		},
		{
			name:     "operation with cause",
			err:      &ActionableError{Operation: "read Cargo.toml", Cause: errors.New("no version field")},
			expected: "failed to read Cargo.toml: no version field",
		},
		{
			name: "full context",
			err: &ActionableError{
				Operation: "download artifact",
				Resource:  "https://example.com/v1.0.0/edr.darwin-arm64.node",
				Cause:     errors.New("HTTP 503"),
			},
			expected: "failed to download artifact: https://example.com/v1.0.0/edr.darwin-arm64.node: HTTP 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestActionableError_ErrorsIs(t *testing.T) {
	t.Parallel()

	sentinel := errors.New("sentinel")
	err := NewErrorContext().WithOperation("verify checksum").Wrap(sentinel).BuildError()
	if !errors.Is(err, sentinel) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var ae *ActionableError
	if !errors.As(err, &ae) {
		t.Fatal("errors.As should find *ActionableError")
	}
	if ae.Operation != "verify checksum" {
		t.Errorf("Operation = %q", ae.Operation)
	}
}

func TestActionableError_Format(t *testing.T) {
	t.Parallel()

	inner := errors.New("connection reset")
	outer := errors.Join(inner)
	err := &ActionableError{
		Operation:   "download artifact",
		Suggestions: []string{"Check your network connection", "Retry later"},
		Cause:       outer,
	}

	short := err.Format(false)
	if !strings.Contains(short, "  • Check your network connection") {
		t.Errorf("Format(false) missing suggestion:\n%s", short)
	}
	if strings.Contains(short, "Error chain") {
		t.Errorf("Format(false) should not include the error chain:\n%s", short)
	}

	long := err.Format(true)
	if !strings.Contains(long, "Error chain:") || !strings.Contains(long, "1. connection reset") {
		t.Errorf("Format(true) missing error chain:\n%s", long)
	}
}

func TestErrorContext_Build(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	ae := NewErrorContext().
		WithOperation("install native module").
		WithResource("/opt/app/edr.linux-x64-gnu.node").
		WithSuggestion("first").
		WithSuggestions("second", "third").
		WithIssue(PermissionDeniedId).
		Wrap(cause).
		Build()

	if ae == nil {
		t.Fatal("Build() returned nil")
	}
	if ae.Resource != "/opt/app/edr.linux-x64-gnu.node" {
		t.Errorf("Resource = %q", ae.Resource)
	}
	if len(ae.Suggestions) != 3 {
		t.Errorf("Suggestions = %v", ae.Suggestions)
	}
	if ae.Issue != PermissionDeniedId {
		t.Errorf("Issue = %d, want %d", ae.Issue, PermissionDeniedId)
	}
	if ae.Cause != cause {
		t.Errorf("Cause = %v", ae.Cause)
	}
}

func TestErrorContext_BuildWithoutOperation(t *testing.T) {
	t.Parallel()

	if NewErrorContext().WithResource("x").Build() != nil {
		t.Error("Build() without operation should return nil")
	}
	if err := NewErrorContext().BuildError(); err != nil {
		t.Errorf("BuildError() without operation = %v, want nil", err)
	}
}

func TestIssueOf(t *testing.T) {
	t.Parallel()

	if _, ok := IssueOf(errors.New("plain")); ok {
		t.Error("IssueOf(plain error) should report no issue")
	}
	if _, ok := IssueOf(nil); ok {
		t.Error("IssueOf(nil) should report no issue")
	}

	inner := NewErrorContext().WithOperation("verify artifact").WithIssue(ChecksumMismatchId).BuildError()
	outer := NewErrorContext().WithOperation("install native module").Wrap(fmt.Errorf("step: %w", inner)).BuildError()
	if id, ok := IssueOf(outer); !ok || id != ChecksumMismatchId {
		t.Errorf("IssueOf() = %d, %v; want the nested checksum issue", id, ok)
	}

	tagged := NewErrorContext().WithOperation("load configuration").WithIssue(ConfigLoadFailedId).Wrap(inner).BuildError()
	if id, _ := IssueOf(tagged); id != ConfigLoadFailedId {
		t.Errorf("IssueOf() = %d, want the outermost issue", id)
	}
}
