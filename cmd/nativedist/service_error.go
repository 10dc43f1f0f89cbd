// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/nativedist/nativedist/internal/config"
	"github.com/nativedist/nativedist/internal/container"
	"github.com/nativedist/nativedist/internal/installer"
	"github.com/nativedist/nativedist/internal/issue"
	"github.com/nativedist/nativedist/internal/packager"
	"github.com/nativedist/nativedist/internal/toolchain"
	"github.com/nativedist/nativedist/pkg/manifest"
	"github.com/nativedist/nativedist/pkg/target"
	"github.com/nativedist/nativedist/pkg/types"
)

// ServiceError is an error that carries the issue catalog entry explaining it.
// Always create via newServiceError.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the catalog entry with remediation steps; 0 means none.
	IssueID issue.Id
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{Err: err, IssueID: issueID}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// classifyError maps a failure onto the issue catalog. An issue linked by an
// ActionableError wins. Otherwise order matters: a container engine outage is
// also a toolchain unavailability.
func classifyError(err error) issue.Id {
	if id, ok := issue.IssueOf(err); ok {
		return id
	}
	switch {
	case errors.Is(err, target.ErrUnsupportedPlatform):
		return issue.UnsupportedPlatformId
	case errors.Is(err, installer.ErrChecksumMismatch):
		return issue.ChecksumMismatchId
	case errors.Is(err, installer.ErrDownloadFailure):
		return issue.DownloadFailedId
	case errors.Is(err, installer.ErrPermissionFailure):
		return issue.PermissionDeniedId
	case errors.Is(err, container.ErrEngineUnavailable):
		return issue.ContainerEngineNotFoundId
	case errors.Is(err, toolchain.ErrToolchainUnavailable):
		return issue.ToolchainNotFoundId
	case errors.Is(err, toolchain.ErrToolchainFailure):
		return issue.ToolchainFailedId
	case errors.Is(err, manifest.ErrInvalidVersion):
		return issue.InvalidVersionId
	case errors.Is(err, packager.ErrPackagingFailure):
		return issue.PackagingFailedId
	case errors.Is(err, config.ErrInvalidConfig):
		return issue.ConfigLoadFailedId
	default:
		return 0
	}
}

// fail reports err to the user and converts it into an ExitError. The full
// remediation page is rendered under --verbose; otherwise a pointer to
// 'nativedist explain' is printed.
func (a *App) fail(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = newServiceError(err, classifyError(err))
	}
	renderServiceError(a.stderr, svcErr, a.verbose)

	return &ExitError{Code: exitCodeFor(svcErr), Err: err}
}

func exitCodeFor(svcErr *ServiceError) types.ExitCode {
	switch {
	case svcErr.IssueID == issue.UnsupportedPlatformId:
		return types.ExitUnsupported
	case svcErr.IssueID == issue.ConfigLoadFailedId, errors.Is(svcErr.Err, target.ErrUnknownTarget):
		return types.ExitUsage
	default:
		return types.ExitFailure
	}
}

// renderServiceError prints the error and, when known, the matching issue help.
func renderServiceError(stderr io.Writer, svcErr *ServiceError, verbose bool) {
	if svcErr == nil {
		return
	}
	fmt.Fprintln(stderr, ErrorStyle.Render("Error: ")+formatErrorForDisplay(svcErr.Err, verbose))

	if svcErr.IssueID == 0 {
		return
	}
	entry := issue.Get(svcErr.IssueID)
	if entry == nil {
		return
	}
	if !verbose {
		fmt.Fprintln(stderr, SubtitleStyle.Render("Run ")+CmdStyle.Render("nativedist explain "+entry.Name())+SubtitleStyle.Render(" for help."))
		return
	}
	rendered, err := entry.Render("dark")
	if err != nil {
		log.Warn("failed to render issue help", "issue", entry.Name(), "error", err)
		return
	}
	fmt.Fprint(stderr, rendered)
}

// formatErrorForDisplay formats an error for user display. ActionableErrors
// use their own formatting, which lists suggestions.
func formatErrorForDisplay(err error, verbose bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
