// SPDX-License-Identifier: MPL-2.0

package matrix

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nativedist/nativedist/pkg/target"
)

// ErrIncomplete is reported when targets were skipped although none failed,
// as after an interrupted run.
var ErrIncomplete = errors.New("build incomplete")

const (
	// StatusSkipped means the target never ran (fail-fast or cancellation).
	StatusSkipped Status = iota
	StatusSucceeded
	StatusFailed
)

type (
	// Status is the outcome of one target.
	Status int

	// Result is the outcome of building one target.
	Result struct {
		Target       target.Target
		Status       Status
		ArtifactPath string // staged path, set on success
		Err          error
		Duration     time.Duration
	}

	// Report aggregates per-target results in catalog order.
	Report struct {
		Results []Result
	}
)

func (s Status) String() string {
	switch s {
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "skipped"
	}
}

func (r *Report) filter(s Status) []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Status == s {
			out = append(out, res)
		}
	}
	return out
}

// Succeeded returns the results of targets that built.
func (r *Report) Succeeded() []Result { return r.filter(StatusSucceeded) }

// Failed returns the results of targets whose toolchain failed.
func (r *Report) Failed() []Result { return r.filter(StatusFailed) }

// Skipped returns the results of targets that never ran.
func (r *Report) Skipped() []Result { return r.filter(StatusSkipped) }

// OK reports whether every target succeeded.
func (r *Report) OK() bool {
	return len(r.Succeeded()) == len(r.Results)
}

// Err joins the errors of every failed target, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s: %w", res.Target.CanonicalName, res.Err))
	}
	return errors.Join(errs...)
}

// Incomplete returns an ErrIncomplete error naming how many targets never
// ran, or nil when every target ran.
func (r *Report) Incomplete() error {
	skipped := r.Skipped()
	if len(skipped) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d target(s) not built", ErrIncomplete, len(skipped), len(r.Results))
}

// Summary renders one line per target, e.g. "linux-x64-gnu  succeeded  1.2s".
func (r *Report) Summary() string {
	var b strings.Builder
	for _, res := range r.Results {
		fmt.Fprintf(&b, "%-18s %-10s %s\n", res.Target.CanonicalName, res.Status, res.Duration.Round(time.Millisecond))
	}
	return b.String()
}
