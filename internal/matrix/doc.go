// SPDX-License-Identifier: MPL-2.0

// Package matrix builds the native module for a set of targets and stages each
// produced library under a per-target directory.
//
// Every target yields exactly one Result in the Report, in catalog order.
// Under FailFast the first failure cancels the remaining work and the targets
// that never ran are reported as Skipped; under Aggregate every target runs.
package matrix
