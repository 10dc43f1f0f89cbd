// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that fail the test on
// error instead of returning it.
//
// Helpers cover project fixtures (MustWriteFile, MustMkdirAll) and throttling
// of container-backed tests (ContainerSemaphore).
package testutil
