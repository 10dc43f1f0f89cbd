// SPDX-License-Identifier: MPL-2.0

// Package release defines the files published next to a release's assets:
// checksums.txt in sha256sum format and release.yaml, an index mapping each
// target to its artifact file, digest and size. The packager writes both; the
// installer reads them to verify downloads.
package release
