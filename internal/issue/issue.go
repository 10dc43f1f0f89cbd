// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"slices"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

const (
	UnsupportedPlatformId Id = iota + 1
	DownloadFailedId
	ChecksumMismatchId
	PermissionDeniedId
	ToolchainNotFoundId
	ToolchainFailedId
	ContainerEngineNotFoundId
	PackagingFailedId
	ConfigLoadFailedId
	InvalidVersionId
)

type (
	Id int

	MarkdownMsg string

	HttpLink string

	Issue struct {
		id       Id          // ID used to lookup the issue
		mdMsg    MarkdownMsg // Markdown text that will be rendered
		docLinks []HttpLink
		extLinks []HttpLink // external links that might be useful for the user
	}
)

func (i *Issue) Id() Id {
	return i.id
}

// Name returns the kebab-case lookup name, e.g. "checksum-mismatch".
func (i *Issue) Name() string {
	for name, id := range names {
		if id == i.id {
			return name
		}
	}
	return ""
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the Markdown message plus any links for the terminal.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range i.docLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
		for _, link := range i.extLinks {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	unsupportedPlatformIssue = &Issue{
		id: UnsupportedPlatformId,
		mdMsg: `
# Unsupported platform!

There is no prebuilt native module for this operating system, CPU
architecture and C library combination.

## Supported platforms
~~~
$ nativedist targets
~~~

## Things you can try:
- Build the native module from source with a local Rust toolchain:
~~~
$ nativedist build --target <name>
~~~
- Force a compatible target if detection picked the wrong C library:
~~~
$ NATIVEDIST_TARGET=linux-x64-gnu nativedist install --version <version>
~~~`,
	}

	downloadFailedIssue = &Issue{
		id: DownloadFailedId,
		mdMsg: `
# Download failed!

The prebuilt artifact could not be fetched from the release store, even
after retrying.

## Things you can try:
- Check your network connection and any proxy settings
- Verify the release exists for the requested version
- Raise the attempt budget with NATIVEDIST_ATTEMPTS
- Point NATIVEDIST_BASE_URL at a mirror`,
		extLinks: []HttpLink{"https://docs.github.com/en/repositories/releasing-projects-on-github"},
	}

	checksumMismatchIssue = &Issue{
		id: ChecksumMismatchId,
		mdMsg: `
# Checksum mismatch!

The downloaded artifact does not match the digest published with the
release. Nothing was installed and the previous binary, if any, is intact.

## Things you can try:
- Retry the install; a proxy may have served a truncated body
- Compare the release's checksums.txt against the artifact by hand
- Report the release to its maintainers if the mismatch persists`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

The installer could not place the native module at its destination or
mark it executable.

## Things you can try:
- Check write permissions on the destination directory
- Install into a directory you own with --dest
- Make sure no other process holds the old binary open (Windows)`,
	}

	toolchainNotFoundIssue = &Issue{
		id: ToolchainNotFoundId,
		mdMsg: `
# Toolchain not found!

The compiler needed for this target is not installed or not on PATH.

## Things you can try:
- Install Rust with rustup and add the target triple:
~~~
$ rustup target add <triple>
~~~
- Build inside a container instead by setting ` + "`build.container.enabled: true`" + ` in nativedist.cue`,
		extLinks: []HttpLink{"https://rustup.rs"},
	}

	toolchainFailedIssue = &Issue{
		id: ToolchainFailedId,
		mdMsg: `
# Build failed!

The compiler ran but did not produce the native module for this target.

## Things you can try:
- Re-run the build with --verbose to see the compiler output
- Build the single failing target with --target to isolate it
- Use the aggregate policy to see every failing target at once:
~~~
$ nativedist build --policy aggregate
~~~`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Container builds need Docker or Podman.

## Things you can try:
- Install Podman or Docker and make sure the daemon is running
- Disable container builds in nativedist.cue to use the host toolchain`,
		extLinks: []HttpLink{"https://podman.io/docs/installation", "https://docs.docker.com/get-docker/"},
	}

	packagingFailedIssue = &Issue{
		id: PackagingFailedId,
		mdMsg: `
# Packaging failed!

A distributable package could not be assembled.

## Things you can try:
- Run the build first so the artifact exists in the artifacts directory
- Check that the manifest template is valid JSON
- Make sure every package name and version is valid`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

nativedist.cue could not be read or did not match the schema.

## Things you can try:
- Validate the file with the cue CLI:
~~~
$ cue vet nativedist.cue
~~~
- Print the effective configuration:
~~~
$ nativedist config show
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	invalidVersionIssue = &Issue{
		id: InvalidVersionId,
		mdMsg: `
# Invalid version!

Versions must be valid semantic versions such as 1.2.3 or 1.2.3-rc.1.

## Things you can try:
- Fix the version field in Cargo.toml
- Pass an explicit --version`,
		extLinks: []HttpLink{"https://semver.org"},
	}

	names = map[string]Id{
		"unsupported-platform":       UnsupportedPlatformId,
		"download-failed":            DownloadFailedId,
		"checksum-mismatch":          ChecksumMismatchId,
		"permission-denied":          PermissionDeniedId,
		"toolchain-not-found":        ToolchainNotFoundId,
		"toolchain-failed":           ToolchainFailedId,
		"container-engine-not-found": ContainerEngineNotFoundId,
		"packaging-failed":           PackagingFailedId,
		"config-load-failed":         ConfigLoadFailedId,
		"invalid-version":            InvalidVersionId,
	}

	issues = map[Id]*Issue{
		unsupportedPlatformIssue.Id():     unsupportedPlatformIssue,
		downloadFailedIssue.Id():          downloadFailedIssue,
		checksumMismatchIssue.Id():        checksumMismatchIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
		toolchainNotFoundIssue.Id():       toolchainNotFoundIssue,
		toolchainFailedIssue.Id():         toolchainFailedIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		packagingFailedIssue.Id():         packagingFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		invalidVersionIssue.Id():          invalidVersionIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	all := maps.Values(issues)
	slices.SortFunc(all, func(a, b *Issue) int { return cmp.Compare(a.id, b.id) })
	return all
}

func Get(id Id) *Issue {
	return issues[id]
}

// Lookup finds an issue by its kebab-case name, e.g. "checksum-mismatch".
func Lookup(name string) (*Issue, bool) {
	id, ok := names[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return issues[id], true
}

// Names returns the lookup names of every issue, sorted.
func Names() []string {
	ks := maps.Keys(names)
	slices.Sort(ks)
	return ks
}
