// SPDX-License-Identifier: MPL-2.0

package config

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"
)

// GenerateCUE renders cfg as a nativedist.cue document.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder
	w := &cueWriter{sb: &sb}

	sb.WriteString("// nativedist project configuration\n\n")
	w.str(0, "module", cfg.Module)
	w.str(0, "scope", cfg.Scope)

	w.open(0, "build")
	w.list(1, "features", cfg.Build.Features)
	w.list(1, "targets", cfg.Build.Targets)
	w.str(1, "policy", cfg.Build.Policy)
	w.int(1, "parallel", cfg.Build.Parallel)
	w.str(1, "staging_dir", cfg.Build.StagingDir)
	w.str(1, "command", cfg.Build.Command)
	w.str(1, "artifact", cfg.Build.Artifact)
	w.list(1, "env", cfg.Build.Env)
	w.open(1, "container")
	ct := cfg.Build.Container
	w.bool(2, "enabled", ct.Enabled)
	w.str(2, "engine", ct.Engine)
	w.str(2, "image", ct.Image)
	if len(ct.Images) > 0 {
		w.open(2, "images")
		for _, k := range slices.Sorted(maps.Keys(ct.Images)) {
			w.str(3, strconv.Quote(k), ct.Images[k])
		}
		w.close(2)
	}
	w.list(2, "targets", ct.Targets)
	w.int(2, "attempts", ct.Attempts)
	w.dur(2, "backoff", ct.Backoff)
	w.close(1)
	w.close(0)

	w.open(0, "package")
	w.str(1, "out_dir", cfg.Package.OutDir)
	w.list(1, "shared", cfg.Package.Shared)
	w.str(1, "installer", cfg.Package.Installer)
	w.str(1, "cargo_manifest", cfg.Package.CargoManifest)
	w.str(1, "tag_prefix", cfg.Package.TagPrefix)
	w.str(1, "base_url", cfg.Package.BaseURL)
	w.close(0)

	w.open(0, "install")
	w.str(1, "base_url", cfg.Install.BaseURL)
	w.int(1, "attempts", cfg.Install.Attempts)
	w.dur(1, "timeout", cfg.Install.Timeout)
	w.str(1, "dest", cfg.Install.Dest)
	w.bool(1, "require_checksum", cfg.Install.RequireChecksum)
	w.close(0)

	return sb.String()
}

type cueWriter struct {
	sb *strings.Builder
}

func (w *cueWriter) line(depth int, format string, args ...any) {
	w.sb.WriteString(strings.Repeat("\t", depth))
	fmt.Fprintf(w.sb, format, args...)
	w.sb.WriteByte('\n')
}

func (w *cueWriter) open(depth int, key string) { w.line(depth, "%s: {", key) }

func (w *cueWriter) close(depth int) { w.line(depth, "}") }

// str skips empty strings so optional fields stay unset.
func (w *cueWriter) str(depth int, key, val string) {
	if val == "" {
		return
	}
	w.line(depth, "%s: %s", key, strconv.Quote(val))
}

func (w *cueWriter) int(depth int, key string, val int) { w.line(depth, "%s: %d", key, val) }

func (w *cueWriter) bool(depth int, key string, val bool) { w.line(depth, "%s: %t", key, val) }

func (w *cueWriter) dur(depth int, key string, val time.Duration) {
	w.line(depth, "%s: %s", key, strconv.Quote(val.String()))
}

func (w *cueWriter) list(depth int, key string, vals []string) {
	quoted := make([]string, len(vals))
	for i, v := range vals {
		quoted[i] = strconv.Quote(v)
	}
	w.line(depth, "%s: [%s]", key, strings.Join(quoted, ", "))
}
