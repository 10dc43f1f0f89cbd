// SPDX-License-Identifier: MPL-2.0

package container

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"

	"github.com/nativedist/nativedist/internal/testutil"
)

// checkTestcontainersAvailable safely checks if testcontainers can be used.
// The provider lookup can panic on hosts without a reachable daemon.
func checkTestcontainersAvailable() (available bool) {
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		return false
	}
	defer provider.Close()
	return true
}

func TestEngine_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	engine, err := AutoDetectEngine()
	if err != nil {
		t.Skipf("skipping container integration tests: %v", err)
	}
	if !checkTestcontainersAvailable() {
		t.Skip("skipping container integration tests: testcontainers provider not available")
	}

	sem := testutil.ContainerSemaphore()
	sem <- struct{}{}
	defer func() { <-sem }()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "marker"), []byte("edr"), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Run("MountAndWrite", func(t *testing.T) {
		var stderr bytes.Buffer
		result, err := engine.Run(ctx, RunOptions{
			Image:   "debian:stable-slim",
			Command: []string{"sh", "-c", "cat marker > out.node"},
			WorkDir: "/src",
			Volumes: []VolumeMount{{HostPath: src, ContainerPath: "/src"}},
			Remove:  true,
			Stderr:  &stderr,
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.ExitCode != 0 {
			t.Fatalf("Run() exit = %d, stderr: %s", result.ExitCode, stderr.String())
		}
		data, err := os.ReadFile(filepath.Join(src, "out.node"))
		if err != nil {
			t.Fatalf("container output missing: %v", err)
		}
		if strings.TrimSpace(string(data)) != "edr" {
			t.Errorf("out.node = %q", data)
		}
	})

	t.Run("ExitCode", func(t *testing.T) {
		result, err := engine.Run(ctx, RunOptions{
			Image:   "debian:stable-slim",
			Command: []string{"sh", "-c", "exit 7"},
			Remove:  true,
		})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if result.ExitCode != 7 {
			t.Errorf("ExitCode = %d, want 7", result.ExitCode)
		}
	})
}
