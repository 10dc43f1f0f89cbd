// SPDX-License-Identifier: MPL-2.0

package packager

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// CargoManifestName is the crate manifest file name.
const CargoManifestName = "Cargo.toml"

// errNoCrateVersion is returned when neither the crate nor its workspace
// declares a version.
var errNoCrateVersion = errors.New("no package version declared")

type cargoManifest struct {
	Package struct {
		// Either a version string or {workspace = true}.
		Version any `toml:"version"`
	} `toml:"package"`
	Workspace *struct {
		Package struct {
			Version string `toml:"version"`
		} `toml:"package"`
	} `toml:"workspace"`
}

// CrateVersion reads the package version from the Cargo.toml at path. A
// version inherited with `version.workspace = true` is resolved from the
// nearest ancestor manifest that declares a [workspace] section.
func CrateVersion(path string) (string, error) {
	m, err := readCargoManifest(path)
	if err != nil {
		return "", err
	}
	switch v := m.Package.Version.(type) {
	case string:
		return v, nil
	case map[string]any:
		if inherit, _ := v["workspace"].(bool); inherit {
			return workspaceVersion(path, m)
		}
	}
	return "", fmt.Errorf("%s: %w", path, errNoCrateVersion)
}

func workspaceVersion(path string, m *cargoManifest) (string, error) {
	for {
		if m.Workspace != nil {
			if v := m.Workspace.Package.Version; v != "" {
				return v, nil
			}
			return "", fmt.Errorf("%s: workspace: %w", path, errNoCrateVersion)
		}
		parent := filepath.Dir(filepath.Dir(path))
		if parent == filepath.Dir(path) {
			return "", fmt.Errorf("no workspace root above %s", path)
		}
		path = filepath.Join(parent, CargoManifestName)
		next, err := readCargoManifest(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			m = &cargoManifest{}
		case err != nil:
			return "", err
		default:
			m = next
		}
	}
}

func readCargoManifest(path string) (*cargoManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &m, nil
}
