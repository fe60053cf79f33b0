package toolchain

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ManifestName is the manifest's filename within a home's lib directory.
const ManifestName = "core.manifest"

// Manifest catalogs the core units a toolchain provides, mapping unit
// names to their methods and arities. The compiler checks qualified
// calls against this catalog.
type Manifest struct {
	Units map[string]map[string]int `yaml:"units"`
}

// Arity returns the parameter count of a cataloged method.
func (m *Manifest) Arity(unit, method string) (int, bool) {
	methods, ok := m.Units[unit]
	if !ok {
		return 0, false
	}
	arity, ok := methods[method]
	return arity, ok
}

// WriteHome materializes a toolchain home at dir: a VERSION file
// holding version and a lib manifest cataloging units. The result
// passes discovery.
func WriteHome(dir, version string, units map[string]map[string]int) error {
	if err := os.MkdirAll(filepath.Join(dir, "lib"), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "VERSION"), []byte(version+"\n"), 0o644); err != nil {
		return err
	}
	manifest, err := yaml.Marshal(Manifest{Units: units})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "lib", ManifestName), manifest, 0o644)
}
