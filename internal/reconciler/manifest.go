package reconciler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"

	cforgev1 "cforge/pkg/apis/cforge/v1"
)

// loadManifest parses the CForge in path. Unknown fields are rejected. A
// manifest without metadata.name is named after its file.
func loadManifest(path string) (*cforgev1.CForge, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cf cforgev1.CForge
	if err := yaml.UnmarshalStrict(data, &cf); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if cf.Kind != "" && cf.Kind != "CForge" {
		return nil, fmt.Errorf("unexpected kind %q", cf.Kind)
	}
	if cf.Name == "" {
		cf.Name = manifestName(path)
	}
	return &cf, nil
}

// manifestName is the file name without its YAML extension.
func manifestName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isYAMLFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
