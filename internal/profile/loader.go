package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// LoadDir reads every YAML profile file in dir and returns the decoded
// profiles sorted by file name. Files that fail to decode abort the load;
// a catalog with a broken entry is worse than no catalog.
func LoadDir(dir string) ([]models.Profile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profiles directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var profiles []models.Profile
	for _, name := range names {
		p, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// LoadFile decodes a single profile file.
func LoadFile(path string) (models.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.Profile{}, fmt.Errorf("read profile %s: %w", path, err)
	}

	var p models.Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return models.Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if !p.Valid() {
		return models.Profile{}, fmt.Errorf("profile %s: name and at least one tool are required", path)
	}
	return p, nil
}
