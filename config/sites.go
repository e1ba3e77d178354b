package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadSites reads the site file: a flat object mapping a site base URL to
// the CSS selector of its ad links. Files ending in .yaml or .yml are read
// as YAML, anything else as JSON.
func LoadSites(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("failed to read sites file: %w", err)}
	}

	sites := map[string]string{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &sites)
	default:
		err = json.Unmarshal(data, &sites)
	}
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("failed to parse sites file: %w", err)}
	}

	if len(sites) == 0 {
		return nil, &ConfigLoadError{Path: path, Err: errors.New("no sites configured")}
	}
	for site, selector := range sites {
		if strings.TrimSpace(selector) == "" {
			return nil, &ConfigLoadError{Path: path, Err: fmt.Errorf("empty selector for site %s", site)}
		}
	}

	return sites, nil
}
