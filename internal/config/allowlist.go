package config

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// allowListFile is the YAML schema of the allow-list file: a mapping from
// 6-character user-ID prefixes to trusted display names.
type allowListFile struct {
	Users map[string]string `yaml:"users"`
}

// LoadAllowList reads the allow-list YAML file. A missing file is not an
// error; the bridge then relies solely on the profile API.
func LoadAllowList(path string, logger *slog.Logger) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}
	path = ExpandPath(path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("allow-list file does not exist, skipping", "path", path)
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read allow-list %s: %w", path, err)
	}

	var f allowListFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse allow-list %s: %w", path, err)
	}
	if f.Users == nil {
		f.Users = map[string]string{}
	}

	logger.Info("allow-list loaded", "path", path, "entries", len(f.Users))
	return f.Users, nil
}

// SaveAllowList writes the allow-list back to disk (used by init to create
// an empty template).
func SaveAllowList(path string, users map[string]string) error {
	data, err := yaml.Marshal(allowListFile{Users: users})
	if err != nil {
		return fmt.Errorf("marshal allow-list: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
