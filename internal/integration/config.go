package integration

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
)

// readConfig parses a JSON config file. A missing or blank file yields nil.
func readConfig(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var cfg map[string]any
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// writeConfig writes cfg as indented JSON, creating parent directories.
func writeConfig(path string, cfg map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// mergeServer sets cfg.mcpServers[name] to entry. cfg may be nil. changed
// is false when an equal entry was already present.
func mergeServer(cfg map[string]any, name string, entry ServerEntry) (out map[string]any, changed bool, err error) {
	if cfg == nil {
		cfg = make(map[string]any)
	}
	servers, ok := cfg["mcpServers"].(map[string]any)
	if !ok {
		if _, present := cfg["mcpServers"]; present {
			return nil, false, errors.New(`"mcpServers" is not an object`)
		}
		servers = make(map[string]any)
		cfg["mcpServers"] = servers
	}

	// Round-trip the entry so it compares equal to what was decoded from disk.
	raw, err := json.Marshal(entry)
	if err != nil {
		return nil, false, err
	}
	var want map[string]any
	if err := json.Unmarshal(raw, &want); err != nil {
		return nil, false, err
	}

	if reflect.DeepEqual(servers[name], want) {
		return cfg, false, nil
	}
	servers[name] = want
	return cfg, true, nil
}
