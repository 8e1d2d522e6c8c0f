// Package config loads the r4 application configuration from YAML.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Color output modes.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// DefaultIgnoreFile is the per-directory ignore-pattern file name.
const DefaultIgnoreFile = ".r4ignore"

// AppConfig defines the global r4 configuration options.
type AppConfig struct {
	P4Bin               string // p4 binary to invoke (default: "p4")
	Color               string // "auto", "always" or "never"
	DebugLog            string // debug log file path, empty disables
	MaxConcurrentFetch  int    // bound on concurrent revision fetches, 0 picks a CPU-based default
	IgnoreFile          string // ignore-pattern file name (default: .r4ignore)
	StatusWatchDebounce int    // watch-mode debounce in milliseconds
}

// DefaultConfig returns the default configuration values.
func DefaultConfig() *AppConfig {
	return &AppConfig{
		P4Bin:               "p4",
		Color:               ColorAuto,
		IgnoreFile:          DefaultIgnoreFile,
		StatusWatchDebounce: 600,
	}
}

func getConfigDir() string {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config")
}

// LoadConfig reads the application configuration from a YAML file. With an
// empty path it looks for config.yaml or config.yml under the r4 config
// directory; a missing file yields the defaults.
func LoadConfig(configPath string) (*AppConfig, error) {
	var paths []string
	if configPath != "" {
		expanded, err := ExpandPath(configPath)
		if err != nil {
			return DefaultConfig(), err
		}
		paths = []string{expanded}
	} else {
		configBase := filepath.Join(getConfigDir(), "r4")
		paths = []string{
			filepath.Join(configBase, "config.yaml"),
			filepath.Join(configBase, "config.yml"),
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		// #nosec G304 -- the path comes from the user's own flag or config directory
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		var yamlData map[string]any
		if err := yaml.Unmarshal(data, &yamlData); err != nil {
			return DefaultConfig(), fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return parseConfig(yamlData), nil
	}

	return DefaultConfig(), nil
}

func parseConfig(yamlData map[string]any) *AppConfig {
	cfg := DefaultConfig()

	if v := stringValue(yamlData["p4_bin"]); v != "" {
		cfg.P4Bin = v
	}
	if v := stringValue(yamlData["color"]); v != "" {
		cfg.Color = NormalizeColor(v)
	}
	if v := stringValue(yamlData["debug_log"]); v != "" {
		cfg.DebugLog = v
	}
	if v, ok := intValue(yamlData["max_concurrent_fetch"]); ok && v > 0 {
		cfg.MaxConcurrentFetch = v
	}
	if v := stringValue(yamlData["ignore_file"]); v != "" {
		cfg.IgnoreFile = v
	}
	if v, ok := intValue(yamlData["status_watch_debounce_ms"]); ok && v > 0 {
		cfg.StatusWatchDebounce = v
	}

	return cfg
}

// NormalizeColor maps loose color-mode spellings onto the canonical
// values, defaulting to auto.
func NormalizeColor(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case ColorAlways, "true", "yes":
		return ColorAlways
	case ColorNever, "false", "no":
		return ColorNever
	default:
		return ColorAuto
	}
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(fmt.Sprintf("%v", value))
}

func intValue(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// ExpandPath expands a leading ~ and environment variables in a path.
func ExpandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[1:])
	}
	return os.ExpandEnv(path), nil
}
