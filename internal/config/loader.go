package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const maxConfigFileSize = 1024 * 1024 // 1MB

// legacyNames maps deprecated option names (from the original Python
// agent's free-form mapping) onto the canonical §6.4 keys, applied at load
// per SPEC_FULL.md §9.
var legacyNames = map[string]string{
	"neo4j_uri":      "graph_uri",
	"neo4j_user":     "graph_user",
	"neo4j_password": "graph_password",
	"redis_url":      "volatile_url",
	"llm_model":      "completion_model",
}

// LoadWithFile loads configuration from a YAML file, then overrides with
// environment variables. Precedence (highest to lowest): environment
// variables > YAML file > hardcoded defaults, per spec §6.4.
//
// The configPath parameter specifies the YAML file to load. If empty, the
// default path ~/.config/agentmem/config.yaml is used.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configPath = filepath.Join(home, ".config", "agentmem", "config.yaml")
	}

	if err := validateConfigPath(configPath); err != nil {
		return nil, fmt.Errorf("config path validation failed: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		remapped, err := remapLegacyYAML(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
		if err := k.Load(rawbytes.Provider(remapped), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variables take precedence. Recognised names are
	// upper-snake-case of the flat §6.4 keys (e.g. L0_CAPACITY), plus the
	// legacy aliases above.
	if err := k.Load(env.ProviderWithValue("", ".", func(s, v string) (string, interface{}) {
		key := strings.ToLower(s)
		if canonical, ok := legacyNames[key]; ok {
			key = canonical
		}
		return key, v
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// remapLegacyYAML rewrites legacy top-level YAML keys onto their canonical
// names before koanf parses them. Unknown keys are left untouched so they
// are silently ignored by Unmarshal, per spec §9's forward-compatibility
// requirement.
func remapLegacyYAML(content []byte) ([]byte, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, err
	}
	raw := k.Raw()
	remapped := make(map[string]interface{}, len(raw))
	for key, val := range raw {
		if canonical, ok := legacyNames[key]; ok {
			remapped[canonical] = val
			continue
		}
		remapped[key] = val
	}
	out := koanf.New(".")
	if err := out.Load(confmap.Provider(remapped, "."), nil); err != nil {
		return nil, err
	}
	b, err := out.Marshal(yaml.Parser())
	if err != nil {
		return nil, err
	}
	return b, nil
}

// EnsureConfigDir creates the agentmem config directory if missing, with
// owner-only permissions.
func EnsureConfigDir() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".config", "agentmem")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	return nil
}

// validateConfigPath rejects paths outside the allowed config directories,
// resolving symlinks first to prevent path-traversal escapes.
func validateConfigPath(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	resolvedPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		resolvedPath = absPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	allowedDirs := []string{
		filepath.Join(home, ".config", "agentmem"),
		"/etc/agentmem",
	}
	for _, dir := range allowedDirs {
		if strings.HasPrefix(resolvedPath, dir) {
			return nil
		}
	}
	return fmt.Errorf("config file must be in ~/.config/agentmem/ or /etc/agentmem/")
}

// validateConfigFileProperties rejects world/group-readable or oversized
// config files.
func validateConfigFileProperties(info os.FileInfo) error {
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}
	return nil
}
