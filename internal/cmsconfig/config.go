// Package cmsconfig loads the store's configuration, following the
// teacher's layered-precedence config loader (defaults -> global user
// config -> project config file, or an explicit path in its place ->
// caller overrides),
// reusing github.com/tailscale/hujson to tolerate JSONC (JSON-with-comments)
// input.
package cmsconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tailscale/hujson"
)

// ConfigFileName is the default project config file name.
const ConfigFileName = ".cms.json"

var (
	errConfigFileNotFound = errors.New("cmsconfig: config file not found")
	errConfigFileRead     = errors.New("cmsconfig: failed to read config file")
	errConfigInvalid      = errors.New("cmsconfig: invalid config")
	errArchiveDirEmpty    = errors.New("cmsconfig: archive_dir must not be empty")
)

// Config holds all store configuration. The json tags name the keys of the
// config files LoadConfig reads. UpstreamSource/Name/Guid are opaque and
// never interpreted; the store does not copy them from Config into
// index.json (its upstream bookkeeping block is filled from
// Store.SetCredentials).
type Config struct {
	ArchiveDir          string `json:"archive_dir"`
	CompressionLevel    int    `json:"compression_level,omitempty"`
	UpstreamSource      string `json:"upstream_source,omitempty"`
	UpstreamAccountName string `json:"upstream_account_name,omitempty"`
	UpstreamAccountGUID string `json:"upstream_account_guid,omitempty"`

	// Logger receives structured operational events (archive open/seal,
	// delta chain resolution, lazy index loads, commit progress). Never
	// persisted; defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger `json:"-"`
}

// Sources tracks which config files were loaded, for diagnostics.
type Sources struct {
	Global  string
	Project string
}

// DefaultConfig returns the baseline configuration before any file or CLI
// override is applied.
func DefaultConfig() Config {
	return Config{
		ArchiveDir:       ".cms",
		CompressionLevel: -1, // klauspost/compress/flate.DefaultCompression
		Logger:           logrus.StandardLogger(),
	}
}

// LoadConfig loads configuration with precedence (highest wins):
//  1. Defaults
//  2. Global user config ($XDG_CONFIG_HOME/cms/config.json, or
//     ~/.config/cms/config.json)
//  3. Project config: the file at configPath if non-empty (it must exist),
//     otherwise .cms.json in workDir, if present. When configPath is set,
//     .cms.json is not read.
//  4. cliOverrides, field by field, only where the caller set a non-zero
//     value
func LoadConfig(workDir, configPath string, cliOverrides Config, env []string) (Config, Sources, error) {
	cfg := DefaultConfig()

	var sources Sources

	globalCfg, globalPath, err := loadGlobalConfig(env)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Global = globalPath
	cfg = mergeConfig(cfg, globalCfg)

	projectCfg, projectPath, err := loadProjectConfig(workDir, configPath)
	if err != nil {
		return Config{}, Sources{}, err
	}

	sources.Project = projectPath
	cfg = mergeConfig(cfg, projectCfg)

	cfg = mergeConfig(cfg, cliOverrides)

	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, Sources{}, err
	}

	return cfg, sources, nil
}

func getGlobalConfigPath(env []string) string {
	for _, e := range env {
		if after, ok := strings.CutPrefix(e, "XDG_CONFIG_HOME="); ok {
			return filepath.Join(after, "cms", "config.json")
		}
	}

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "cms", "config.json")
	}

	home, err := os.UserHomeDir()
	if err == nil {
		return filepath.Join(home, ".config", "cms", "config.json")
	}

	return ""
}

func loadGlobalConfig(env []string) (Config, string, error) {
	path := getGlobalConfigPath(env)
	if path == "" {
		return Config{}, "", nil
	}

	cfg, loaded, err := loadConfigFile(path, false)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, path, nil
}

func loadProjectConfig(workDir, configPath string) (Config, string, error) {
	var (
		cfgFile   string
		mustExist bool
	)

	if configPath != "" {
		cfgFile = configPath
		if !filepath.IsAbs(cfgFile) {
			cfgFile = filepath.Join(workDir, cfgFile)
		}

		mustExist = true

		if _, err := os.Stat(cfgFile); err != nil {
			return Config{}, "", fmt.Errorf("%w: %s", errConfigFileNotFound, configPath)
		}
	} else {
		cfgFile = filepath.Join(workDir, ConfigFileName)
	}

	cfg, loaded, err := loadConfigFile(cfgFile, mustExist)
	if err != nil {
		return Config{}, "", err
	}

	if !loaded {
		return Config{}, "", nil
	}

	return cfg, cfgFile, nil
}

func loadConfigFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-controlled, not request-controlled
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return Config{}, false, nil
		}

		if mustExist {
			return Config{}, false, fmt.Errorf("%w: %s", errConfigFileRead, path)
		}

		return Config{}, false, nil
	}

	cfg, err := parseConfig(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", errConfigInvalid, path, err)
	}

	return cfg, true, nil
}

func parseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid JSONC: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}

	return cfg, nil
}

func mergeConfig(base, overlay Config) Config {
	if overlay.ArchiveDir != "" {
		base.ArchiveDir = overlay.ArchiveDir
	}

	if overlay.CompressionLevel != 0 {
		base.CompressionLevel = overlay.CompressionLevel
	}

	if overlay.UpstreamSource != "" {
		base.UpstreamSource = overlay.UpstreamSource
	}

	if overlay.UpstreamAccountName != "" {
		base.UpstreamAccountName = overlay.UpstreamAccountName
	}

	if overlay.UpstreamAccountGUID != "" {
		base.UpstreamAccountGUID = overlay.UpstreamAccountGUID
	}

	if overlay.Logger != nil {
		base.Logger = overlay.Logger
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.ArchiveDir == "" {
		return errArchiveDirEmpty
	}

	return nil
}

// FormatConfig renders cfg as indented JSON, for cmd/ diagnostics.
func FormatConfig(cfg Config) (string, error) {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to format config: %w", err)
	}

	return string(data), nil
}
