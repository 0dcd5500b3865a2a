package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "45s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// LanguageConfig overrides one language's runner behavior.
type LanguageConfig struct {
	// StartCommand replaces the built-in interpreter command line.
	StartCommand []string `yaml:"start_command,omitempty"`
	// Timeout bounds a single call. Zero keeps the built-in default.
	Timeout Duration `yaml:"timeout,omitempty"`
	// SkipLines drops the first N output lines of every call, for REPLs
	// that echo submitted input.
	SkipLines int `yaml:"skip_lines,omitempty"`
}

// Config is the on-disk configuration, keyed by canonical language name.
type Config struct {
	Languages map[string]LanguageConfig `yaml:"languages,omitempty"`

	// LogFile receives a copy of the structured log when set.
	LogFile string `yaml:"log_file,omitempty"`
	// LogLevel is debug, info, warn or error. Default info.
	LogLevel string `yaml:"log_level,omitempty"`
	// HistoryDisabled turns off run recording.
	HistoryDisabled bool `yaml:"history_disabled,omitempty"`
}

// Load reads the config file, returning defaults when it does not exist.
func Load() (*Config, error) {
	configFile, err := GetConfigFile()
	if err != nil {
		return nil, err
	}
	return LoadFrom(configFile)
}

// LoadFrom reads a config file from an explicit path.
func LoadFrom(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	for name, lang := range cfg.Languages {
		for i := range lang.StartCommand {
			lang.StartCommand[i] = expandEnvVars(lang.StartCommand[i])
		}
		cfg.Languages[name] = lang
	}
	cfg.LogFile = expandEnvVars(cfg.LogFile)

	return &cfg, nil
}

// EnsureConfigExists writes a commented starter config on first run.
func EnsureConfigExists() error {
	configFile, err := GetConfigFile()
	if err != nil {
		return err
	}

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		defaultConfig := `# runcell configuration
#
# Per-language runner overrides, keyed by canonical language name
# (shell, python, ruby, r, php, javascript, applescript).
#
# languages:
#   python:
#     start_command: ["python3.12", "-i", "-q", "-u"]
#     timeout: 60s
#   shell:
#     skip_lines: 0
#
# log_file: ${HOME}/.config/runcell/logs/runcell.log
# log_level: info
# history_disabled: false
`

		if err := os.WriteFile(configFile, []byte(defaultConfig), 0644); err != nil {
			return err
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR_NAME}
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}

	return os.Expand(s, func(key string) string {
		return os.Getenv(key)
	})
}
