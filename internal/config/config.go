// Package config reads sealdoc configuration files and turns them into
// storage options. A config file is YAML; every field is optional and flags
// given on the command line take precedence over it.
//
//	path: /var/lib/app/state.db
//	mode: r+
//	create_dirs: true
//	encryption: true
//	key_file: /etc/app/state.key
//	compression: true
//	indent: "  "
//	load_timeout: 10s
//	history: ~/.sealdoc/history
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dekarrin/sealdoc/internal/codec"
	"dekarrin/sealdoc/internal/persist"
	"dekarrin/sealdoc/internal/storage"

	"gopkg.in/yaml.v2"
)

// Config is the contents of a config file.
type Config struct {
	Path        string `yaml:"path"`
	Mode        string `yaml:"mode"`
	CreateDirs  bool   `yaml:"create_dirs"`
	Encryption  bool   `yaml:"encryption"`
	KeyFile     string `yaml:"key_file"`
	KeyEnv      string `yaml:"key_env"`
	Compression bool   `yaml:"compression"`
	Indent      string `yaml:"indent"`
	LoadTimeout string `yaml:"load_timeout"`
	History     string `yaml:"history"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Mode:        "r+",
		LoadTimeout: storage.DefaultLoadTimeout.String(),
	}
}

// Load reads the config file at path on top of Default. Unknown keys are an
// error so that typos do not silently leave a setting at its default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load on config file contents.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse config: %v", storage.ErrConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields that have a fixed set of valid values.
func (c Config) Validate() error {
	if _, err := persist.ParseAllowedOperations(c.Mode); err != nil {
		return fmt.Errorf("%w: mode: %v", storage.ErrConfig, err)
	}
	if _, err := c.Timeout(); err != nil {
		return err
	}
	if c.KeyFile != "" && c.KeyEnv != "" {
		return fmt.Errorf("%w: only one of key_file and key_env can be set", storage.ErrConfig)
	}
	if strings.Trim(c.Indent, " \t") != "" {
		return fmt.Errorf("%w: indent must be only spaces and tabs", storage.ErrConfig)
	}
	return nil
}

// Timeout parses LoadTimeout. An empty value gives zero, which storage
// treats as its default.
func (c Config) Timeout() (time.Duration, error) {
	if c.LoadTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.LoadTimeout)
	if err != nil {
		return 0, fmt.Errorf("%w: load_timeout: %v", storage.ErrConfig, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: load_timeout cannot be negative", storage.ErrConfig)
	}
	return d, nil
}

// NeedsKeyPrompt returns whether encryption is on but no source of key
// material is configured.
func (c Config) NeedsKeyPrompt() bool {
	return c.Encryption && c.KeyFile == "" && c.KeyEnv == ""
}

// LoadKey reads the key material from the configured key file or
// environment variable. Trailing newlines in a key file are dropped. It
// returns nil and no error if neither is configured.
func (c Config) LoadKey() ([]byte, error) {
	switch {
	case c.KeyFile != "":
		return ReadKeyFile(c.KeyFile)
	case c.KeyEnv != "":
		v, ok := os.LookupEnv(c.KeyEnv)
		if !ok || v == "" {
			return nil, fmt.Errorf("%w: environment variable %s is not set", storage.ErrConfig, c.KeyEnv)
		}
		return []byte(v), nil
	default:
		return nil, nil
	}
}

// ReadKeyFile reads key material from a file, dropping trailing newlines.
func ReadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("%w: read key file: %v", storage.ErrConfig, err)
	}
	data = bytes.TrimRight(data, "\r\n")
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: key file %s is empty", storage.ErrConfig, path)
	}
	return data, nil
}

// Options builds storage options from the config and already-loaded key
// material.
func (c Config) Options(key []byte) (storage.Options, error) {
	if err := c.Validate(); err != nil {
		return storage.Options{}, err
	}
	mode, _ := persist.ParseAllowedOperations(c.Mode)
	timeout, _ := c.Timeout()

	return storage.Options{
		Mode:        mode,
		CreateDirs:  c.CreateDirs,
		Encryption:  c.Encryption,
		Key:         key,
		Compression: c.Compression,
		Serializer:  codec.JSONSerializer{Indent: c.Indent},
		LoadTimeout: timeout,
	}, nil
}

// ExpandHome replaces a leading "~/" with the current user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
