// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Gantry components.
//
// Configuration is loaded from a single YAML file specified by:
//   - GANTRY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery, and environment
// variables never override individual values. This ensures
// deterministic, auditable configuration with no hidden overrides.
// The only expansion performed is ${VAR} / ${VAR:-default} in path
// values, for portability of file locations.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gantry-foundation/gantry/lib/ref"
)

// Config is the master configuration for the bridge identity plane.
type Config struct {
	// Homeserver identifies the Matrix homeserver the bridge serves.
	Homeserver HomeserverConfig `yaml:"homeserver"`

	// Appservice holds the bridge's appservice registration values.
	Appservice AppserviceConfig `yaml:"appservice"`

	// Bridge configures identity templates and account linking.
	Bridge BridgeConfig `yaml:"bridge"`

	// Database configures the SQLite store.
	Database DatabaseConfig `yaml:"database"`
}

// HomeserverConfig identifies the Matrix homeserver.
type HomeserverConfig struct {
	// Address is the client-server API base URL
	// (e.g. "http://localhost:8008").
	Address string `yaml:"address"`

	// Domain is the server name used in user IDs
	// (e.g. "example.com"). Distinct from Address: the domain is an
	// identity namespace, the address is a network location.
	Domain string `yaml:"domain"`
}

// AppserviceConfig holds the values from the bridge's appservice
// registration file on the homeserver.
type AppserviceConfig struct {
	// ASToken authenticates the bridge to the homeserver. Every
	// ghost action is performed with this token plus user_id
	// impersonation.
	ASToken string `yaml:"as_token"`

	// BotUsername is the localpart of the bridge bot account
	// (e.g. "linebot").
	BotUsername string `yaml:"bot_username"`

	// BotDisplayName is applied to the bot account during setup.
	// Empty leaves the profile untouched.
	BotDisplayName string `yaml:"bot_displayname"`
}

// BridgeConfig configures identity templates and account linking.
type BridgeConfig struct {
	// UsernameTemplate maps remote ids to ghost localparts. Must
	// contain {id} exactly once (e.g. "line_{id}").
	UsernameTemplate string `yaml:"username_template"`

	// DisplaynameTemplate maps observed remote names to ghost
	// display names. Must contain {name} exactly once
	// (e.g. "{name} (LINE)").
	DisplaynameTemplate string `yaml:"displayname_template"`

	// DisplaynameMaxLength caps rendered display names in runes.
	// 0 disables the cap.
	DisplaynameMaxLength int `yaml:"displayname_max_length"`

	// LoginSharedSecret enables double-puppeting: when set, bridge
	// users can be logged in to their own Matrix accounts with an
	// HMAC-derived password (shared-secret auth on the homeserver).
	// Empty disables the feature.
	LoginSharedSecret string `yaml:"login_shared_secret"`

	// CredentialsRecipient is the age public key (age1...) that
	// remote-network login credentials are sealed to before storage.
	// Required only when credentials are stored.
	CredentialsRecipient string `yaml:"credentials_recipient"`

	// CredentialsKeyFile is the path to the age private key used to
	// unseal stored credentials. Read only by components that need
	// the plaintext.
	CredentialsKeyFile string `yaml:"credentials_key_file"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite database file.
	Path string `yaml:"path"`

	// PoolSize is the number of pooled connections. Defaults to 4.
	PoolSize int `yaml:"pool_size"`
}

// Default returns the default configuration. These defaults ensure
// all fields have sensible zero-values before the file is merged in;
// the config file itself is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Homeserver: HomeserverConfig{
			Address: "http://localhost:8008",
		},
		Bridge: BridgeConfig{
			DisplaynameTemplate: "{name}",
		},
		Database: DatabaseConfig{
			Path:     filepath.Join(homeDir, ".local", "share", "gantry", "gantry.db"),
			PoolSize: 4,
		},
	}
}

// Load loads configuration from the GANTRY_CONFIG environment
// variable. There are no fallbacks — if GANTRY_CONFIG is not set,
// this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("GANTRY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("GANTRY_CONFIG environment variable not set; " +
			"set it to the path of your gantry.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over Default() and expanding ${VAR} patterns in path values.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in the
// values that hold filesystem paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Database.Path = expandVars(c.Database.Path, vars)
	c.Bridge.CredentialsKeyFile = expandVars(c.Bridge.CredentialsKeyFile, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together so a misconfigured deployment is fixed in one
// round trip.
func (c *Config) Validate() error {
	var errs []error

	if c.Homeserver.Address == "" {
		errs = append(errs, fmt.Errorf("homeserver.address is required"))
	} else if !strings.HasPrefix(c.Homeserver.Address, "http://") && !strings.HasPrefix(c.Homeserver.Address, "https://") {
		errs = append(errs, fmt.Errorf("homeserver.address %q must be an http(s) URL", c.Homeserver.Address))
	}

	if c.Homeserver.Domain == "" {
		errs = append(errs, fmt.Errorf("homeserver.domain is required"))
	} else if _, err := ref.ParseServerName(c.Homeserver.Domain); err != nil {
		errs = append(errs, fmt.Errorf("homeserver.domain: %w", err))
	}

	if c.Appservice.ASToken == "" {
		errs = append(errs, fmt.Errorf("appservice.as_token is required"))
	}
	if c.Appservice.BotUsername == "" {
		errs = append(errs, fmt.Errorf("appservice.bot_username is required"))
	} else if err := ref.ValidateLocalpart(c.Appservice.BotUsername); err != nil {
		errs = append(errs, fmt.Errorf("appservice.bot_username: %w", err))
	}

	if c.Bridge.UsernameTemplate == "" {
		errs = append(errs, fmt.Errorf("bridge.username_template is required"))
	} else if !strings.Contains(c.Bridge.UsernameTemplate, "{id}") {
		errs = append(errs, fmt.Errorf("bridge.username_template %q must contain {id}", c.Bridge.UsernameTemplate))
	}

	if c.Bridge.DisplaynameTemplate == "" {
		errs = append(errs, fmt.Errorf("bridge.displayname_template is required"))
	} else if !strings.Contains(c.Bridge.DisplaynameTemplate, "{name}") {
		errs = append(errs, fmt.Errorf("bridge.displayname_template %q must contain {name}", c.Bridge.DisplaynameTemplate))
	}

	if c.Bridge.DisplaynameMaxLength < 0 {
		errs = append(errs, fmt.Errorf("bridge.displayname_max_length must not be negative"))
	}

	if c.Database.Path == "" {
		errs = append(errs, fmt.Errorf("database.path is required"))
	}
	if c.Database.PoolSize < 1 {
		errs = append(errs, fmt.Errorf("database.pool_size must be at least 1"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ServerName returns the homeserver domain as a typed server name.
// Call Validate first; this panics on an invalid domain.
func (c *Config) ServerName() ref.ServerName {
	return ref.MustParseServerName(c.Homeserver.Domain)
}

// BotUserID returns the bridge bot's Matrix user ID. Call Validate
// first; this panics on invalid parts.
func (c *Config) BotUserID() ref.UserID {
	userID, err := ref.MakeUserID(c.Appservice.BotUsername, c.ServerName())
	if err != nil {
		panic(fmt.Sprintf("config: bot user ID: %v", err))
	}
	return userID
}
