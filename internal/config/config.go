// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/getsops/sops/v3/decrypt"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/slimy-crypto/slimy/database/plugin"
	"github.com/slimy-crypto/slimy/ledger"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "slimy.config"

const (
	DefaultShutdownTimeout = "30s"
	DefaultBlobPlugin      = "badger"
	DefaultMetadataPlugin  = "sqlite"

	envPrefix = "slimy"
)

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type tempConfig struct {
	Config   *Config                   `yaml:"config,omitempty"`
	Database *databaseConfig           `yaml:"database,omitempty"`
	Blob     map[string]map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]map[string]any `yaml:"metadata,omitempty"`
	Sops     map[string]any            `yaml:"sops,omitempty"`
}

type databaseConfig struct {
	Blob     map[string]any `yaml:"blob,omitempty"`
	Metadata map[string]any `yaml:"metadata,omitempty"`
}

type Config struct {
	DatabasePath          string            `yaml:"databasePath"          split_words:"true"`
	BlobPlugin            string            `yaml:"blobPlugin"            envconfig:"DATABASE_BLOB_PLUGIN"`
	MetadataPlugin        string            `yaml:"metadataPlugin"        envconfig:"DATABASE_METADATA_PLUGIN"`
	BindAddr              string            `yaml:"bindAddr"              split_words:"true"`
	TlsCertFilePath       string            `yaml:"tlsCertFilePath"       envconfig:"TLS_CERT_FILE_PATH"`
	TlsKeyFilePath        string            `yaml:"tlsKeyFilePath"        envconfig:"TLS_KEY_FILE_PATH"`
	ShutdownTimeout       string            `yaml:"shutdownTimeout"       split_words:"true"`
	BreedingPolicy        string            `yaml:"breedingPolicy"        split_words:"true"`
	Admin                 string            `yaml:"admin"`
	GeneScience           string            `yaml:"geneScience"           split_words:"true"`
	GenZeroRecipient      string            `yaml:"genZeroRecipient"      split_words:"true"`
	GeneScienceTimeout    string            `yaml:"geneScienceTimeout"    split_words:"true"`
	CooldownSchedule      []string          `yaml:"cooldownSchedule"      split_words:"true"`
	GeneScienceEndpoints  map[string]string `yaml:"geneScienceEndpoints"  ignored:"true"`
	BaseBirthFee          uint64            `yaml:"baseBirthFee"          split_words:"true"`
	BirthFeePerGeneration uint64            `yaml:"birthFeePerGeneration" split_words:"true"`
	ApiPort               uint              `yaml:"apiPort"               split_words:"true"`
	MetricsPort           uint              `yaml:"metricsPort"           split_words:"true"`
	GenesCacheSize        int               `yaml:"genesCacheSize"        split_words:"true"`
	DispatchWorkers       int               `yaml:"dispatchWorkers"       split_words:"true"`
	DispatchQueueSize     int               `yaml:"dispatchQueueSize"     split_words:"true"`
	LocalGeneScience      bool              `yaml:"localGeneScience"      split_words:"true"`
	Tracing               bool              `yaml:"tracing"`
	TracingStdout         bool              `yaml:"tracingStdout"         split_words:"true"`
}

// Validate checks the values that are only parsed later on
func (c *Config) Validate() error {
	var errs []error
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("invalid shutdownTimeout: %w", err))
	}
	if c.GeneScienceTimeout != "" {
		if _, err := time.ParseDuration(c.GeneScienceTimeout); err != nil {
			errs = append(errs, fmt.Errorf("invalid geneScienceTimeout: %w", err))
		}
	}
	if _, err := c.Cooldowns(); err != nil {
		errs = append(errs, err)
	}
	switch ledger.BreedingPolicy(c.BreedingPolicy) {
	case "", ledger.BreedingPolicySameOwner, ledger.BreedingPolicyOpen:
	default:
		errs = append(
			errs,
			fmt.Errorf(
				"invalid breedingPolicy: %q (must be '%s' or '%s')",
				c.BreedingPolicy,
				ledger.BreedingPolicySameOwner,
				ledger.BreedingPolicyOpen,
			),
		)
	}
	if c.LocalGeneScience && c.GeneScience == "" {
		errs = append(errs, errors.New("localGeneScience requires geneScience"))
	}
	return errors.Join(errs...)
}

// Cooldowns parses the configured cooldown schedule. An empty schedule means
// the ledger default
func (c *Config) Cooldowns() ([]time.Duration, error) {
	if len(c.CooldownSchedule) == 0 {
		return nil, nil
	}
	ret := make([]time.Duration, 0, len(c.CooldownSchedule))
	for _, tmpCooldown := range c.CooldownSchedule {
		d, err := time.ParseDuration(tmpCooldown)
		if err != nil {
			return nil, fmt.Errorf("invalid cooldownSchedule entry %q: %w", tmpCooldown, err)
		}
		ret = append(ret, d)
	}
	return ret, nil
}

func newDefaultConfig() *Config {
	return &Config{
		DatabasePath:    ".slimy",
		BlobPlugin:      DefaultBlobPlugin,
		MetadataPlugin:  DefaultMetadataPlugin,
		BindAddr:        "0.0.0.0",
		ApiPort:         9090,
		MetricsPort:     12799,
		ShutdownTimeout: DefaultShutdownTimeout,
		BreedingPolicy:  string(ledger.BreedingPolicySameOwner),
		BaseBirthFee:    1000,
	}
}

var globalConfig = newDefaultConfig()

// LoadConfig builds the configuration from defaults, the YAML config file, an
// optional .env file and the environment, in that order of precedence
func LoadConfig(configFile string, envFile string) (*Config, error) {
	cfg := newDefaultConfig()
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.slimy/slimy.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".slimy", "slimy.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/slimy/slimy.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/slimy/slimy.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		if err := loadConfigFile(configFile, cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file without overriding variables already in the environment
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("error loading env file: %w", err)
		}
	}

	// Process environment variables
	err := envconfig.Process(envPrefix, cfg)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	// Process plugin environment variables
	err = plugin.ProcessEnvVars()
	if err != nil {
		return nil, fmt.Errorf(
			"error processing plugin environment variables: %w",
			err,
		)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return globalConfig, nil
}

func loadConfigFile(configFile string, cfg *Config) error {
	buf, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	// First unmarshal into temp config to handle plugin sections
	var tempCfg tempConfig
	err = yaml.Unmarshal(buf, &tempCfg)
	if err != nil {
		return fmt.Errorf("error parsing config file: %w", err)
	}

	// Decrypt SOPS encrypted config files and start over
	if tempCfg.Sops != nil {
		buf, err = decrypt.Data(buf, "yaml")
		if err != nil {
			return fmt.Errorf("error decrypting config file: %w", err)
		}
		tempCfg = tempConfig{}
		if err := yaml.Unmarshal(buf, &tempCfg); err != nil {
			return fmt.Errorf("error parsing decrypted config file: %w", err)
		}
	}

	// If config section exists, use it for main config
	if tempCfg.Config != nil {
		// Overlay config values onto existing defaults
		configBytes, err := yaml.Marshal(tempCfg.Config)
		if err != nil {
			return fmt.Errorf("error re-marshalling config: %w", err)
		}
		err = yaml.Unmarshal(configBytes, cfg)
		if err != nil {
			return fmt.Errorf("error parsing config section: %w", err)
		}
	} else {
		// Otherwise unmarshal the whole file as main config
		err = yaml.Unmarshal(buf, cfg)
		if err != nil {
			return fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Process plugin configurations
	pluginConfig := make(map[string]map[string]map[string]any)
	if tempCfg.Blob != nil {
		pluginConfig["blob"] = tempCfg.Blob
	}
	if tempCfg.Metadata != nil {
		pluginConfig["metadata"] = tempCfg.Metadata
	}
	// Handle database section if present
	if tempCfg.Database != nil {
		if tempCfg.Database.Blob != nil {
			if name := extractPluginName(tempCfg.Database.Blob); name != "" {
				cfg.BlobPlugin = name
			}
			mergePluginConfig(pluginConfig, "blob", tempCfg.Database.Blob)
		}
		if tempCfg.Database.Metadata != nil {
			if name := extractPluginName(tempCfg.Database.Metadata); name != "" {
				cfg.MetadataPlugin = name
			}
			mergePluginConfig(pluginConfig, "metadata", tempCfg.Database.Metadata)
		}
	}
	if len(pluginConfig) > 0 {
		err = plugin.ProcessConfig(pluginConfig)
		if err != nil {
			return fmt.Errorf(
				"error processing plugin config: %w",
				err,
			)
		}
	}
	return nil
}

// extractPluginName removes and returns the "plugin" key of a database section
func extractPluginName(section map[string]any) string {
	pluginVal, exists := section["plugin"]
	if !exists {
		return ""
	}
	pluginName, ok := pluginVal.(string)
	if !ok {
		return ""
	}
	delete(section, "plugin")
	return pluginName
}

func mergePluginConfig(
	pluginConfig map[string]map[string]map[string]any,
	pluginType string,
	section map[string]any,
) {
	sectionConfig := make(map[string]map[string]any)
	for k, v := range section {
		if val, ok := v.(map[string]any); ok {
			sectionConfig[k] = val
		} else if val, ok := v.(map[any]any); ok {
			// Convert map[any]any to map[string]any
			stringAnyMap := make(map[string]any)
			for vk, vv := range val {
				if keyStr, ok := vk.(string); ok {
					stringAnyMap[keyStr] = vv
				}
			}
			sectionConfig[k] = stringAnyMap
		} else {
			// Log skipped non-map config entries
			fmt.Fprintf(os.Stderr, "warning: skipping %s config entry %q: expected map, got %T\n", pluginType, k, v)
		}
	}
	// Merge with existing config instead of overwriting
	if pluginConfig[pluginType] == nil {
		pluginConfig[pluginType] = sectionConfig
	} else {
		maps.Copy(pluginConfig[pluginType], sectionConfig)
	}
}

func GetConfig() *Config {
	return globalConfig
}
