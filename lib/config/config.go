// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/ceremony-monitor/lib/coordinator"
	"github.com/bureau-foundation/ceremony-monitor/lib/identity"
)

// EnvironmentVariable names the configuration file for Load.
const EnvironmentVariable = "CEREMONY_MONITOR_CONFIG"

// Config is the monitor's configuration file.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Archive     ArchiveConfig     `yaml:"archive"`
	Journal     JournalConfig     `yaml:"journal"`
	EventStream EventStreamConfig `yaml:"eventstream"`
	Credentials CredentialsConfig `yaml:"credentials"`
}

// CoordinatorConfig describes the coordinator run.
type CoordinatorConfig struct {
	// Binary is the coordinator executable.
	Binary string `yaml:"binary"`

	// OutputDirectory receives config.toml, the archive log, and the
	// transcript. It is the coordinator's working directory.
	OutputDirectory string `yaml:"output_directory"`

	// Environment is development, inner, outer, or universal.
	Environment string `yaml:"environment"`

	// ReplacementContributors are addresses that replace dropped
	// contributors.
	ReplacementContributors []string `yaml:"replacement_contributors"`

	// TerminationGrace is the SIGTERM to SIGKILL delay, as a Go
	// duration string.
	TerminationGrace string `yaml:"termination_grace"`

	// MaxConsecutiveReadErrors bounds consecutive unreadable output
	// lines. Zero disables the bound.
	MaxConsecutiveReadErrors int `yaml:"max_consecutive_read_errors"`
}

// ArchiveConfig controls the coordinator output archive.
type ArchiveConfig struct {
	// Compression is none, zstd, or lz4.
	Compression string `yaml:"compression"`
}

// JournalConfig controls the SQLite event journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// EventStreamConfig controls the CBOR event stream file.
type EventStreamConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CredentialsConfig points at age-sealed API credentials. Both fields
// empty means placeholder credentials.
type CredentialsConfig struct {
	File         string `yaml:"file"`
	IdentityFile string `yaml:"identity_file"`
}

// Default returns a Config with every optional field filled.
func Default() *Config {
	return &Config{
		Coordinator: CoordinatorConfig{
			Environment:              string(coordinator.EnvironmentDevelopment),
			TerminationGrace:         coordinator.DefaultTerminationGrace.String(),
			MaxConsecutiveReadErrors: 1000,
		},
		Archive: ArchiveConfig{
			Compression: string(coordinator.CompressionNone),
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "${OUTPUT_DIRECTORY}/events.db",
		},
		EventStream: EventStreamConfig{
			Enabled: true,
			Path:    "${OUTPUT_DIRECTORY}/events.cbor",
		},
	}
}

// Load reads the file named by CEREMONY_MONITOR_CONFIG.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of the monitor's YAML config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(path)
}

// LoadFile reads path over Default and expands path variables. Unknown
// keys are an error. The result is not validated; call Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	config := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	config.expandVariables()
	return config, nil
}

func (c *Config) expandVariables() {
	c.Coordinator.Binary = expandVars(c.Coordinator.Binary, nil)
	c.Coordinator.OutputDirectory = expandVars(c.Coordinator.OutputDirectory, nil)

	vars := map[string]string{"OUTPUT_DIRECTORY": c.Coordinator.OutputDirectory}
	c.Journal.Path = expandVars(c.Journal.Path, vars)
	c.EventStream.Path = expandVars(c.EventStream.Path, vars)
	c.Credentials.File = expandVars(c.Credentials.File, vars)
	c.Credentials.IdentityFile = expandVars(c.Credentials.IdentityFile, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars substitutes from vars first, then the process
// environment, then the inline default.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Coordinator.Binary == "" {
		errs = append(errs, errors.New("coordinator.binary is required"))
	}
	if c.Coordinator.OutputDirectory == "" {
		errs = append(errs, errors.New("coordinator.output_directory is required"))
	}
	if _, err := coordinator.ParseEnvironment(c.Coordinator.Environment); err != nil {
		errs = append(errs, fmt.Errorf("coordinator.environment: %w", err))
	}
	for index, address := range c.Coordinator.ReplacementContributors {
		if _, err := identity.ParseAddress(address); err != nil {
			errs = append(errs, fmt.Errorf("coordinator.replacement_contributors[%d]: %w", index, err))
		}
	}
	if grace, err := time.ParseDuration(c.Coordinator.TerminationGrace); err != nil {
		errs = append(errs, fmt.Errorf("coordinator.termination_grace: %w", err))
	} else if grace <= 0 {
		errs = append(errs, errors.New("coordinator.termination_grace must be positive"))
	}
	if c.Coordinator.MaxConsecutiveReadErrors < 0 {
		errs = append(errs, errors.New("coordinator.max_consecutive_read_errors must be >= 0"))
	}
	if _, err := coordinator.ParseCompression(c.Archive.Compression); err != nil {
		errs = append(errs, fmt.Errorf("archive.compression: %w", err))
	}
	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, errors.New("journal.path is required when the journal is enabled"))
	}
	if c.EventStream.Enabled && c.EventStream.Path == "" {
		errs = append(errs, errors.New("eventstream.path is required when the event stream is enabled"))
	}
	if (c.Credentials.File == "") != (c.Credentials.IdentityFile == "") {
		errs = append(errs, errors.New("credentials.file and credentials.identity_file must be set together"))
	}

	return errors.Join(errs...)
}

// TerminationGrace returns the parsed coordinator.termination_grace.
// Call after Validate.
func (c *Config) TerminationGrace() time.Duration {
	grace, err := time.ParseDuration(c.Coordinator.TerminationGrace)
	if err != nil {
		return coordinator.DefaultTerminationGrace
	}
	return grace
}

// Compression returns the parsed archive.compression. Call after
// Validate.
func (c *Config) Compression() coordinator.Compression {
	compression, err := coordinator.ParseCompression(c.Archive.Compression)
	if err != nil {
		return coordinator.CompressionNone
	}
	return compression
}

// RunConfig converts the file to a coordinator.RunConfig, decrypting
// sealed credentials if configured.
func (c *Config) RunConfig() (coordinator.RunConfig, error) {
	environment, err := coordinator.ParseEnvironment(c.Coordinator.Environment)
	if err != nil {
		return coordinator.RunConfig{}, err
	}
	replacements := make([]identity.Address, 0, len(c.Coordinator.ReplacementContributors))
	for _, text := range c.Coordinator.ReplacementContributors {
		address, err := identity.ParseAddress(text)
		if err != nil {
			return coordinator.RunConfig{}, fmt.Errorf("replacement contributor: %w", err)
		}
		replacements = append(replacements, address)
	}

	run := coordinator.RunConfig{
		Binary:                  c.Coordinator.Binary,
		Environment:             environment,
		OutputDirectory:         c.Coordinator.OutputDirectory,
		ReplacementContributors: replacements,
	}
	if c.Credentials.File != "" {
		credentials, err := coordinator.LoadCredentials(c.Credentials.File, c.Credentials.IdentityFile)
		if err != nil {
			return coordinator.RunConfig{}, err
		}
		run.Credentials = credentials
	}
	return run, nil
}
