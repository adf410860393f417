// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"

	"github.com/bureau-foundation/ceremony-monitor/lib/identity"
)

// Environment selects the ceremony setup the coordinator runs.
type Environment string

const (
	EnvironmentDevelopment Environment = "development"
	EnvironmentInner       Environment = "inner"
	EnvironmentOuter       Environment = "outer"
	EnvironmentUniversal   Environment = "universal"
)

// ParseEnvironment validates an environment name.
func ParseEnvironment(name string) (Environment, error) {
	switch Environment(name) {
	case EnvironmentDevelopment, EnvironmentInner, EnvironmentOuter, EnvironmentUniversal:
		return Environment(name), nil
	default:
		return "", fmt.Errorf("unknown environment %q (want development, inner, outer, or universal)", name)
	}
}

// RunConfig describes one coordinator run.
type RunConfig struct {
	// Binary is the coordinator executable.
	Binary string

	// Environment is the ceremony setup to run.
	Environment Environment

	// OutputDirectory holds every artifact of the run and is the
	// coordinator's working directory.
	OutputDirectory string

	// ReplacementContributors substitute for contributors dropped
	// mid-round.
	ReplacementContributors []identity.Address

	// Credentials fill the document's API settings. Nil uses
	// DefaultAPICredentials.
	Credentials *APICredentials
}

// TranscriptDir is where the coordinator writes round transcripts.
// The development setup nests them one level deeper.
func (r RunConfig) TranscriptDir() string {
	if r.Environment == EnvironmentDevelopment {
		return filepath.Join(r.OutputDirectory, "transcript", "development")
	}
	return filepath.Join(r.OutputDirectory, "transcript")
}

// ConfigPath is where the configuration document is written.
func (r RunConfig) ConfigPath() string {
	return filepath.Join(r.OutputDirectory, "config.toml")
}

// ArchivePath is where the coordinator's output is archived.
func (r RunConfig) ArchivePath() string {
	return filepath.Join(r.OutputDirectory, "coordinator.log")
}

// Document is the coordinator's configuration file, passed to it
// with --config.
type Document struct {
	ListenAddress           string                `toml:"listen_address"`
	SQLiteFile              string                `toml:"sqlite_file"`
	Setup                   Environment           `toml:"setup"`
	ReplacementContributors []identity.Address    `toml:"replacement_contributors"`
	RuntimeParameters       RuntimeParameters     `toml:"runtime_parameters"`
	EnvironmentParameters   EnvironmentParameters `toml:"environment_parameters"`
	VerifierSettings        VerifierSettings      `toml:"verifier_settings"`
	ReliabilityCheck        ReliabilityCheck      `toml:"reliability_check"`
	TwitterSettings         APICredentials        `toml:"twitter_settings"`
}

type RuntimeParameters struct {
	// OperatorUpdateLoopDelay is in milliseconds.
	OperatorUpdateLoopDelay uint64 `toml:"operator_update_loop_delay"`
	RayonGlobalPoolThreads  uint16 `toml:"rayon_global_pool_threads"`
}

// EnvironmentParameters bound round size; timeouts are in seconds.
type EnvironmentParameters struct {
	MinimumContributorsPerRound uint64 `toml:"minimum_contributors_per_round"`
	MaximumContributorsPerRound uint64 `toml:"maximum_contributors_per_round"`
	ContributorSeenTimeout      int64  `toml:"contributor_seen_timeout"`
	ParticipantLockTimeout      int64  `toml:"participant_lock_timeout"`
	QueueSeenTimeout            int64  `toml:"queue_seen_timeout"`
}

type VerifierSettings struct {
	AssignedTasksCacheTTL        uint64 `toml:"assigned_tasks_cache_ttl"`
	AssignedTasksCacheRecordsCap uint64 `toml:"assigned_tasks_cache_records_cap"`
}

type ReliabilityCheck struct {
	IsEnabled          bool   `toml:"is_enabled"`
	AcceptThreshold    uint8  `toml:"accept_threshold"`
	MaximumScore       uint8  `toml:"maximum_score"`
	EstimationInterval uint8  `toml:"estimation_interval"`
	NumberOfChallenges uint8  `toml:"number_of_challenges"`
	ChallengeSize      uint64 `toml:"challenge_size"`
	TotalSize          uint8  `toml:"total_size"`
	BatchSize          uint8  `toml:"batch_size"`
}

// BuildDocument returns the fully defaulted document for run.
func BuildDocument(run RunConfig) Document {
	replacements := make([]identity.Address, len(run.ReplacementContributors))
	copy(replacements, run.ReplacementContributors)

	credentials := DefaultAPICredentials()
	if run.Credentials != nil {
		credentials = *run.Credentials
	}

	return Document{
		ListenAddress:           "0.0.0.0:9000",
		SQLiteFile:              "setup.db3",
		Setup:                   run.Environment,
		ReplacementContributors: replacements,
		RuntimeParameters: RuntimeParameters{
			OperatorUpdateLoopDelay: 10_000,
			RayonGlobalPoolThreads:  30,
		},
		EnvironmentParameters: EnvironmentParameters{
			MinimumContributorsPerRound: 1,
			MaximumContributorsPerRound: 5,
			ContributorSeenTimeout:      3600,
			ParticipantLockTimeout:      900,
			QueueSeenTimeout:            3600,
		},
		VerifierSettings: VerifierSettings{
			AssignedTasksCacheTTL:        60,
			AssignedTasksCacheRecordsCap: 1000,
		},
		ReliabilityCheck: ReliabilityCheck{
			IsEnabled:          false,
			AcceptThreshold:    8,
			MaximumScore:       100,
			EstimationInterval: 60,
			NumberOfChallenges: 10,
			ChallengeSize:      6291456,
			TotalSize:          11,
			BatchSize:          2,
		},
		TwitterSettings: credentials,
	}
}

// Validate checks the constraints the coordinator enforces at
// startup, so a bad document fails before launch.
func (d Document) Validate() error {
	var errs []error
	if d.ListenAddress == "" {
		errs = append(errs, errors.New("listen_address is required"))
	}
	if _, err := ParseEnvironment(string(d.Setup)); err != nil {
		errs = append(errs, fmt.Errorf("setup: %w", err))
	}
	for index, address := range d.ReplacementContributors {
		if address.IsZero() {
			errs = append(errs, fmt.Errorf("replacement_contributors[%d] is empty", index))
		}
	}
	if d.RuntimeParameters.OperatorUpdateLoopDelay == 0 {
		errs = append(errs, errors.New("runtime_parameters.operator_update_loop_delay must be non-zero"))
	}
	if d.RuntimeParameters.RayonGlobalPoolThreads == 0 {
		errs = append(errs, errors.New("runtime_parameters.rayon_global_pool_threads must be non-zero"))
	}
	parameters := d.EnvironmentParameters
	if parameters.MinimumContributorsPerRound == 0 {
		errs = append(errs, errors.New("environment_parameters.minimum_contributors_per_round must be non-zero"))
	}
	if parameters.MaximumContributorsPerRound < parameters.MinimumContributorsPerRound {
		errs = append(errs, errors.New("environment_parameters.maximum_contributors_per_round is below the minimum"))
	}
	if d.VerifierSettings.AssignedTasksCacheTTL == 0 || d.VerifierSettings.AssignedTasksCacheRecordsCap == 0 {
		errs = append(errs, errors.New("verifier_settings values must be non-zero"))
	}
	if d.ReliabilityCheck.AcceptThreshold == 0 {
		errs = append(errs, errors.New("reliability_check.accept_threshold must be non-zero"))
	}
	return errors.Join(errs...)
}

// Marshal encodes the document as TOML. Encoding is deterministic:
// field order follows the struct.
func (d Document) Marshal() ([]byte, error) {
	data, err := toml.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigSerialization, err)
	}
	return data, nil
}

// ParseDocument decodes a document produced by Marshal. Unknown keys
// are rejected.
func ParseDocument(data []byte) (Document, error) {
	var document Document
	decoder := toml.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&document); err != nil {
		return Document{}, fmt.Errorf("parsing coordinator configuration: %w", err)
	}
	if document.ReplacementContributors == nil {
		document.ReplacementContributors = []identity.Address{}
	}
	return document, nil
}

// WriteDocument builds, validates, and writes the document for run to
// run.ConfigPath(), returning the canonical path to pass to the
// coordinator. The file is written to a temporary name and renamed
// into place.
func WriteDocument(run RunConfig) (string, Document, error) {
	document := BuildDocument(run)
	if err := document.Validate(); err != nil {
		return "", Document{}, fmt.Errorf("%w: %v", ErrConfigSerialization, err)
	}
	data, err := document.Marshal()
	if err != nil {
		return "", Document{}, err
	}

	path := run.ConfigPath()
	temporaryPath := path + ".tmp." + strconv.Itoa(os.Getpid())
	if err := os.WriteFile(temporaryPath, data, 0600); err != nil {
		return "", Document{}, fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		os.Remove(temporaryPath)
		return "", Document{}, fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}

	canonical, err := canonicalPath(path)
	if err != nil {
		return "", Document{}, fmt.Errorf("%w: %v", ErrConfigWrite, err)
	}
	return canonical, document, nil
}

func canonicalPath(path string) (string, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return "", fmt.Errorf("canonicalizing %s: %w", path, err)
	}
	return resolved, nil
}
