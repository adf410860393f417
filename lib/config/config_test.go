// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"filippo.io/age"

	"github.com/bureau-foundation/ceremony-monitor/lib/coordinator"
)

const testAddress = "aleo1hsr8czcmxxanpv6cvwct75wep5ldhd2s702zm8la47dwcxjveypqsv7689"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	config := Default()
	if config.Coordinator.Environment != "development" {
		t.Errorf("environment = %s, want development", config.Coordinator.Environment)
	}
	if config.TerminationGrace() != coordinator.DefaultTerminationGrace {
		t.Errorf("TerminationGrace = %v", config.TerminationGrace())
	}
	if !config.Journal.Enabled || !config.EventStream.Enabled {
		t.Error("journal and event stream should be enabled by default")
	}
	if config.Compression() != coordinator.CompressionNone {
		t.Errorf("Compression = %s, want none", config.Compression())
	}
	// Binary and output directory have no defaults.
	if err := config.Validate(); err == nil {
		t.Error("Validate accepted a config with no binary")
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("CEREMONY_ROOT", "/srv/ceremony")
	path := writeConfig(t, `
coordinator:
  binary: ${CEREMONY_ROOT}/bin/phase1-coordinator
  output_directory: ${CEREMONY_ROOT}/out
  environment: inner
  replacement_contributors:
    - `+testAddress+`
  termination_grace: 30s
archive:
  compression: zstd
eventstream:
  enabled: false
`)

	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if err := config.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if config.Coordinator.Binary != "/srv/ceremony/bin/phase1-coordinator" {
		t.Errorf("binary = %s", config.Coordinator.Binary)
	}
	if config.Journal.Path != "/srv/ceremony/out/events.db" {
		t.Errorf("journal path = %s, want it under the output directory", config.Journal.Path)
	}
	if config.EventStream.Enabled {
		t.Error("eventstream.enabled: false was not applied")
	}
	if config.TerminationGrace() != 30*time.Second {
		t.Errorf("TerminationGrace = %v, want 30s", config.TerminationGrace())
	}
	if config.Compression() != coordinator.CompressionZstd {
		t.Errorf("Compression = %s, want zstd", config.Compression())
	}
	if config.Coordinator.MaxConsecutiveReadErrors != 1000 {
		t.Errorf("unset max_consecutive_read_errors = %d, want the default", config.Coordinator.MaxConsecutiveReadErrors)
	}

	run, err := config.RunConfig()
	if err != nil {
		t.Fatalf("RunConfig: %v", err)
	}
	if run.Environment != coordinator.EnvironmentInner || run.OutputDirectory != "/srv/ceremony/out" {
		t.Errorf("RunConfig = %+v", run)
	}
	if len(run.ReplacementContributors) != 1 || run.ReplacementContributors[0].String() != testAddress {
		t.Errorf("ReplacementContributors = %v", run.ReplacementContributors)
	}
	if run.Credentials != nil {
		t.Error("Credentials set without a credentials file")
	}
}

func TestLoadFileDefaultExpansion(t *testing.T) {
	path := writeConfig(t, `
coordinator:
  binary: /bin/coordinator
  output_directory: ${CEREMONY_TEST_UNSET_VARIABLE:-/var/lib/ceremony}
`)
	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if config.Coordinator.OutputDirectory != "/var/lib/ceremony" {
		t.Errorf("output_directory = %s, want the inline default", config.Coordinator.OutputDirectory)
	}
	if config.EventStream.Path != "/var/lib/ceremony/events.cbor" {
		t.Errorf("eventstream path = %s", config.EventStream.Path)
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile of a missing file succeeded")
	}
	if _, err := LoadFile(writeConfig(t, "coordinator:\n  binry: /bin/x\n")); err == nil {
		t.Error("LoadFile accepted an unknown key")
	}
	if _, err := LoadFile(writeConfig(t, "coordinator: [\n")); err == nil {
		t.Error("LoadFile accepted malformed YAML")
	}
	config, err := LoadFile(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("LoadFile of an empty file: %v", err)
	}
	if config.Coordinator.Environment != "development" {
		t.Error("empty file did not yield defaults")
	}
}

func TestLoad(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), EnvironmentVariable) {
		t.Errorf("Load without %s: error = %v", EnvironmentVariable, err)
	}

	t.Setenv(EnvironmentVariable, writeConfig(t, "coordinator:\n  binary: /bin/coordinator\n  output_directory: /out\n"))
	config, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if config.Coordinator.Binary != "/bin/coordinator" {
		t.Errorf("binary = %s", config.Coordinator.Binary)
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	config := Default()
	config.Coordinator.Environment = "staging"
	config.Coordinator.ReplacementContributors = []string{"aleo1short"}
	config.Coordinator.TerminationGrace = "soon"
	config.Archive.Compression = "gzip"
	config.Journal.Path = ""
	config.Credentials.File = "/etc/ceremony/credentials.age"

	err := config.Validate()
	if err == nil {
		t.Fatal("Validate succeeded")
	}
	for _, want := range []string{
		"coordinator.binary",
		"coordinator.output_directory",
		"coordinator.environment",
		"replacement_contributors[0]",
		"termination_grace",
		"archive.compression",
		"journal.path",
		"credentials.identity_file",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error does not mention %s:\n%v", want, err)
		}
	}
}

func TestRunConfigLoadsSealedCredentials(t *testing.T) {
	directory := t.TempDir()
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		t.Fatal(err)
	}
	identityPath := filepath.Join(directory, "identity.txt")
	if err := os.WriteFile(identityPath, []byte(identity.String()+"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	want := coordinator.APICredentials{ConsumerToken: "real-token", ConsumerSecret: "real-secret"}
	sealed, err := coordinator.SealCredentials(want, []string{identity.Recipient().String()})
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(directory, "credentials.age"), sealed, 0600); err != nil {
		t.Fatal(err)
	}

	path := writeConfig(t, `
coordinator:
  binary: /bin/coordinator
  output_directory: `+directory+`
credentials:
  file: ${OUTPUT_DIRECTORY}/credentials.age
  identity_file: `+identityPath+`
`)
	config, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	run, err := config.RunConfig()
	if err != nil {
		t.Fatalf("RunConfig: %v", err)
	}
	if run.Credentials == nil || *run.Credentials != want {
		t.Errorf("Credentials = %+v, want %+v", run.Credentials, want)
	}
}
