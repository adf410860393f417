// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package coordinator

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/bureau-foundation/ceremony-monitor/lib/identity"
)

func documentsEqual(a, b Document) bool {
	return a.ListenAddress == b.ListenAddress &&
		a.SQLiteFile == b.SQLiteFile &&
		a.Setup == b.Setup &&
		slices.Equal(a.ReplacementContributors, b.ReplacementContributors) &&
		a.RuntimeParameters == b.RuntimeParameters &&
		a.EnvironmentParameters == b.EnvironmentParameters &&
		a.VerifierSettings == b.VerifierSettings &&
		a.ReliabilityCheck == b.ReliabilityCheck &&
		a.TwitterSettings == b.TwitterSettings
}

func TestBuildDocumentDefaults(t *testing.T) {
	document := BuildDocument(RunConfig{
		Environment:             EnvironmentDevelopment,
		OutputDirectory:         "/tmp/out",
		ReplacementContributors: []identity.Address{contributor},
	})

	if document.ListenAddress != "0.0.0.0:9000" || document.SQLiteFile != "setup.db3" {
		t.Errorf("server settings = %q %q", document.ListenAddress, document.SQLiteFile)
	}
	if document.Setup != EnvironmentDevelopment {
		t.Errorf("Setup = %q, want development", document.Setup)
	}
	if !slices.Equal(document.ReplacementContributors, []identity.Address{contributor}) {
		t.Errorf("ReplacementContributors = %v", document.ReplacementContributors)
	}
	if document.RuntimeParameters != (RuntimeParameters{OperatorUpdateLoopDelay: 10000, RayonGlobalPoolThreads: 30}) {
		t.Errorf("RuntimeParameters = %+v", document.RuntimeParameters)
	}
	wantEnvironment := EnvironmentParameters{
		MinimumContributorsPerRound: 1,
		MaximumContributorsPerRound: 5,
		ContributorSeenTimeout:      3600,
		ParticipantLockTimeout:      900,
		QueueSeenTimeout:            3600,
	}
	if document.EnvironmentParameters != wantEnvironment {
		t.Errorf("EnvironmentParameters = %+v", document.EnvironmentParameters)
	}
	if document.ReliabilityCheck.IsEnabled || document.ReliabilityCheck.ChallengeSize != 6291456 {
		t.Errorf("ReliabilityCheck = %+v", document.ReliabilityCheck)
	}
	if document.TwitterSettings != DefaultAPICredentials() {
		t.Errorf("TwitterSettings = %+v, want defaults", document.TwitterSettings)
	}
	if err := document.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestBuildDocumentCopiesReplacements(t *testing.T) {
	replacements := []identity.Address{contributor}
	document := BuildDocument(RunConfig{Environment: EnvironmentInner, ReplacementContributors: replacements})
	replacements[0] = verifier
	if document.ReplacementContributors[0] != contributor {
		t.Error("document shares the caller's replacement slice")
	}

	empty := BuildDocument(RunConfig{Environment: EnvironmentInner})
	if empty.ReplacementContributors == nil {
		t.Error("ReplacementContributors is nil, want empty")
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	credentials := APICredentials{ConsumerToken: "token", ConsumerSecret: "secret"}
	runs := []RunConfig{
		{Environment: EnvironmentDevelopment},
		{Environment: EnvironmentUniversal, ReplacementContributors: []identity.Address{contributor, verifier}},
		{Environment: EnvironmentOuter, Credentials: &credentials},
	}
	for _, run := range runs {
		t.Run(string(run.Environment), func(t *testing.T) {
			document := BuildDocument(run)
			data, err := document.Marshal()
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			parsed, err := ParseDocument(data)
			if err != nil {
				t.Fatalf("ParseDocument: %v\n%s", err, data)
			}
			if !documentsEqual(document, parsed) {
				t.Errorf("round trip changed the document:\n got %+v\nwant %+v", parsed, document)
			}

			again, err := parsed.Marshal()
			if err != nil {
				t.Fatalf("second Marshal: %v", err)
			}
			if string(again) != string(data) {
				t.Errorf("encoding is not stable:\n%s\n---\n%s", data, again)
			}
		})
	}
}

func TestDocumentTOMLShape(t *testing.T) {
	data, err := BuildDocument(RunConfig{
		Environment:             EnvironmentInner,
		ReplacementContributors: []identity.Address{contributor},
	}).Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		"listen_address = ",
		"0.0.0.0:9000",
		"setup = ",
		contributorAddress,
		"[runtime_parameters]",
		"operator_update_loop_delay = 10000",
		"[environment_parameters]",
		"[verifier_settings]",
		"[reliability_check]",
		"is_enabled = false",
		"[twitter_settings]",
		"consumer_token = ",
		"some_token",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("document missing %q:\n%s", want, text)
		}
	}
}

func TestParseDocumentRejectsUnknownKeys(t *testing.T) {
	data, err := BuildDocument(RunConfig{Environment: EnvironmentInner}).Marshal()
	if err != nil {
		t.Fatal(err)
	}
	data = append([]byte("surprise = 1\n"), data...)
	if _, err := ParseDocument(data); err == nil {
		t.Error("ParseDocument accepted an unknown key")
	}
}

func TestDocumentValidate(t *testing.T) {
	document := BuildDocument(RunConfig{Environment: "staging"})
	document.RuntimeParameters.RayonGlobalPoolThreads = 0
	document.EnvironmentParameters.MaximumContributorsPerRound = 0

	err := document.Validate()
	if err == nil {
		t.Fatal("Validate succeeded on a broken document")
	}
	for _, want := range []string{"setup", "rayon_global_pool_threads", "maximum_contributors_per_round"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error %q does not mention %s", err, want)
		}
	}
}

func TestWriteDocument(t *testing.T) {
	run := RunConfig{Environment: EnvironmentDevelopment, OutputDirectory: t.TempDir()}
	path, document, err := WriteDocument(run)
	if err != nil {
		t.Fatalf("WriteDocument: %v", err)
	}
	if !filepath.IsAbs(path) || filepath.Base(path) != "config.toml" {
		t.Errorf("path = %s, want absolute .../config.toml", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	parsed, err := ParseDocument(data)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if !documentsEqual(parsed, document) {
		t.Errorf("written document differs from returned document")
	}
}

func TestWriteDocumentFailures(t *testing.T) {
	_, _, err := WriteDocument(RunConfig{Environment: EnvironmentInner, OutputDirectory: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, ErrConfigWrite) {
		t.Errorf("missing directory: error = %v, want ErrConfigWrite", err)
	}

	_, _, err = WriteDocument(RunConfig{Environment: "staging", OutputDirectory: t.TempDir()})
	if !errors.Is(err, ErrConfigSerialization) {
		t.Errorf("bad environment: error = %v, want ErrConfigSerialization", err)
	}
}

func TestRunConfigPaths(t *testing.T) {
	tests := []struct {
		environment Environment
		want        string
	}{
		{EnvironmentDevelopment, "/srv/out/transcript/development"},
		{EnvironmentInner, "/srv/out/transcript"},
		{EnvironmentUniversal, "/srv/out/transcript"},
	}
	for _, test := range tests {
		run := RunConfig{Environment: test.environment, OutputDirectory: "/srv/out"}
		if got := run.TranscriptDir(); got != test.want {
			t.Errorf("TranscriptDir(%s) = %s, want %s", test.environment, got, test.want)
		}
	}
	run := RunConfig{OutputDirectory: "/srv/out"}
	if run.ConfigPath() != "/srv/out/config.toml" || run.ArchivePath() != "/srv/out/coordinator.log" {
		t.Errorf("paths = %s %s", run.ConfigPath(), run.ArchivePath())
	}
}

func TestParseEnvironment(t *testing.T) {
	for _, name := range []string{"development", "inner", "outer", "universal"} {
		if _, err := ParseEnvironment(name); err != nil {
			t.Errorf("ParseEnvironment(%q): %v", name, err)
		}
	}
	if _, err := ParseEnvironment("Development"); err == nil {
		t.Error("ParseEnvironment is case-insensitive, want exact match")
	}
}
