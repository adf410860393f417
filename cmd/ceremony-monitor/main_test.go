// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/bureau-foundation/ceremony-monitor/lib/ceremony"
	"github.com/bureau-foundation/ceremony-monitor/lib/cli"
	"github.com/bureau-foundation/ceremony-monitor/lib/config"
	"github.com/bureau-foundation/ceremony-monitor/lib/coordinator"
	"github.com/bureau-foundation/ceremony-monitor/lib/eventstream"
	"github.com/bureau-foundation/ceremony-monitor/lib/journal"
)

const contributorAddress = "aleo1hsr8czcmxxanpv6cvwct75wep5ldhd2s702zm8la47dwcxjveypqsv7689"

// roundOneLog is one complete round as the coordinator prints it.
var roundOneLog = []string{
	"2026-10-19T09:00:00.000Z  INFO phase1_coordinator: Coordinator has booted up",
	"2026-10-19T09:00:05.000Z  INFO phase1_coordinator::coordinator: Advanced ceremony to round 1",
	"2026-10-19T09:01:00.000Z  INFO phase1_coordinator::objects::round: " + contributorAddress + ".contributor added a contribution to chunk 3",
	"2026-10-19T09:05:00.000Z  INFO phase1_coordinator::coordinator: Starting aggregation on round 1",
	"2026-10-19T09:06:00.000Z  INFO phase1_coordinator::coordinator: Round 1 is aggregated",
	"2026-10-19T09:06:01.000Z  INFO phase1_coordinator::coordinator: Round 1 is finished",
	"2026-10-19T09:06:02.000Z  INFO phase1_coordinator: Queue has 2 contributors",
}

// walkCommands visits every command in the tree with its path.
func walkCommands(command *cli.Command, path []string, visit func(*cli.Command, []string)) {
	current := append(append([]string(nil), path...), command.Name)
	visit(command, current)
	for _, sub := range command.Subcommands {
		walkCommands(sub, current, visit)
	}
}

func TestCommandTreeHelp(t *testing.T) {
	walkCommands(rootCommand(), nil, func(command *cli.Command, path []string) {
		name := strings.Join(path, " ")
		if command.Summary == "" {
			t.Errorf("%s: missing Summary", name)
		}
		if len(command.Subcommands) == 0 && command.Run == nil {
			t.Errorf("%s: leaf command without Run", name)
		}
		var help bytes.Buffer
		command.PrintHelp(&help)
		if !strings.Contains(help.String(), "Usage:") {
			t.Errorf("%s: help has no usage line:\n%s", name, help.String())
		}
	})
}

func TestUnknownCommandSuggestion(t *testing.T) {
	root := rootCommand()
	root.HelpOutput = io.Discard
	err := root.Execute([]string{"replya"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "replay"`) {
		t.Errorf("Execute(replya) = %v", err)
	}
}

// writeRoundState writes a state.json for round under output.
func writeRoundState(t *testing.T, output string, round int, contributorIDs []string) {
	t.Helper()
	directory := filepath.Join(output, "transcript", "development", "round_"+strconv.Itoa(round))
	if err := os.MkdirAll(directory, 0755); err != nil {
		t.Fatal(err)
	}
	quoted := make([]string, len(contributorIDs))
	for index, id := range contributorIDs {
		quoted[index] = `"` + id + `"`
	}
	content := `{"contributorIds": [` + strings.Join(quoted, ",") + `], "verifierIds": []}`
	if err := os.WriteFile(filepath.Join(directory, "state.json"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestCheckRound(t *testing.T) {
	output := t.TempDir()
	writeRoundState(t, output, 2, []string{contributorAddress + ".contributor"})
	run := coordinator.RunConfig{Environment: coordinator.EnvironmentDevelopment, OutputDirectory: output}

	rosterPath := filepath.Join(t.TempDir(), "roster.jsonc")
	roster := `{
		// expected for round 2
		"contributors": ["` + contributorAddress + `"],
	}`
	if err := os.WriteFile(rosterPath, []byte(roster), 0644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := checkRound(run, checkRoundOptions{round: 2, roundSet: true, rosterPath: rosterPath}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("checkRound: %v", err)
	}
	if !strings.Contains(stdout.String(), "all 1 contributors present") {
		t.Errorf("stdout = %q", stdout.String())
	}

	absent := "aleo1hsr8czcmxxanpv6cvwct75wep5ldhd2s702zm8la47dwcxjveypqsv7688"
	stdout.Reset()
	err = checkRound(run, checkRoundOptions{round: 2, roundSet: true, contributors: []string{contributorAddress, absent}}, &stdout, &stderr)
	var exitErr *cli.ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != exitParticipantMissing {
		t.Fatalf("checkRound with a missing contributor = %v", err)
	}
	if !strings.Contains(stderr.String(), absent+".contributor") {
		t.Errorf("stderr = %q, want the missing contributor", stderr.String())
	}

	err = checkRound(run, checkRoundOptions{round: 3, roundSet: true, contributors: []string{contributorAddress}}, &stdout, &stderr)
	var fileErr *coordinator.MembershipFileError
	if !errors.As(err, &fileErr) {
		t.Errorf("checkRound of an absent round = %v, want *MembershipFileError", err)
	}

	if err := checkRound(run, checkRoundOptions{round: 2, roundSet: true}, &stdout, &stderr); err == nil {
		t.Error("checkRound without contributors succeeded")
	}
	if err := checkRound(run, checkRoundOptions{contributors: []string{contributorAddress}}, &stdout, &stderr); err == nil {
		t.Error("checkRound without --round succeeded")
	}
}

func TestCheckRoundCommandAcceptsRoundZero(t *testing.T) {
	output := t.TempDir()
	writeRoundState(t, output, 0, []string{contributorAddress + ".contributor"})
	configPath := filepath.Join(t.TempDir(), "monitor.yaml")
	content := "coordinator:\n  binary: /bin/true\n  output_directory: " + output + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	root := rootCommand()
	root.HelpOutput = io.Discard
	err := root.Execute([]string{"check-round", "--config", configPath, "--round", "0", "--contributor", contributorAddress})
	if err != nil {
		t.Errorf("check-round --round 0: %v", err)
	}

	root = rootCommand()
	root.HelpOutput = io.Discard
	err = root.Execute([]string{"check-round", "--config", configPath, "--contributor", contributorAddress})
	if err == nil || !strings.Contains(err.Error(), "--round is required") {
		t.Errorf("check-round without --round = %v", err)
	}
}

func TestReplayArchive(t *testing.T) {
	directory := t.TempDir()
	archive := filepath.Join(directory, "coordinator.log")
	if err := os.WriteFile(archive, []byte(strings.Join(roundOneLog, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	compressed, err := coordinator.CompressArchive(archive, coordinator.CompressionLZ4)
	if err != nil {
		t.Fatal(err)
	}
	eventsOut := filepath.Join(directory, "replayed.cbor")

	var stdout bytes.Buffer
	logger := slog.New(slog.DiscardHandler)
	if err := replayArchive(context.Background(), compressed, replayOptions{eventsOut: eventsOut}, &stdout, logger); err != nil {
		t.Fatalf("replayArchive: %v", err)
	}
	for _, want := range []string{
		"round_started(1)",
		"successful_contribution(" + contributorAddress + ", chunk 3)",
		"round_finished(1)",
		"7 lines, final phase waiting_for_participants(2)",
	} {
		if !strings.Contains(stdout.String(), want) {
			t.Errorf("output missing %q:\n%s", want, stdout.String())
		}
	}

	frames, err := eventstream.ReadFile(eventsOut)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 7 {
		t.Errorf("event stream has %d frames, want 7", len(frames))
	}

	if err := replayArchive(context.Background(), filepath.Join(directory, "absent.log"), replayOptions{}, io.Discard, logger); err == nil {
		t.Error("replay of a missing archive succeeded")
	}
}

func writeCoordinator(t *testing.T, lines []string, tail string) string {
	t.Helper()
	directory := t.TempDir()
	linesPath := filepath.Join(directory, "output.txt")
	if err := os.WriteFile(linesPath, []byte(strings.Join(lines, "\n")+"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	binary := filepath.Join(directory, "fake-coordinator")
	if err := os.WriteFile(binary, []byte("#!/bin/sh\ncat '"+linesPath+"'\n"+tail+"\n"), 0755); err != nil {
		t.Fatal(err)
	}
	return binary
}

func sessionConfig(t *testing.T, binary string) (*config.Config, coordinator.RunConfig) {
	t.Helper()
	loaded := config.Default()
	loaded.Coordinator.Binary = binary
	loaded.Coordinator.OutputDirectory = filepath.Join(t.TempDir(), "out")
	loaded.Journal.Path = filepath.Join(loaded.Coordinator.OutputDirectory, "events.db")
	loaded.EventStream.Path = filepath.Join(loaded.Coordinator.OutputDirectory, "events.cbor")
	loaded.Archive.Compression = "zstd"
	if err := loaded.Validate(); err != nil {
		t.Fatal(err)
	}
	run, err := loaded.RunConfig()
	if err != nil {
		t.Fatal(err)
	}
	return loaded, run
}

func TestSuperviseSessionRecordsEvents(t *testing.T) {
	loaded, run := sessionConfig(t, writeCoordinator(t, roundOneLog, "exit 0"))

	result, err := superviseSession(context.Background(), loaded, run, slog.New(slog.DiscardHandler), io.Discard)
	if err != nil {
		t.Fatalf("superviseSession: %v", err)
	}
	if !strings.HasSuffix(result.ArchivePath, ".zst") {
		t.Errorf("ArchivePath = %s, want a zstd archive", result.ArchivePath)
	}

	frames, err := eventstream.ReadFile(loaded.EventStream.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 7 {
		t.Errorf("event stream has %d frames, want 7", len(frames))
	}

	eventJournal, err := journal.Open(context.Background(), journal.Config{Path: loaded.Journal.Path})
	if err != nil {
		t.Fatal(err)
	}
	defer eventJournal.Close()
	roundOne, err := eventJournal.EventsForRound(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	// round_waiting_for_participants(1) through round_finished(1),
	// with the contribution attributed to round 1.
	if len(roundOne) != 6 {
		t.Fatalf("journal has %d round 1 events, want 6: %v", len(roundOne), roundOne)
	}
	if roundOne[2].Event.Kind != ceremony.KindSuccessfulContribution {
		t.Errorf("third round 1 event = %s", roundOne[2].Event)
	}

	var listing bytes.Buffer
	if err := listEvents(context.Background(), eventsOptions{journalPath: loaded.Journal.Path, round: 2}, &listing); err != nil {
		t.Fatalf("listEvents: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(listing.String()), "\n"); len(lines) != 2 || !strings.Contains(lines[1], "round_waiting_for_participants(2)") {
		t.Errorf("round 2 listing:\n%s", listing.String())
	}

	listing.Reset()
	if err := listEvents(context.Background(), eventsOptions{streamPath: loaded.EventStream.Path, round: -1}, &listing); err != nil {
		t.Fatalf("listEvents --stream: %v", err)
	}
	if got := strings.Count(listing.String(), "\n"); got != 7 {
		t.Errorf("stream dump has %d lines, want 7:\n%s", got, listing.String())
	}
}

func TestSuperviseSessionCoordinatorFailure(t *testing.T) {
	loaded, run := sessionConfig(t, writeCoordinator(t, roundOneLog[:2], "exit 4"))
	loaded.Journal.Enabled = false

	_, err := superviseSession(context.Background(), loaded, run, slog.New(slog.DiscardHandler), io.Discard)
	var exitErr *coordinator.ExitError
	if !errors.As(err, &exitErr) || exitStatus(exitErr) != 4 {
		t.Fatalf("superviseSession = %v, want exit status 4", err)
	}
	frames, err := eventstream.ReadFile(loaded.EventStream.Path)
	if err != nil {
		t.Fatal(err)
	}
	if len(frames) != 2 {
		t.Errorf("event stream has %d frames, want 2", len(frames))
	}
	if _, err := os.Stat(loaded.Journal.Path); !os.IsNotExist(err) {
		t.Errorf("disabled journal was created: %v", err)
	}
}

func TestListEventsMissingJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	if err := listEvents(context.Background(), eventsOptions{journalPath: path, round: -1}, io.Discard); err == nil {
		t.Error("listEvents of a missing journal succeeded")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("listEvents created the journal")
	}
}

func TestPrintVersion(t *testing.T) {
	var output bytes.Buffer
	if err := printVersion(&output); err != nil {
		t.Fatalf("printVersion: %v", err)
	}
	if !strings.HasPrefix(output.String(), "ceremony-monitor ") || !strings.Contains(output.String(), "BLAKE3: ") {
		t.Errorf("version output:\n%s", output.String())
	}
}
