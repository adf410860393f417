// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the ceremony-monitor
// binary.
//
// [GitCommit], [GitDirty], [BuildTime], and [Version] are injected at
// build time:
//
//	go build -ldflags "-X github.com/bureau-foundation/ceremony-monitor/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without ldflags the commit falls back to the VCS stamp the Go
// toolchain embeds, when present. [SelfDigest] fingerprints the
// running executable so monitor and coordinator builds can both be
// recorded next to a ceremony's archive.
package version
