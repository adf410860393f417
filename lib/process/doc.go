// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint helpers main uses to turn the
// error from a command into an exit status. It is the one place the
// monitor writes to stderr without the structured logger, since the
// logger may not exist yet when configuration fails.
package process
