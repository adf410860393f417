// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash fingerprints the coordinator binary with BLAKE3.
//
// The supervisor logs the digest of the executable it launches and
// stores it in the session result, so an archived coordinator log can
// be tied to the exact build that produced it. Two runs whose logs
// disagree can be checked for a binary change first.
package binhash
