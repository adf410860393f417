// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package identity defines ceremony participant identities as they
// appear in coordinator output and configuration.
//
// An [Address] is a bech32-style account address ("aleo1" followed by
// 58 data characters). A [Participant] pairs an address with a [Role];
// its [Participant.CoordinatorID] is the "<address>.<role>" form the
// coordinator uses in its logs and round state files.
//
// This package depends on no other ceremony-monitor packages.
package identity
