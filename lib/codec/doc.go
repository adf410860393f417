// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the CBOR encoding configuration shared by
// every ceremony-monitor component that writes binary records.
//
// Two serialization formats are in use, with a clear boundary:
//
//   - Text formats for documents humans or the coordinator read: the
//     TOML configuration document handed to the coordinator, the YAML
//     run configuration, JSON round state files, and the plain-text
//     archive log.
//   - CBOR for event records consumed by other programs: the event
//     stream file written next to the archive log.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same event always produces identical bytes, so two event streams
// can be compared byte-for-byte when checking replay determinism.
//
//	data, err := codec.Marshal(frame)
//	err = codec.Unmarshal(data, &frame)
//
//	encoder := codec.NewEncoder(file)
//	decoder := codec.NewDecoder(file)
//
// Types that implement encoding.TextMarshaler (identity.Address,
// ceremony.Kind) encode as CBOR text strings.
package codec
