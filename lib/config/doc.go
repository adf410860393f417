// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the ceremony monitor's YAML configuration.
//
// Configuration comes from a single file named by the
// CEREMONY_MONITOR_CONFIG environment variable ([Load]) or a --config
// flag ([LoadFile]). There is no discovery and no fallback search.
// Values in the file are merged over [Default], so a file only needs
// the coordinator binary and output directory.
//
// Path fields expand ${VAR} and ${VAR:-default}. ${OUTPUT_DIRECTORY}
// refers to coordinator.output_directory, which is how the default
// journal and event stream paths land next to the coordinator's own
// artifacts.
//
// [Config.RunConfig] converts the file into the typed
// coordinator.RunConfig, parsing addresses and decrypting the API
// credentials when a sealed credentials file is configured.
package config
