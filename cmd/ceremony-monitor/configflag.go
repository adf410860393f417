// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/ceremony-monitor/lib/config"
)

const configFlagUsage = "configuration file (default $" + config.EnvironmentVariable + ")"

func addConfigFlag(flagSet *pflag.FlagSet, path *string) {
	flagSet.StringVarP(path, "config", "c", "", configFlagUsage)
}

// loadConfig reads path, or the file named by the environment when
// path is empty, and validates it.
func loadConfig(path string) (*config.Config, error) {
	var (
		loaded *config.Config
		err    error
	)
	if path == "" {
		loaded, err = config.Load()
	} else {
		loaded, err = config.LoadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if err := loaded.Validate(); err != nil {
		return nil, err
	}
	return loaded, nil
}
