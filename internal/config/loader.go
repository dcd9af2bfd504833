// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config defines the data structures for application configuration.
// This file implements the hierarchical configuration loader: a base file
// (".env.toml") is read first and an environment-specific file
// (".env.<runtime>.toml") is layered on top, overwriting any values it sets.
// The directory prefix and runtime name come from environment variables so
// the same binary can run with local, test, or production settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	ConfigFileBaseName  = ".env"                    // Base name for configuration files.
	ConfigFileExtension = ".toml"                   // File extension for configuration files.
	ConfigSeparator     = "."                       // Separator in config file names (".env.local.toml").
	EnvConfigFilePrefix = "SPATIAL_CONFIG_PREFIX"   // Env var naming the config directory.
	EnvConfigRuntime    = "SPATIAL_RUNTIME"         // Env var naming the runtime context (local, test, prod).
	DefaultRuntime      = "test"                    // Runtime assumed when the env var is unset.
)

// fileExists reports whether a file or directory exists at the given path.
func fileExists(in string) bool {
	_, err := os.Stat(in)
	return !errors.Is(err, os.ErrNotExist)
}

// Load populates baseConfig from the hierarchical TOML files. The base file
// is optional; when the environment-specific file exists its values overwrite
// the base values field by field.
func Load(baseConfig any) error {
	prefix := os.Getenv(EnvConfigFilePrefix)
	if len(prefix) > 0 && !strings.HasSuffix(prefix, string(os.PathSeparator)) {
		prefix = prefix + string(os.PathSeparator)
	}

	runtime := os.Getenv(EnvConfigRuntime)
	if runtime == "" {
		runtime = DefaultRuntime
	}

	baseFile := prefix + ConfigFileBaseName + ConfigFileExtension
	envFile := prefix + ConfigFileBaseName + ConfigSeparator + runtime + ConfigFileExtension

	if fileExists(baseFile) {
		if _, err := toml.DecodeFile(baseFile, baseConfig); err != nil {
			return fmt.Errorf("failed to decode base configuration file %s: %w", baseFile, err)
		}
	}
	if fileExists(envFile) {
		if _, err := toml.DecodeFile(envFile, baseConfig); err != nil {
			return fmt.Errorf("failed to decode environment configuration file %s: %w", envFile, err)
		}
	}
	return nil
}
