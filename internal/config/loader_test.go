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

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
)

const baseToml = `
[application]
name = "spatial-audio-test"
port = 8080
max_upload_mb = 64
enable_spatialize = true

[storage]
data_dir = "data"

[separation]
url = "http://base:9001"
version = "demucs-v4"
timeout_in_seconds = 600

[spatial]
agent_model = "spatial-flash"
chunk_size = 24
context_words = 8

[agent_models.spatial-flash]
model = "gemini-2.0-flash"
temperature = 0.2
max_tokens = 8192
output_format = "application/json"
rate_limit = 2
timeout_in_seconds = 60
`

const testToml = `
[application]
port = 9999

[separation]
url = "http://override:9001"
version = "demucs-v4"
timeout_in_seconds = 600
`

// TestLoadLayersRuntimeOverBase checks the hierarchical load: the runtime
// file overwrites what it sets and leaves everything else from the base.
func TestLoadLayersRuntimeOverBase(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(baseToml), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test.toml"), []byte(testToml), 0o644))

	t.Setenv(config.EnvConfigFilePrefix, dir)
	t.Setenv(config.EnvConfigRuntime, "test")

	cfg := config.NewConfig()
	require.NoError(t, config.Load(cfg))

	// Overridden by the runtime file.
	assert.Equal(t, 9999, cfg.Application.Port)
	assert.Equal(t, "http://override:9001", cfg.Separation.URL)

	// Inherited from the base file.
	assert.Equal(t, "spatial-audio-test", cfg.Application.Name)
	assert.True(t, cfg.Application.EnableSpatialize)
	assert.Equal(t, 24, cfg.Spatial.ChunkSize)

	model, ok := cfg.AgentModels["spatial-flash"]
	require.True(t, ok)
	assert.Equal(t, "gemini-2.0-flash", model.Model)
	assert.Equal(t, float32(0.2), model.Temperature)
}

// TestLoadMissingRuntimeFileFallsBack checks that only the base file is
// required; an absent runtime file is not an error.
func TestLoadMissingRuntimeFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte(baseToml), 0o644))

	t.Setenv(config.EnvConfigFilePrefix, dir)
	t.Setenv(config.EnvConfigRuntime, "absent")

	cfg := config.NewConfig()
	require.NoError(t, config.Load(cfg))
	assert.Equal(t, 8080, cfg.Application.Port)
}

// TestLoadRejectsInvalidTOML checks that a syntactically broken file is a
// load error instead of a silently defaulted config.
func TestLoadRejectsInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.toml"), []byte("not [valid"), 0o644))

	t.Setenv(config.EnvConfigFilePrefix, dir)
	t.Setenv(config.EnvConfigRuntime, "test")

	cfg := config.NewConfig()
	assert.Error(t, config.Load(cfg))
}
