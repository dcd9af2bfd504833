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

// Package config defines the data structures for application configuration,
// loaded from TOML files. A single Config value is constructed once at
// startup and passed by reference into the pipeline and synthesizer
// constructors; core logic never performs ambient configuration lookups.
//
// Structs:
//   - Application: general service settings (name, port, upload limits).
//   - Storage: location of the data directory holding jobs and the cache.
//   - AdapterEndpoint: connection settings for one upstream model service.
//   - GeminiModel: generation settings for a named Gemini model.
//   - Spatial: chunking and context-window settings for position prediction.
//   - PromptTemplates: text templates for prompts sent to GenAI models.
//   - Config: the top-level aggregate.
package config

// Application holds general service settings.
type Application struct {
	Name             string `toml:"name"`              // The service name, used for telemetry resource attribution.
	Port             int    `toml:"port"`              // TCP port the HTTP server listens on.
	MaxUploadMB      int    `toml:"max_upload_mb"`     // Maximum accepted upload size in megabytes.
	EnableSpatialize bool   `toml:"enable_spatialize"` // Whether the spatialize stage runs at all.
}

// Storage holds the location of the on-disk data directory.
type Storage struct {
	DataDir string `toml:"data_dir"` // Root directory for job directories and the content cache.
}

// AdapterEndpoint describes one upstream model service (separation or
// transcription). The version participates in cache keys so that pointing at
// a new model version deterministically invalidates prior cache entries.
type AdapterEndpoint struct {
	URL              string `toml:"url"`                // Base URL of the service.
	Version          string `toml:"version"`            // Logical version of the upstream model.
	TimeoutInSeconds int    `toml:"timeout_in_seconds"` // Request timeout for the blocking call.
}

// GeminiModel holds the generation settings for a named Gemini model.
type GeminiModel struct {
	Model            string  `toml:"model"`              // The Gemini model name (e.g. "gemini-2.0-flash").
	Temperature      float32 `toml:"temperature"`        // Sampling temperature.
	MaxTokens        int32   `toml:"max_tokens"`         // Maximum output tokens.
	OutputFormat     string  `toml:"output_format"`      // Response MIME type, normally "application/json".
	RateLimit        int     `toml:"rate_limit"`         // Allowed requests per second.
	TimeoutInSeconds int     `toml:"timeout_in_seconds"` // Per-chunk prediction timeout.
}

// Spatial holds the chunking parameters for the position synthesizer.
type Spatial struct {
	AgentModel   string `toml:"agent_model"`   // Key into Config.AgentModels naming the prediction model.
	ChunkSize    int    `toml:"chunk_size"`    // Target words per prediction chunk (floor enforced in code).
	ContextWords int    `toml:"context_words"` // Neighboring words included on each side for continuity.
}

// PromptTemplates holds the text templates for prompts sent to GenAI models.
type PromptTemplates struct {
	SpatialPrompt string `toml:"spatial"` // The template for the per-chunk position prediction prompt.
}

// Config is the top-level configuration aggregate loaded from TOML files.
type Config struct {
	Application     Application            `toml:"application"`
	Storage         Storage                `toml:"storage"`
	Separation      AdapterEndpoint        `toml:"separation"`
	Transcription   AdapterEndpoint        `toml:"transcription"`
	Spatial         Spatial                `toml:"spatial"`
	PromptTemplates PromptTemplates        `toml:"prompt_templates"`
	AgentModels     map[string]GeminiModel `toml:"agent_models"` // Named Gemini model configurations.
}

// NewConfig creates a Config with its map fields initialized so the TOML
// decoder never writes into a nil map.
func NewConfig() *Config {
	return &Config{
		AgentModels: make(map[string]GeminiModel),
	}
}
