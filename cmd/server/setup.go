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

// Package main contains the setup and initialization logic for the server's
// shared state: the loaded configuration, the filesystem store, and the
// enrichment pipeline with its upstream adapters and prediction model.
//
// Functions:
//   - SetupOS: points the configuration loader at the configs directory.
//   - GetConfig: singleton loader for the TOML configuration.
//   - InitState: builds the store, adapters, synthesizer and pipeline.
package main

import (
	"context"
	"log"
	"os"

	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/adapters"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/workflow"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/spatial"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
)

// StateManager holds the shared dependencies for the server, acting as a
// centralized container so handlers never reach for globals piecemeal.
type StateManager struct {
	config   *config.Config
	store    *store.Store
	pipeline *workflow.EnrichmentPipeline
}

// state is the single instance of StateManager for this process.
var state = &StateManager{}

// SetupOS sets the environment variables the configuration loader uses to
// find the TOML files. The runtime defaults to "local" for a directly started
// server; deployments override SPATIAL_RUNTIME themselves.
func SetupOS() (err error) {
	err = os.Setenv(config.EnvConfigFilePrefix, "configs")
	if err != nil {
		return err
	}
	if os.Getenv(config.EnvConfigRuntime) == "" {
		err = os.Setenv(config.EnvConfigRuntime, "local")
	}
	return err
}

// GetConfig provides the singleton application configuration, loading it from
// the TOML files on first use.
func GetConfig() *config.Config {
	if state.config == nil {
		if err := SetupOS(); err != nil {
			log.Fatalf("failed to set up configuration environment: %v\n", err)
		}
		cfg := config.NewConfig()
		if err := config.Load(cfg); err != nil {
			log.Fatalf("failed to load configuration: %v\n", err)
		}
		state.config = cfg
	}
	return state.config
}

// InitState initializes the server state: the filesystem store, the upstream
// service adapters, the Gemini-backed position synthesizer (when the
// spatialize stage is enabled) and the pipeline that ties them together.
// Initialization failures are fatal; the server cannot run degraded.
func InitState(ctx context.Context) {
	cfg := GetConfig()

	s, err := store.New(cfg.Storage.DataDir)
	if err != nil {
		panic(err)
	}

	separator := adapters.NewHTTPSeparator(cfg.Separation)
	transcriber := adapters.NewHTTPTranscriber(cfg.Transcription)

	var synthesizer *spatial.Synthesizer
	if cfg.Application.EnableSpatialize {
		modelCfg, ok := cfg.AgentModels[cfg.Spatial.AgentModel]
		if !ok {
			log.Fatalf("agent model %q is not configured\n", cfg.Spatial.AgentModel)
		}
		client, err := genai.NewClient(ctx, nil)
		if err != nil {
			panic(err)
		}
		predictor, err := spatial.NewGeminiPredictor(modelCfg, cfg.PromptTemplates.SpatialPrompt, client.Models)
		if err != nil {
			panic(err)
		}
		synthesizer = spatial.NewSynthesizer(predictor, cfg.Spatial)
	}

	state.store = s
	state.pipeline = workflow.NewEnrichmentPipeline(cfg, s, separator, transcriber, synthesizer)
}
