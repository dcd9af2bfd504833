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

// Package stages provides the concrete pipeline stage commands. This file
// defines the spatialize stage, the last step of the pipeline: it runs the
// chunked position synthesizer over the transcript's words and records the
// per-word positions and the timed ambisonic effects derived from them.
//
// The cache key mixes a digest of the word timings into the parameters, on
// top of the job's input digest: the same upload keeps its cached positions
// as long as the words are unchanged, and a changed transcript (for example
// after a transcription model upgrade) invalidates them.
package stages

import (
	"encoding/json"
	"fmt"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/cor"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/spatial"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
)

// SpatializeStage is the command that assigns a spatial position to every
// transcript word and derives the movement effects between them.
type SpatializeStage struct {
	cor.BaseCommand
	store       *store.Store
	synthesizer *spatial.Synthesizer
	modelName   string
}

// NewSpatializeStage is the constructor for the SpatializeStage command.
// modelName is the prediction model identifier recorded on the payload and
// mixed into the cache key.
func NewSpatializeStage(
	name string,
	s *store.Store,
	synthesizer *spatial.Synthesizer,
	modelName string) *SpatializeStage {
	return &SpatializeStage{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       s,
		synthesizer: synthesizer,
		modelName:   modelName,
	}
}

// Execute runs the spatialize stage against the transcript piped from the
// transcription stage.
func (t *SpatializeStage) Execute(c cor.Context) {
	transcript := c.Get(t.GetInputParam()).(*model.Transcript)
	job := JobFrom(c)

	language := transcript.Language
	if language == "" {
		language = job.Language
	}

	wordsBlob, err := json.Marshal(transcript.Words)
	if err != nil {
		t.GetErrorCounter().Add(c.GetContext(), 1)
		c.AddError(t.GetName(), fmt.Errorf("failed to digest transcript words: %w", err))
		return
	}
	key := store.CacheKey(model.StageSpatialize, job.InputDigest, map[string]any{
		"model":        t.modelName,
		"language":     language,
		"chunk_size":   t.synthesizer.ChunkSize(),
		"words_digest": store.DigestBytes(wordsBlob),
	})

	var result *model.SpatializeResult
	cacheHit := false

	var cached model.SpatializeResult
	if cacheLookup(t.store, key, &cached) {
		result, cacheHit = &cached, true
	} else {
		// Predict never fails: chunks the model cannot position fall back to
		// deterministic placement, so the stage always yields a full payload.
		out := t.synthesizer.Predict(c.GetContext(), transcript.Words, language)
		result = &model.SpatializeResult{
			Provider:       "gemini",
			Model:          t.modelName,
			Language:       language,
			WordCount:      len(transcript.Words),
			ChunkSize:      t.synthesizer.ChunkSize(),
			FallbackChunks: out.FallbackChunks,
			Positions:      out.Positions,
			Effects:        out.Effects,
		}
		cacheStore(t.store, key, result)
	}

	if err := t.store.SaveArtifactJSON(job.JobId, SpatializeArtifact, result); err != nil {
		t.GetErrorCounter().Add(c.GetContext(), 1)
		c.AddError(t.GetName(), err)
		return
	}
	if err := recordStage(c, model.StageSpatialize, cacheHit, result); err != nil {
		t.GetErrorCounter().Add(c.GetContext(), 1)
		c.AddError(t.GetName(), err)
		return
	}

	t.GetSuccessCounter().Add(c.GetContext(), 1)
	c.Add(t.GetOutputParam(), result)
}
