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
// defines the transcription stage: it sends the separated vocal track to the
// transcription service and records the word-level transcript. The caller's
// language hint participates in the cache key, so the same audio submitted
// with a different hint is a distinct cache entry.
package stages

import (
	"fmt"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/adapters"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/cor"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
)

// TranscriptionStage is the command that produces the word-level transcript
// of the (separated) audio via the transcription service.
type TranscriptionStage struct {
	cor.BaseCommand
	store       *store.Store
	transcriber adapters.Transcriber
	endpoint    config.AdapterEndpoint
}

// NewTranscriptionStage is the constructor for the TranscriptionStage command.
func NewTranscriptionStage(
	name string,
	s *store.Store,
	transcriber adapters.Transcriber,
	endpoint config.AdapterEndpoint) *TranscriptionStage {
	return &TranscriptionStage{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       s,
		transcriber: transcriber,
		endpoint:    endpoint,
	}
}

// Execute runs the transcription stage against the audio piped from the
// separation stage.
func (t *TranscriptionStage) Execute(c cor.Context) {
	in := c.Get(t.GetInputParam()).(*AudioInput)
	job := JobFrom(c)

	key := store.CacheKey(model.StageTranscription, job.InputDigest, map[string]any{
		"url":      t.endpoint.URL,
		"version":  t.endpoint.Version,
		"language": job.Language,
	})

	var transcript *model.Transcript
	cacheHit := false

	var cached model.Transcript
	if cacheLookup(t.store, key, &cached) {
		transcript, cacheHit = &cached, true
	} else {
		out, err := t.transcriber.Transcribe(c.GetContext(), in.Data, in.MIMEType, job.Language)
		if err != nil {
			t.GetErrorCounter().Add(c.GetContext(), 1)
			c.AddError(t.GetName(), fmt.Errorf("transcription failed: %w", err))
			return
		}
		transcript = out
		cacheStore(t.store, key, transcript)
	}

	if err := t.store.SaveArtifactJSON(job.JobId, TranscriptionArtifact, transcript); err != nil {
		t.GetErrorCounter().Add(c.GetContext(), 1)
		c.AddError(t.GetName(), err)
		return
	}
	if err := recordStage(c, model.StageTranscription, cacheHit, transcript); err != nil {
		t.GetErrorCounter().Add(c.GetContext(), 1)
		c.AddError(t.GetName(), err)
		return
	}

	t.GetSuccessCounter().Add(c.GetContext(), 1)
	c.Add(t.GetOutputParam(), transcript)
}
