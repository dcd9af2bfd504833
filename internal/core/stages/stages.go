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

// Package stages provides the concrete pipeline stage commands executed by
// the enrichment workflow: source separation, transcription and spatial
// synthesis. Each stage follows the same shape:
//
//  1. Derive the deterministic cache key from the job's input digest and the
//     parameters that affect the stage output.
//  2. On a cache hit, reuse the stored payload; on a miss, do the work and
//     store the payload for the next identical run.
//  3. Persist the payload as a JSON artifact in the job directory (hit or
//     miss — every job directory is self-contained).
//  4. Append a StageResult to the in-flight job record and pipe the stage's
//     primary output to the next command.
//
// A stage failure is recorded on the workflow context, which stops the chain;
// results appended by earlier stages stay on the job record.
package stages

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/cor"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
)

// CtxJob is the workflow context key holding the in-flight *model.Job. The
// stages append their StageResults to it; the workflow owns creating and
// persisting it.
const CtxJob = "pipeline.job"

// Artifact names written into job directories and the blob cache.
const (
	StemsArchiveArtifact  = "stems.zip"
	VocalsArtifact        = "vocals.wav"
	SeparationArtifact    = "separation.json"
	TranscriptionArtifact = "transcription.json"
	SpatializeArtifact    = "spatialize.json"
)

// AudioInput is the unit of audio piped between commands: the raw bytes plus
// the MIME type the upstream adapters should announce.
type AudioInput struct {
	Data     []byte
	MIMEType string
}

// JobFrom extracts the in-flight job record from the workflow context.
func JobFrom(c cor.Context) *model.Job {
	return c.Get(CtxJob).(*model.Job)
}

// recordStage marshals the stage payload once and appends it, with its cache
// disposition, to the in-flight job record.
func recordStage(c cor.Context, stage model.StageName, cacheHit bool, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", stage, err)
	}
	job := JobFrom(c)
	job.Stages = append(job.Stages, model.StageResult{
		Stage:    stage,
		CacheHit: cacheHit,
		Payload:  raw,
	})
	return nil
}

// cacheLookup reads a cache entry, treating an unreadable or undecodable
// entry as a miss. The cache is an optimization: a corrupt entry must never
// fail a job that could simply recompute.
func cacheLookup(s *store.Store, key string, out any) bool {
	payload, ok, err := s.CacheGet(key)
	if err != nil {
		slog.Warn("unreadable cache entry, recomputing", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(payload, out); err != nil {
		slog.Warn("undecodable cache payload, recomputing", "key", key, "error", err)
		return false
	}
	return true
}

// cacheStore writes a cache entry, logging instead of failing: a job that did
// its work successfully should not fail because the cache is unwritable.
func cacheStore(s *store.Store, key string, payload any) {
	if err := s.CacheSet(key, payload); err != nil {
		slog.Warn("failed to write cache entry", "key", key, "error", err)
	}
}
