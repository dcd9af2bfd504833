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

// Package workflow_test contains integration tests for the enrichment
// pipeline. This file runs the full pipeline against fake upstream services:
// a completed run, a second identical run answered entirely from the cache,
// and a mid-pipeline failure that must still persist the earlier results.
package workflow_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/adapters"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/workflow"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/spatial"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/testutil"
)

// testHarness bundles one fully wired pipeline with its fakes and store so
// each test can inspect and rewire them.
type testHarness struct {
	cfg         *config.Config
	pipeline    *workflow.EnrichmentPipeline
	store       *store.Store
	separator   *testutil.FakeSeparator
	transcriber *testutil.FakeTranscriber
	predictor   *testutil.FakePredictor
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	cfg := testutil.NewTestConfig(t.TempDir())

	s, err := store.New(cfg.Storage.DataDir)
	require.NoError(t, err)

	separator := &testutil.FakeSeparator{
		Result: &model.SeparationResult{
			Provider: "demucs",
			Version:  cfg.Separation.Version,
			Stems: []model.Stem{
				{Name: "vocals"}, {Name: "drums"}, {Name: "bass"}, {Name: "other"},
			},
		},
		Archive: testutil.BuildStemsArchive(t, map[string][]byte{
			adapters.VocalsMember: []byte("vocals-audio"),
			adapters.DrumsMember:  []byte("drums-audio"),
			adapters.BassMember:   []byte("bass-audio"),
			adapters.OtherMember:  []byte("other-audio"),
		}),
	}

	transcriber := &testutil.FakeTranscriber{
		Transcript: &model.Transcript{
			Provider: "whisperx",
			Model:    cfg.Transcription.Version,
			Language: "en",
			Text:     "hello brave new",
			Segments: []model.Segment{{Start: 0.0, End: 0.9, Text: "hello brave new"}},
			Words: []model.WordTiming{
				{Word: "hello", Start: testutil.Ptr(0.0), End: testutil.Ptr(0.2), Score: testutil.Ptr(0.95)},
				{Word: "brave", Start: testutil.Ptr(0.2), End: testutil.Ptr(0.5), Score: testutil.Ptr(0.9)},
				{Word: "new", Start: testutil.Ptr(0.5), End: testutil.Ptr(0.9), Score: testutil.Ptr(0.92)},
			},
		},
	}

	predictor := &testutil.FakePredictor{
		Fn: func(req *spatial.ChunkRequest) ([]spatial.PredictedPosition, error) {
			out := make([]spatial.PredictedPosition, 0, len(req.Targets))
			for i, target := range req.Targets {
				out = append(out, spatial.PredictedPosition{
					Index:       target.Index,
					AzimuthPi:   0.25 * float64(i+1),
					ElevationPi: 0.5,
					Distance:    1.0,
					Confidence:  0.8,
				})
			}
			return out, nil
		},
	}

	synthesizer := spatial.NewSynthesizer(predictor, cfg.Spatial)
	pipeline := workflow.NewEnrichmentPipeline(cfg, s, separator, transcriber, synthesizer)

	return &testHarness{
		cfg:         cfg,
		pipeline:    pipeline,
		store:       s,
		separator:   separator,
		transcriber: transcriber,
		predictor:   predictor,
	}
}

// TestPipelineCompletesJob runs the full three-stage pipeline once and checks
// the persisted record: status, stage order, cache dispositions and the
// artifacts written into the job directory.
func TestPipelineCompletesJob(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "pipeline-complete-test")
	defer span.End()

	h := newTestHarness(t)

	job, err := h.pipeline.Process(traceCtx, "song.wav", []byte("full-mix-audio"), "en")
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Empty(t, job.Error)
	assert.Equal(t, "song.wav", job.InputFile)
	assert.Equal(t, store.DigestBytes([]byte("full-mix-audio")), job.InputDigest)

	require.Len(t, job.Stages, 3)
	assert.Equal(t, model.StageSeparation, job.Stages[0].Stage)
	assert.Equal(t, model.StageTranscription, job.Stages[1].Stage)
	assert.Equal(t, model.StageSpatialize, job.Stages[2].Stage)
	for _, stage := range job.Stages {
		assert.False(t, stage.CacheHit, "first run must not hit the cache for %s", stage.Stage)
	}

	assert.ElementsMatch(t, []string{
		"song.wav", "stems.zip", "vocals.wav",
		"separation.json", "transcription.json", "spatialize.json",
	}, job.OutputArtifacts)

	// The persisted record must round-trip through the store.
	loaded, err := h.store.LoadJob(job.JobId)
	require.NoError(t, err)
	assert.Equal(t, job.JobId, loaded.JobId)
	assert.Equal(t, job.Status, loaded.Status)
	assert.Equal(t, len(job.Stages), len(loaded.Stages))

	span.SetStatus(codes.Ok, "passed - pipeline complete test")
}

// TestPipelineSecondRunServedFromCache submits the same bytes twice and
// verifies the second run never reaches the upstream services: every stage is
// a cache hit with a payload identical to the first run's.
func TestPipelineSecondRunServedFromCache(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "pipeline-idempotence-test")
	defer span.End()

	h := newTestHarness(t)
	content := []byte("full-mix-audio")

	first, err := h.pipeline.Process(traceCtx, "song.wav", content, "en")
	require.NoError(t, err)
	second, err := h.pipeline.Process(traceCtx, "song.wav", content, "en")
	require.NoError(t, err)

	assert.NotEqual(t, first.JobId, second.JobId, "every submission is its own job")
	assert.Equal(t, model.JobStatusCompleted, second.Status)

	require.Len(t, second.Stages, 3)
	for i, stage := range second.Stages {
		assert.True(t, stage.CacheHit, "stage %s must be served from cache", stage.Stage)
		assert.JSONEq(t, string(first.Stages[i].Payload), string(stage.Payload))
	}

	assert.Equal(t, 1, h.separator.Calls)
	assert.Equal(t, 1, h.transcriber.Calls)
	assert.Equal(t, 1, h.predictor.Calls)

	// The cached run still materializes a complete job directory.
	assert.ElementsMatch(t, first.OutputArtifacts, second.OutputArtifacts)

	span.SetStatus(codes.Ok, "passed - pipeline idempotence test")
}

// TestPipelineRecomputesCorruptCacheEntry overwrites the persisted separation
// cache entry with garbage between two identical runs and verifies the stage
// treats the unreadable entry as a miss and recomputes, instead of failing
// the job or serving bad data.
func TestPipelineRecomputesCorruptCacheEntry(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "pipeline-corrupt-cache-test")
	defer span.End()

	h := newTestHarness(t)
	content := []byte("full-mix-audio")

	_, err := h.pipeline.Process(traceCtx, "song.wav", content, "en")
	require.NoError(t, err)

	key := store.CacheKey(model.StageSeparation, store.DigestBytes(content), map[string]any{
		"url":     h.cfg.Separation.URL,
		"version": h.cfg.Separation.Version,
	})
	entry := filepath.Join(h.cfg.Storage.DataDir, "cache", "responses", key+".json")
	require.FileExists(t, entry)
	require.NoError(t, os.WriteFile(entry, []byte("{not json"), 0o644))

	second, err := h.pipeline.Process(traceCtx, "song.wav", content, "en")
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, second.Status)
	require.Len(t, second.Stages, 3)
	assert.False(t, second.Stages[0].CacheHit, "a corrupt entry must read as a miss")
	assert.Equal(t, 2, h.separator.Calls, "the separation service is called again")

	// The untouched entries of the later stages still hit.
	assert.True(t, second.Stages[1].CacheHit)
	assert.True(t, second.Stages[2].CacheHit)

	span.SetStatus(codes.Ok, "passed - pipeline corrupt cache test")
}

// TestPipelineFailurePreservesPartialResults breaks the transcription service
// and verifies the job is persisted as failed with the separation result that
// completed before the failure.
func TestPipelineFailurePreservesPartialResults(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "pipeline-failure-test")
	defer span.End()

	h := newTestHarness(t)
	h.transcriber.Err = errors.New("upstream unavailable")

	job, err := h.pipeline.Process(traceCtx, "song.wav", []byte("full-mix-audio"), "en")
	require.NoError(t, err, "a stage failure is a failed job, not a processing error")

	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "transcription")
	assert.Contains(t, job.Error, "upstream unavailable")

	require.Len(t, job.Stages, 1)
	assert.Equal(t, model.StageSeparation, job.Stages[0].Stage)

	// The failed record is durable and loads back with the partial results.
	loaded, err := h.store.LoadJob(job.JobId)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, loaded.Status)
	require.Len(t, loaded.Stages, 1)

	span.SetStatus(codes.Ok, "passed - pipeline failure test")
}

// TestPipelineSkipsSpatializeWhenDisabled turns the spatialize stage off and
// verifies the pipeline completes with two stages and no spatialize artifact.
func TestPipelineSkipsSpatializeWhenDisabled(t *testing.T) {
	traceCtx, span := tracer.Start(ctx, "pipeline-spatialize-disabled-test")
	defer span.End()

	cfg := testutil.NewTestConfig(t.TempDir())
	cfg.Application.EnableSpatialize = false

	s, err := store.New(cfg.Storage.DataDir)
	require.NoError(t, err)

	h := newTestHarness(t)
	pipeline := workflow.NewEnrichmentPipeline(cfg, s, h.separator, h.transcriber, nil)

	job, err := pipeline.Process(traceCtx, "song.wav", []byte("full-mix-audio"), "en")
	require.NoError(t, err)

	assert.Equal(t, model.JobStatusCompleted, job.Status)
	require.Len(t, job.Stages, 2)
	assert.Equal(t, model.StageSeparation, job.Stages[0].Stage)
	assert.Equal(t, model.StageTranscription, job.Stages[1].Stage)
	assert.NotContains(t, job.OutputArtifacts, "spatialize.json")

	span.SetStatus(codes.Ok, "passed - pipeline spatialize disabled test")
}
