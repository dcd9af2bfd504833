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

// Package workflow defines the high-level business logic orchestrations,
// combining stage commands into coherent pipelines. This file implements the
// audio enrichment pipeline: separation, transcription and (optionally)
// spatialization run strictly in sequence over one uploaded file, and the
// run always ends with a persisted job record — completed with every stage
// result, or failed with the results of the stages that finished first.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/adapters"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/cor"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/stages"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/spatial"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
)

// EnrichmentPipeline orchestrates one full enrichment run per uploaded audio
// file. It is structured as a Chain of Responsibility (cor.Chain): each stage
// is an atomic command whose primary output is piped into the next stage, and
// a stage failure stops the chain without retries.
type EnrichmentPipeline struct {
	cor.BaseCommand
	config      *config.Config
	store       *store.Store
	separator   adapters.Separator
	transcriber adapters.Transcriber
	synthesizer *spatial.Synthesizer
	chain       cor.Chain
}

// NewEnrichmentPipeline is the constructor for the EnrichmentPipeline. The
// synthesizer may be nil when the spatialize stage is disabled; the chain is
// then built without it.
func NewEnrichmentPipeline(
	cfg *config.Config,
	s *store.Store,
	separator adapters.Separator,
	transcriber adapters.Transcriber,
	synthesizer *spatial.Synthesizer) *EnrichmentPipeline {

	pipeline := &EnrichmentPipeline{
		BaseCommand: *cor.NewBaseCommand("enrichment-pipeline"),
		config:      cfg,
		store:       s,
		separator:   separator,
		transcriber: transcriber,
		synthesizer: synthesizer,
	}
	pipeline.initializeChain()
	return pipeline
}

// initializeChain builds the stage sequence. Stages run in a fixed order;
// there is no fan-out and no retry, so the default stop-on-first-error chain
// behavior is exactly the pipeline's abort semantics.
func (p *EnrichmentPipeline) initializeChain() {
	out := cor.NewBaseChain(p.GetName())

	// Step 1: split the upload into stems and pipe the vocal track forward.
	out.AddCommand(stages.NewSeparationStage("separation", p.store, p.separator, p.config.Separation))

	// Step 2: transcribe the vocals into word-level timings.
	out.AddCommand(stages.NewTranscriptionStage("transcription", p.store, p.transcriber, p.config.Transcription))

	// Step 3: assign spatial positions and movement effects, when enabled.
	if p.config.Application.EnableSpatialize && p.synthesizer != nil {
		out.AddCommand(stages.NewSpatializeStage("spatialize", p.store, p.synthesizer, p.config.Spatial.AgentModel))
	}

	p.chain = out
}

// Execute runs the underlying chain. It exists so a pipeline can itself be
// composed as a command; Process is the entry point used by the HTTP layer.
func (p *EnrichmentPipeline) Execute(context cor.Context) {
	p.chain.Execute(context)
}

// Process runs the whole pipeline for one uploaded file and returns the
// persisted job record. A stage failure yields a failed record (with the
// stage results produced before the failure), not an error: the returned
// error is reserved for infrastructure problems such as an unwritable data
// directory.
func (p *EnrichmentPipeline) Process(ctx context.Context, filename string, content []byte, language string) (*model.Job, error) {
	jobId, err := p.store.CreateJob()
	if err != nil {
		return nil, err
	}
	savedName, err := p.store.SaveUpload(jobId, filename, content)
	if err != nil {
		return nil, err
	}

	job := &model.Job{
		JobId:       jobId,
		Status:      model.JobStatusCompleted,
		CreatedAt:   time.Now().UTC(),
		InputFile:   savedName,
		InputDigest: store.DigestBytes(content),
		Language:    language,
		Stages:      []model.StageResult{},
	}

	chCtx := cor.NewBaseContext()
	chCtx.SetContext(ctx)
	chCtx.Add(stages.CtxJob, job)
	chCtx.Add(cor.CtxIn, &stages.AudioInput{
		Data:     content,
		MIMEType: adapters.DetectMIME(content),
	})

	p.chain.Execute(chCtx)

	if chCtx.HasErrors() {
		job.Status = model.JobStatusFailed
		job.Error = flattenErrors(chCtx.GetErrors())
	}

	artifacts, err := p.store.ListArtifacts(jobId)
	if err != nil {
		return nil, err
	}
	job.OutputArtifacts = artifacts

	if err := p.store.SaveJob(job); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "pipeline run finished",
		"job_id", job.JobId,
		"status", job.Status,
		"stages", len(job.Stages),
		"input_digest", job.InputDigest)
	return job, nil
}

// flattenErrors renders the per-command error map into one stable message,
// sorted by command name so identical failures always read identically.
func flattenErrors(errs map[string]error) string {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, errs[name]))
	}
	return strings.Join(parts, "; ")
}
