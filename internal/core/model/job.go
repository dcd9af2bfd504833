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

// Package model defines the core data structures for the application.
// This file contains the persistent job record and its per-stage results.
// A Job is created once per submission, filled in by the pipeline workflow,
// and never mutated after it has been saved: a failed run still carries every
// StageResult that completed before the failure.
//
// Structs:
//   - StageResult: the outcome of one pipeline stage, including whether it
//     was served from the content cache.
//   - Job: the durable record persisted as `job.json` in the job directory
//     and returned by the HTTP API.
package model

import (
	"encoding/json"
	"time"
)

// JobStatus is the terminal status of a pipeline run.
type JobStatus string

const (
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// StageName identifies one step of the enrichment pipeline. Each stage owns
// its own cache namespace and its own artifact file in the job directory.
type StageName string

const (
	StageSeparation    StageName = "separation"
	StageTranscription StageName = "transcription"
	StageSpatialize    StageName = "spatialize"
)

// StageResult records the outcome of a single stage execution. The payload is
// the stage-specific document (see payloads.go); it is kept as a raw JSON
// document here because only the persisted form needs to be generic — each
// stage command works with its typed payload and marshals it exactly once.
type StageResult struct {
	Stage    StageName       `json:"stage"`     // Which pipeline stage produced this result.
	CacheHit bool            `json:"cache_hit"` // True when the payload was served from the content cache.
	Payload  json.RawMessage `json:"payload"`   // The stage-specific payload document.
}

// Job is the durable record of one pipeline run. It is owned exclusively by
// the job store for its lifetime and is immutable once saved.
type Job struct {
	JobId           string        `json:"job_id"`             // Opaque unique identifier (UUID).
	Status          JobStatus     `json:"status"`             // Terminal status: completed or failed.
	CreatedAt       time.Time     `json:"created_at"`         // UTC creation timestamp.
	InputFile       string        `json:"input_file"`         // Base name of the uploaded file.
	InputDigest     string        `json:"input_digest"`       // Hex SHA-256 of the uploaded bytes.
	Language        string        `json:"language,omitempty"` // Optional language hint from the caller.
	Stages          []StageResult `json:"stages"`             // Ordered stage results, in execution order.
	OutputArtifacts []string      `json:"output_artifacts"`   // Sorted artifact names in the job directory.
	Error           string        `json:"error,omitempty"`    // Failure message when Status is failed.
}
