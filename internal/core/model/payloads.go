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
// This file contains the closed set of per-stage payload documents. Each
// pipeline stage produces exactly one of these shapes; they are validated at
// the adapter boundary and persisted verbatim as the stage artifact and the
// StageResult payload.
package model

// Prediction method tags recorded on every word position.
const (
	MethodGemini   = "gemini"
	MethodFallback = "deterministic-fallback"
)

// Stem describes one separated source inside a separation result. File is the
// artifact name inside the job directory when the stem bytes are available
// locally, empty otherwise.
type Stem struct {
	Name string `json:"name"`
	File string `json:"file,omitempty"`
}

// SeparationResult is the payload of the separation stage. When the upstream
// service returns a multi-stem archive, ArchiveFile and VocalsFile name the
// artifacts written into the job directory after extraction.
type SeparationResult struct {
	Provider    string `json:"provider"`
	Version     string `json:"version"`
	Stems       []Stem `json:"stems"`
	ArchiveFile string `json:"archive_file,omitempty"`
	VocalsFile  string `json:"vocals_file,omitempty"`
}

// WordTiming is a single word of a transcript with its timing and confidence.
// Start, End and Score are pointers because upstream transcribers may omit
// them for individual words; the effect synthesizer fills gaps from context.
type WordTiming struct {
	Word  string   `json:"word"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

// Segment is a coarse, sentence-level span of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the payload of the transcription stage.
type Transcript struct {
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Language string       `json:"language"`
	Text     string       `json:"text"`
	Segments []Segment    `json:"segments"`
	Words    []WordTiming `json:"words"`
}

// WordPosition is one word of the transcript with its predicted (or
// synthesized) spatial position. Index is 0-based and stable across the whole
// transcript regardless of how it was chunked for prediction.
type WordPosition struct {
	Index      int      `json:"index"`
	Word       string   `json:"word"`
	Start      *float64 `json:"start,omitempty"`
	End        *float64 `json:"end,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	Position   Position `json:"position"`
	Confidence float64  `json:"confidence"`
	Method     string   `json:"method"`
}

// MoveEffect describes a movement between two positions in both angle unit
// systems, so renderers can pick whichever form they need.
type MoveEffect struct {
	FromPi  PositionPi  `json:"from_pi"`
	ToPi    PositionPi  `json:"to_pi"`
	FromRad PositionRad `json:"from_rad"`
	ToRad   PositionRad `json:"to_rad"`
}

// AmbisonicEffect is a timed instruction moving a sound source from one
// word's position to the next word's position (or to itself for the last
// word). End is always strictly greater than Start.
type AmbisonicEffect struct {
	Index      int        `json:"index"`
	Word       string     `json:"word"`
	Start      float64    `json:"start"`
	End        float64    `json:"end"`
	Move       MoveEffect `json:"move"`
	Confidence float64    `json:"confidence"`
	Method     string     `json:"method"`
}

// SpatializeResult is the payload of the spatialize stage.
type SpatializeResult struct {
	Provider       string            `json:"provider"`
	Model          string            `json:"model"`
	Language       string            `json:"language,omitempty"`
	WordCount      int               `json:"word_count"`
	ChunkSize      int               `json:"chunk_size"`
	FallbackChunks int               `json:"fallback_chunks"`
	Positions      []WordPosition    `json:"positions"`
	Effects        []AmbisonicEffect `json:"effects"`
}
