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

// Package spatial converts a word-level transcript into a sequence of
// 3D/ambisonic positions. This file defines the chunk prediction contract:
// the synthesizer partitions the transcript into chunks and hands each chunk
// to a ChunkPredictor, together with the surrounding context it needs for
// continuity. The production predictor is the Gemini client in gemini.go;
// tests substitute their own.
package spatial

import (
	"context"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
)

// IndexedWord is a transcript word tagged with its stable index across the
// whole transcript. Indices never restart per chunk, so predictions merge
// back unambiguously.
type IndexedWord struct {
	Index int      `json:"index"`
	Word  string   `json:"word"`
	Start *float64 `json:"start,omitempty"`
	End   *float64 `json:"end,omitempty"`
	Score *float64 `json:"score,omitempty"`
}

// ChunkRequest carries one chunk of target words plus the continuity context
// around it. Context words are cues only: the predictor must return positions
// for target indices and nothing else. PreviousAnchors are the most recently
// finalized positions, carried forward chunk to chunk so consecutive chunks
// join smoothly.
type ChunkRequest struct {
	Targets         []IndexedWord        `json:"target_words"`
	ContextBefore   []IndexedWord        `json:"context_before"`
	ContextAfter    []IndexedWord        `json:"context_after"`
	PreviousAnchors []model.WordPosition `json:"previous_positions"`
	Language        string               `json:"language,omitempty"`
}

// PredictedPosition is one predicted entry of a chunk response, in the
// bounded pi-unit angle form the external contract prefers. Values are raw
// and untrusted; the synthesizer normalizes them.
type PredictedPosition struct {
	Index       int     `json:"index"`
	AzimuthPi   float64 `json:"azimuth_pi"`
	ElevationPi float64 `json:"elevation_pi"`
	Distance    float64 `json:"distance"`
	Confidence  float64 `json:"confidence"`
}

// ChunkPredictor predicts positions for one chunk of words. Any error —
// transport, malformed JSON, missing fields — makes the synthesizer fall
// back deterministically for the whole chunk; individual missing indices in
// a successful response fall back word by word instead.
type ChunkPredictor interface {
	PredictChunk(ctx context.Context, req *ChunkRequest) ([]PredictedPosition, error)
}
