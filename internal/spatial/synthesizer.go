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

// Package spatial converts a word-level transcript into spatial positions.
// This file implements the synthesizer itself.
//
// Logic Flow:
//  1. An empty transcript returns an empty result without any external call.
//  2. The transcript is partitioned into contiguous chunks of the configured
//     target size (never below MinChunkSize), bounding the prompt handed to
//     the remote predictor.
//  3. Each chunk is sent with a symmetric context window of neighboring
//     words (continuity cues only, clamped to transcript bounds) and up to
//     MaxPreviousAnchors already-finalized positions from earlier chunks.
//  4. A successful response is merged back by index into a fixed-size slice
//     sized to the chunk — indices are known and contiguous up front, so no
//     map lookup is needed. Any target index the predictor skipped falls
//     back deterministically for that word alone.
//  5. A failed call degrades the whole chunk to the deterministic curve and
//     increments the fallback chunk counter. Failures never escalate.
//  6. Every numeric output, from either source, is normalized and rounded by
//     model.NewPosition before anything downstream sees it.
//  7. Finally the temporal effect sequence is derived from the full position
//     list (see effects.go).
package spatial

import (
	"context"
	"log/slog"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
)

const (
	// MinChunkSize is the enforced floor for the chunk size: smaller chunks
	// waste round trips without improving prediction quality.
	MinChunkSize = 12
	// MaxPreviousAnchors bounds how many finalized positions are carried
	// forward between chunks as continuity anchors.
	MaxPreviousAnchors = 4
)

// Result is the complete output of one synthesis run. Positions always has
// one entry per input word, with contiguous indices 0..N-1.
type Result struct {
	Positions      []model.WordPosition
	Effects        []model.AmbisonicEffect
	FallbackChunks int
}

// Synthesizer orchestrates chunked prediction over a transcript. It is
// stateless across calls and safe for concurrent use as long as its
// predictor is.
type Synthesizer struct {
	predictor    ChunkPredictor
	chunkSize    int
	contextWords int
}

// NewSynthesizer builds a synthesizer around the given predictor using the
// configured chunking parameters.
func NewSynthesizer(predictor ChunkPredictor, cfg config.Spatial) *Synthesizer {
	chunkSize := cfg.ChunkSize
	if chunkSize < MinChunkSize {
		chunkSize = MinChunkSize
	}
	contextWords := cfg.ContextWords
	if contextWords < 0 {
		contextWords = 0
	}
	return &Synthesizer{predictor: predictor, chunkSize: chunkSize, contextWords: contextWords}
}

// Predict assigns a position to every word of the transcript and derives the
// effect sequence. It never fails: prediction errors degrade per chunk to
// the deterministic fallback.
func (s *Synthesizer) Predict(ctx context.Context, words []model.WordTiming, language string) *Result {
	total := len(words)
	if total == 0 {
		return &Result{
			Positions: []model.WordPosition{},
			Effects:   []model.AmbisonicEffect{},
		}
	}

	positions := make([]model.WordPosition, 0, total)
	fallbackChunks := 0

	for start := 0; start < total; start += s.chunkSize {
		end := min(start+s.chunkSize, total)

		req := &ChunkRequest{
			Targets:         indexWords(words[start:end], start),
			ContextBefore:   indexWords(words[max(0, start-s.contextWords):start], max(0, start-s.contextWords)),
			ContextAfter:    indexWords(words[end:min(total, end+s.contextWords)], end),
			PreviousAnchors: tailAnchors(positions),
			Language:        language,
		}

		predicted, err := s.predictor.PredictChunk(ctx, req)
		if err != nil {
			slog.Warn("chunk prediction failed, using deterministic fallback",
				"chunk_start", start, "chunk_end", end, "error", err)
			fallbackChunks++
			for i := start; i < end; i++ {
				positions = append(positions, FallbackPosition(words[i], i, total))
			}
			continue
		}

		// Merge by index into a slice sized to the chunk; out-of-range
		// indices from the predictor are discarded.
		merged := make([]*PredictedPosition, end-start)
		for i := range predicted {
			p := predicted[i]
			if p.Index < start || p.Index >= end {
				continue
			}
			merged[p.Index-start] = &p
		}
		for i := start; i < end; i++ {
			if entry := merged[i-start]; entry != nil {
				positions = append(positions, s.wordPosition(words[i], i, entry))
			} else {
				// The predictor skipped this one index: fill it alone, the
				// chunk is not counted as a fallback chunk.
				positions = append(positions, FallbackPosition(words[i], i, total))
			}
		}
	}

	return &Result{
		Positions:      positions,
		Effects:        BuildEffects(positions),
		FallbackChunks: fallbackChunks,
	}
}

// ChunkSize exposes the effective (floored) chunk size, which participates
// in the persisted stage payload.
func (s *Synthesizer) ChunkSize() int {
	return s.chunkSize
}

// wordPosition combines a source word with a normalized predicted entry.
func (s *Synthesizer) wordPosition(word model.WordTiming, index int, entry *PredictedPosition) model.WordPosition {
	return model.WordPosition{
		Index:      index,
		Word:       word.Word,
		Start:      word.Start,
		End:        word.End,
		Score:      word.Score,
		Position:   model.NewPosition(entry.AzimuthPi, entry.ElevationPi, entry.Distance),
		Confidence: model.Round(model.Clamp(entry.Confidence, 0.0, 1.0)),
		Method:     model.MethodGemini,
	}
}

// indexWords tags a window of words with their absolute transcript indices.
func indexWords(words []model.WordTiming, base int) []IndexedWord {
	out := make([]IndexedWord, len(words))
	for i, w := range words {
		out[i] = IndexedWord{Index: base + i, Word: w.Word, Start: w.Start, End: w.End, Score: w.Score}
	}
	return out
}

// tailAnchors returns up to MaxPreviousAnchors of the most recent positions.
func tailAnchors(positions []model.WordPosition) []model.WordPosition {
	if len(positions) <= MaxPreviousAnchors {
		return positions
	}
	return positions[len(positions)-MaxPreviousAnchors:]
}
