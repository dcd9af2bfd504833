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
// This file implements the deterministic fallback: a closed-form curve that
// guarantees a full, well-formed position sequence even when the prediction
// service is completely unavailable. The curve is parameterized by the
// word's fractional position in the ENTIRE transcript, not its chunk, so a
// transcript degraded chunk by chunk still traces one continuous path.
package spatial

import (
	"math"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
)

// FallbackConfidence is the fixed confidence assigned to every
// deterministically synthesized position.
const FallbackConfidence = 0.45

// FallbackPosition synthesizes the position for one word. index is the
// word's stable transcript index and total the transcript length; frac runs
// 0..1 over the transcript, sweeping a full azimuth revolution with a gentle
// elevation and distance oscillation.
func FallbackPosition(word model.WordTiming, index int, total int) model.WordPosition {
	frac := 0.0
	if total > 1 {
		frac = float64(index) / float64(total-1)
	}
	azimuthPi := math.Mod(2.0*frac, 2.0)
	elevationPi := model.Clamp(0.5+0.18*math.Sin(2.0*math.Pi*frac), 0.0, 1.0)
	distance := model.Clamp(1.0+0.2*math.Sin(4.0*math.Pi*frac), 0.45, 2.5)

	return model.WordPosition{
		Index:      index,
		Word:       word.Word,
		Start:      word.Start,
		End:        word.End,
		Score:      word.Score,
		Position:   model.NewPosition(azimuthPi, elevationPi, distance),
		Confidence: FallbackConfidence,
		Method:     model.MethodFallback,
	}
}
