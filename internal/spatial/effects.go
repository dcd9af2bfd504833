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
// This file builds the temporal effect sequence from the finished positions:
// one AmbisonicEffect per word, moving the source from the word's position to
// the next word's position, or holding in place for the final word.
//
// Timing rules: a word missing its own start time inherits the previous
// effect's end, so runs of untimed words chain forward; a word with real
// timings re-anchors the sequence, which bounds any drift introduced by
// synthesized ends. Every range is strictly positive: degenerate ranges are
// widened by EffectEpsilon, and the final hold effect gets an EffectEpsilon
// tail past the word's own end.
package spatial

import "github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"

// EffectEpsilon is the minimum positive effect duration, in seconds.
const EffectEpsilon = 0.01

// BuildEffects derives the effect sequence from an ordered position list.
// The result always has exactly len(positions) entries.
func BuildEffects(positions []model.WordPosition) []model.AmbisonicEffect {
	out := make([]model.AmbisonicEffect, 0, len(positions))
	last := len(positions) - 1
	prevEnd := 0.0

	for i, wp := range positions {
		start := prevEnd
		if wp.Start != nil {
			start = *wp.Start
		}
		end := start
		if wp.End != nil {
			end = *wp.End
		}
		if i == last {
			end += EffectEpsilon
		}
		if end <= start {
			end = start + EffectEpsilon
		}

		target := wp.Position
		if i < last {
			target = positions[i+1].Position
		}

		out = append(out, model.AmbisonicEffect{
			Index: wp.Index,
			Word:  wp.Word,
			Start: start,
			End:   end,
			Move: model.MoveEffect{
				FromPi:  wp.Position.Pi,
				ToPi:    target.Pi,
				FromRad: wp.Position.Rad,
				ToRad:   target.Rad,
			},
			Confidence: wp.Confidence,
			Method:     wp.Method,
		})
		prevEnd = end
	}
	return out
}
