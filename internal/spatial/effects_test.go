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

package spatial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/spatial"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/testutil"
)

func positionAt(azimuthPi float64, index int, word string, start, end *float64) model.WordPosition {
	return model.WordPosition{
		Index:      index,
		Word:       word,
		Start:      start,
		End:        end,
		Position:   model.NewPosition(azimuthPi, 0.5, 1.0),
		Confidence: 0.8,
		Method:     model.MethodGemini,
	}
}

// TestBuildEffectsTimedWords checks the effect ranges for fully timed words:
// each effect spans its word's own timing, and only the final hold effect
// gets the epsilon tail.
func TestBuildEffectsTimedWords(t *testing.T) {
	positions := []model.WordPosition{
		positionAt(0.0, 0, "hello", testutil.Ptr(0.0), testutil.Ptr(0.2)),
		positionAt(0.5, 1, "brave", testutil.Ptr(0.2), testutil.Ptr(0.5)),
		positionAt(1.0, 2, "new", testutil.Ptr(0.5), testutil.Ptr(0.9)),
	}

	effects := spatial.BuildEffects(positions)
	require.Len(t, effects, 3)

	assert.Equal(t, 0.0, effects[0].Start)
	assert.Equal(t, 0.2, effects[0].End)
	assert.Equal(t, 0.2, effects[1].Start)
	assert.Equal(t, 0.5, effects[1].End)
	assert.Equal(t, 0.5, effects[2].Start)
	assert.InDelta(t, 0.9+spatial.EffectEpsilon, effects[2].End, 1e-9)

	// Every effect moves toward the next word's position; the last holds.
	assert.Equal(t, positions[1].Position.Pi, effects[0].Move.ToPi)
	assert.Equal(t, positions[2].Position.Pi, effects[1].Move.ToPi)
	assert.Equal(t, positions[2].Position.Pi, effects[2].Move.FromPi)
	assert.Equal(t, positions[2].Position.Pi, effects[2].Move.ToPi)
}

// TestBuildEffectsChainsUntimedWords checks that words without timings
// inherit the previous end and still produce strictly positive ranges, and
// that a later word with real timings re-anchors the sequence.
func TestBuildEffectsChainsUntimedWords(t *testing.T) {
	positions := []model.WordPosition{
		positionAt(0.0, 0, "a", testutil.Ptr(0.0), testutil.Ptr(0.3)),
		positionAt(0.5, 1, "b", nil, nil),
		positionAt(1.0, 2, "c", nil, nil),
		positionAt(1.5, 3, "d", testutil.Ptr(2.0), testutil.Ptr(2.4)),
	}

	effects := spatial.BuildEffects(positions)
	require.Len(t, effects, 4)

	// Untimed words chain from the previous end in epsilon steps.
	assert.Equal(t, 0.3, effects[1].Start)
	assert.InDelta(t, 0.3+spatial.EffectEpsilon, effects[1].End, 1e-9)
	assert.InDelta(t, 0.3+spatial.EffectEpsilon, effects[2].Start, 1e-9)

	// The timed word re-anchors regardless of the synthesized ends before it.
	assert.Equal(t, 2.0, effects[3].Start)

	for _, effect := range effects {
		assert.Greater(t, effect.End, effect.Start, "effect %d must have a positive range", effect.Index)
	}
}

// TestBuildEffectsSingleWord checks the degenerate one-word transcript: one
// hold effect with the epsilon tail.
func TestBuildEffectsSingleWord(t *testing.T) {
	positions := []model.WordPosition{
		positionAt(0.25, 0, "solo", testutil.Ptr(1.0), testutil.Ptr(1.5)),
	}

	effects := spatial.BuildEffects(positions)
	require.Len(t, effects, 1)

	assert.Equal(t, 1.0, effects[0].Start)
	assert.InDelta(t, 1.5+spatial.EffectEpsilon, effects[0].End, 1e-9)
	assert.Equal(t, effects[0].Move.FromPi, effects[0].Move.ToPi)
	assert.Equal(t, effects[0].Move.FromRad, effects[0].Move.ToRad)
}

// TestBuildEffectsCarriesConfidenceAndMethod checks that each effect reports
// the provenance of the position it starts from.
func TestBuildEffectsCarriesConfidenceAndMethod(t *testing.T) {
	fallback := positionAt(0.5, 1, "b", testutil.Ptr(0.2), testutil.Ptr(0.4))
	fallback.Method = model.MethodFallback
	fallback.Confidence = spatial.FallbackConfidence

	positions := []model.WordPosition{
		positionAt(0.0, 0, "a", testutil.Ptr(0.0), testutil.Ptr(0.2)),
		fallback,
	}

	effects := spatial.BuildEffects(positions)
	require.Len(t, effects, 2)
	assert.Equal(t, model.MethodGemini, effects[0].Method)
	assert.Equal(t, 0.8, effects[0].Confidence)
	assert.Equal(t, model.MethodFallback, effects[1].Method)
	assert.Equal(t, spatial.FallbackConfidence, effects[1].Confidence)
}

// TestBuildEffectsEmpty checks the empty input contract.
func TestBuildEffectsEmpty(t *testing.T) {
	assert.Empty(t, spatial.BuildEffects(nil))
	assert.NotNil(t, spatial.BuildEffects(nil))
}
