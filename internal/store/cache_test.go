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

package store_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
)

// TestCacheKeyDeterministic checks that parameter map construction order
// never changes the key.
func TestCacheKeyDeterministic(t *testing.T) {
	digest := store.DigestBytes([]byte("audio"))

	a := store.CacheKey(model.StageTranscription, digest, map[string]any{
		"url":      "http://t.test",
		"version":  "v2",
		"language": "en",
	})
	b := store.CacheKey(model.StageTranscription, digest, map[string]any{
		"language": "en",
		"version":  "v2",
		"url":      "http://t.test",
	})
	assert.Equal(t, a, b)
}

// TestCacheKeySensitivity checks that the stage, the input digest and every
// parameter value each produce a distinct key.
func TestCacheKeySensitivity(t *testing.T) {
	digest := store.DigestBytes([]byte("audio"))
	params := map[string]any{"url": "http://t.test", "version": "v2"}
	base := store.CacheKey(model.StageSeparation, digest, params)

	assert.NotEqual(t, base, store.CacheKey(model.StageTranscription, digest, params))
	assert.NotEqual(t, base, store.CacheKey(model.StageSeparation, store.DigestBytes([]byte("other")), params))
	assert.NotEqual(t, base, store.CacheKey(model.StageSeparation, digest, map[string]any{
		"url": "http://t.test", "version": "v3",
	}))
}

// TestCacheGetSetRoundTrip stores a payload and reads it back, and checks
// that an unknown key is a clean miss.
func TestCacheGetSetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	key := store.CacheKey(model.StageSeparation, store.DigestBytes([]byte("audio")), map[string]any{"version": "v2"})

	_, ok, err := s.CacheGet(key)
	require.NoError(t, err)
	assert.False(t, ok)

	payload := &model.SeparationResult{Provider: "demucs", Version: "v2", Stems: []model.Stem{{Name: "vocals"}}}
	require.NoError(t, s.CacheSet(key, payload))

	raw, ok, err := s.CacheGet(key)
	require.NoError(t, err)
	require.True(t, ok)

	var got model.SeparationResult
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, *payload, got)
}

// TestCacheSetOverwrites checks last-writer-wins semantics.
func TestCacheSetOverwrites(t *testing.T) {
	s := newTestStore(t)
	key := store.CacheKey(model.StageTranscription, store.DigestBytes([]byte("audio")), map[string]any{"language": "en"})

	require.NoError(t, s.CacheSet(key, map[string]string{"text": "first"}))
	require.NoError(t, s.CacheSet(key, map[string]string{"text": "second"}))

	raw, ok, err := s.CacheGet(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"text":"second"}`, string(raw))
}

// TestBlobRoundTrip exercises the binary namespace shared by a cache key:
// multiple named blobs per key, clean misses, stable paths.
func TestBlobRoundTrip(t *testing.T) {
	s := newTestStore(t)
	key := store.CacheKey(model.StageSeparation, store.DigestBytes([]byte("audio")), map[string]any{"version": "v2"})

	_, ok, err := s.GetBlob(key, "stems.zip")
	require.NoError(t, err)
	assert.False(t, ok)

	archivePath, err := s.PutBlob(key, "stems.zip", []byte("archive-bytes"))
	require.NoError(t, err)
	assert.FileExists(t, archivePath)
	_, err = s.PutBlob(key, "vocals.wav", []byte("vocals-bytes"))
	require.NoError(t, err)

	data, ok, err := s.GetBlob(key, "stems.zip")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("archive-bytes"), data)

	data, ok, err = s.GetBlob(key, "vocals.wav")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("vocals-bytes"), data)

	assert.Equal(t, archivePath, s.BlobPath(key, "stems.zip"))
}
