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

// Package store provides the filesystem-backed persistence layer for the
// pipeline. This file implements the content-addressed cache: response
// envelopes keyed by a deterministic (stage, input digest, parameter set)
// key, plus a parallel blob namespace for large binary stage outputs such as
// the multi-stem archive and its extracted vocal track.
//
// The cache is append-only and carries no locking: two jobs computing the
// same key may both miss and both write, which is harmless because payloads
// for the same key are semantically equivalent. Entries live until someone
// deletes them externally.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
)

// CacheEnvelope wraps a cached payload with the time it was written.
type CacheEnvelope struct {
	CachedAt time.Time       `json:"cached_at"`
	Payload  json.RawMessage `json:"payload"`
}

// CacheKey derives the deterministic cache key for a stage execution. The
// parameter set must capture everything that affects the stage output
// (adapter version and URL, language, upstream content digests) so that
// changing any of those produces a different key.
//
// Determinism relies on encoding/json sorting map keys lexicographically and
// emitting no insignificant whitespace, so two maps with identical contents
// always serialize to the same bytes regardless of construction order.
func CacheKey(stage model.StageName, inputDigest string, params map[string]any) string {
	blob, err := json.Marshal(params)
	if err != nil {
		// Parameter sets are plain string/number maps built by the stages
		// themselves; a marshal failure is a programming error.
		panic(fmt.Sprintf("unmarshalable cache params for stage %s: %v", stage, err))
	}
	return fmt.Sprintf("%s-%s-%s", stage, inputDigest, DigestBytes(blob))
}

// CacheGet reads the payload stored under key. The second return value is
// false when no entry exists.
func (s *Store) CacheGet(key string) (json.RawMessage, bool, error) {
	data, err := os.ReadFile(s.responsePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	var envelope CacheEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, false, fmt.Errorf("failed to decode cache entry %s: %w", key, err)
	}
	return envelope.Payload, true, nil
}

// CacheSet stores payload under key, stamping the envelope with the current
// UTC time. Overwrites are permitted; callers only set on miss.
func (s *Store) CacheSet(key string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal cache payload for %s: %w", key, err)
	}
	envelope := CacheEnvelope{CachedAt: time.Now().UTC(), Payload: raw}
	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache envelope for %s: %w", key, err)
	}
	if err := os.WriteFile(s.responsePath(key), data, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry %s: %w", key, err)
	}
	return nil
}

// PutBlob stores a named binary under the blob namespace for key and returns
// the path it was written to. The per-key directory lets one cache entry
// carry both the raw archive and files derived from it.
func (s *Store) PutBlob(key string, name string, content []byte) (string, error) {
	dir := filepath.Join(s.blobsDir, filepath.Base(key))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory %s: %w", key, err)
	}
	path := filepath.Join(dir, filepath.Base(name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob %s/%s: %w", key, name, err)
	}
	return path, nil
}

// GetBlob reads a named binary from the blob namespace for key. The second
// return value is false when the blob is absent.
func (s *Store) GetBlob(key string, name string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.BlobPath(key, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read blob %s/%s: %w", key, name, err)
	}
	return data, true, nil
}

// BlobPath returns the filesystem path a named blob would occupy, whether or
// not it exists. Used to copy cached blobs into job directories.
func (s *Store) BlobPath(key string, name string) string {
	return filepath.Join(s.blobsDir, filepath.Base(key), filepath.Base(name))
}

func (s *Store) responsePath(key string) string {
	return filepath.Join(s.responsesDir, filepath.Base(key)+".json")
}
