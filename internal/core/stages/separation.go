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

// Package stages provides the concrete pipeline stage commands. This file
// defines the separation stage, the first step of the pipeline.
//
// Logic Flow:
//  1. Take the uploaded audio from the context and derive the cache key from
//     the job's input digest plus the separation endpoint's URL and version.
//  2. On a miss, call the separation service, extract the vocal track from
//     the returned multi-stem archive, and store both binaries in the blob
//     cache next to the JSON payload.
//  3. Copy the archive and vocals into the job directory and persist the
//     separation payload as `separation.json`.
//  4. Pipe the vocal track forward so transcription runs on isolated vocals
//     rather than the full mix. A metadata-only separation (no archive)
//     pipes the original upload instead.
package stages

import (
	"fmt"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/adapters"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/cor"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
)

// SeparationStage is the command that splits the uploaded audio into stems
// via the separation service, with content-addressed caching of both the
// JSON payload and the stem binaries.
type SeparationStage struct {
	cor.BaseCommand
	store     *store.Store
	separator adapters.Separator
	endpoint  config.AdapterEndpoint
}

// NewSeparationStage is the constructor for the SeparationStage command.
func NewSeparationStage(
	name string,
	s *store.Store,
	separator adapters.Separator,
	endpoint config.AdapterEndpoint) *SeparationStage {
	return &SeparationStage{
		BaseCommand: *cor.NewBaseCommand(name),
		store:       s,
		separator:   separator,
		endpoint:    endpoint,
	}
}

// Execute runs the separation stage against the uploaded audio in the context.
func (t *SeparationStage) Execute(c cor.Context) {
	in := c.Get(t.GetInputParam()).(*AudioInput)
	job := JobFrom(c)

	key := store.CacheKey(model.StageSeparation, job.InputDigest, map[string]any{
		"url":     t.endpoint.URL,
		"version": t.endpoint.Version,
	})

	var result *model.SeparationResult
	var archive, vocals []byte
	cacheHit := false

	var cached model.SeparationResult
	if cacheLookup(t.store, key, &cached) {
		// A payload that references an archive is only a usable hit when the
		// blobs are still present; otherwise recompute the whole entry.
		if cached.ArchiveFile == "" {
			result, cacheHit = &cached, true
		} else {
			arc, arcOK, _ := t.store.GetBlob(key, StemsArchiveArtifact)
			voc, vocOK, _ := t.store.GetBlob(key, VocalsArtifact)
			if arcOK && vocOK {
				result, archive, vocals, cacheHit = &cached, arc, voc, true
			}
		}
	}

	if !cacheHit {
		res, arc, err := t.separator.Separate(c.GetContext(), in.Data, in.MIMEType)
		if err != nil {
			t.GetErrorCounter().Add(c.GetContext(), 1)
			c.AddError(t.GetName(), fmt.Errorf("separation failed: %w", err))
			return
		}
		result, archive = res, arc

		if len(archive) > 0 {
			vocals, err = adapters.ExtractStem(archive, adapters.VocalsMember)
			if err != nil {
				t.GetErrorCounter().Add(c.GetContext(), 1)
				c.AddError(t.GetName(), fmt.Errorf("separation failed: %w", err))
				return
			}
			if _, err := t.store.PutBlob(key, StemsArchiveArtifact, archive); err != nil {
				t.GetErrorCounter().Add(c.GetContext(), 1)
				c.AddError(t.GetName(), err)
				return
			}
			if _, err := t.store.PutBlob(key, VocalsArtifact, vocals); err != nil {
				t.GetErrorCounter().Add(c.GetContext(), 1)
				c.AddError(t.GetName(), err)
				return
			}
			result.ArchiveFile = StemsArchiveArtifact
			result.VocalsFile = VocalsArtifact
		}
		cacheStore(t.store, key, result)
	}

	// Every job directory is self-contained: artifacts are written on hits
	// too, because the cache only stores one copy per key.
	if err := t.store.SaveArtifactJSON(job.JobId, SeparationArtifact, result); err != nil {
		t.GetErrorCounter().Add(c.GetContext(), 1)
		c.AddError(t.GetName(), err)
		return
	}
	if len(archive) > 0 {
		// On a hit the binaries already sit in the blob cache; copy them
		// into the job directory instead of rewriting the bytes.
		if cacheHit {
			if err := t.store.CopyArtifact(job.JobId, t.store.BlobPath(key, StemsArchiveArtifact), StemsArchiveArtifact); err != nil {
				t.GetErrorCounter().Add(c.GetContext(), 1)
				c.AddError(t.GetName(), err)
				return
			}
			if err := t.store.CopyArtifact(job.JobId, t.store.BlobPath(key, VocalsArtifact), VocalsArtifact); err != nil {
				t.GetErrorCounter().Add(c.GetContext(), 1)
				c.AddError(t.GetName(), err)
				return
			}
		} else {
			if err := t.store.SaveArtifactBytes(job.JobId, StemsArchiveArtifact, archive); err != nil {
				t.GetErrorCounter().Add(c.GetContext(), 1)
				c.AddError(t.GetName(), err)
				return
			}
			if err := t.store.SaveArtifactBytes(job.JobId, VocalsArtifact, vocals); err != nil {
				t.GetErrorCounter().Add(c.GetContext(), 1)
				c.AddError(t.GetName(), err)
				return
			}
		}
	}

	if err := recordStage(c, model.StageSeparation, cacheHit, result); err != nil {
		t.GetErrorCounter().Add(c.GetContext(), 1)
		c.AddError(t.GetName(), err)
		return
	}

	next := in
	if len(vocals) > 0 {
		next = &AudioInput{Data: vocals, MIMEType: "audio/wav"}
	}
	t.GetSuccessCounter().Add(c.GetContext(), 1)
	c.Add(t.GetOutputParam(), next)
}
