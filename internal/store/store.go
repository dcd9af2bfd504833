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
// pipeline: the per-job directory abstraction (uploads, stage artifacts and
// the final job record) and the content-addressed response/blob cache.
//
// Layout under the configured data directory:
//
//	jobs/<job-id>/            one isolated directory per job
//	cache/responses/          JSON envelopes keyed by the deterministic cache key
//	cache/blobs/<key>/        raw binary stage outputs, keyed identically
//
// This file defines the Store itself and the job directory operations. Every
// artifact name is reduced to its base component before touching the
// filesystem so a hostile name can never escape the job directory.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
)

// JobRecordFile is the name of the persisted job record inside a job
// directory. It is excluded from artifact listings.
const JobRecordFile = "job.json"

// ErrJobNotFound is returned by LoadJob when no record exists for the id.
var ErrJobNotFound = errors.New("job not found")

// Store is the filesystem persistence layer shared by the pipeline workflow
// and the HTTP handlers. Jobs never alias each other (each owns a directory);
// the cache is shared with last-writer-wins semantics.
type Store struct {
	baseDir      string
	jobsDir      string
	responsesDir string
	blobsDir     string
}

// New creates a Store rooted at baseDir, creating the directory skeleton if
// it does not exist yet.
func New(baseDir string) (*Store, error) {
	s := &Store{
		baseDir:      baseDir,
		jobsDir:      filepath.Join(baseDir, "jobs"),
		responsesDir: filepath.Join(baseDir, "cache", "responses"),
		blobsDir:     filepath.Join(baseDir, "cache", "blobs"),
	}
	for _, dir := range []string{s.jobsDir, s.responsesDir, s.blobsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}
	return s, nil
}

// DigestBytes returns the hex SHA-256 of data. This is the content digest
// used both as the job's input digest and as the cache partition key.
func DigestBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CreateJob allocates a fresh job id and its isolated directory. Ids are
// never reused: if the directory already exists the call fails rather than
// sharing state between two jobs.
func (s *Store) CreateJob() (string, error) {
	jobId := uuid.NewString()
	if err := os.Mkdir(s.JobDir(jobId), 0o755); err != nil {
		return "", fmt.Errorf("failed to create job directory: %w", err)
	}
	return jobId, nil
}

// JobDir returns the directory for a job id. The id is sanitized to its base
// component so a caller-supplied id cannot traverse outside the jobs root.
func (s *Store) JobDir(jobId string) string {
	return filepath.Join(s.jobsDir, filepath.Base(jobId))
}

// SaveUpload writes the raw uploaded bytes into the job directory under the
// sanitized base name of the original filename. Returns the artifact name.
func (s *Store) SaveUpload(jobId string, filename string, content []byte) (string, error) {
	name := filepath.Base(filename)
	if name == "." || name == string(os.PathSeparator) || name == "" {
		name = "upload.bin"
	}
	if err := os.WriteFile(filepath.Join(s.JobDir(jobId), name), content, 0o644); err != nil {
		return "", fmt.Errorf("failed to save upload: %w", err)
	}
	return name, nil
}

// SaveArtifactJSON marshals payload with indentation and writes it as a named
// artifact of the job.
func (s *Store) SaveArtifactJSON(jobId string, name string, payload any) error {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal artifact %s: %w", name, err)
	}
	return s.SaveArtifactBytes(jobId, name, data)
}

// SaveArtifactBytes writes raw bytes as a named artifact of the job.
func (s *Store) SaveArtifactBytes(jobId string, name string, content []byte) error {
	dst := filepath.Join(s.JobDir(jobId), filepath.Base(name))
	if err := os.WriteFile(dst, content, 0o644); err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", name, err)
	}
	return nil
}

// CopyArtifact copies an existing file (typically a cached blob) into the job
// directory. When destName is empty the source's base name is kept.
func (s *Store) CopyArtifact(jobId string, sourcePath string, destName string) error {
	if destName == "" {
		destName = filepath.Base(sourcePath)
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to open artifact source: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(filepath.Join(s.JobDir(jobId), filepath.Base(destName)))
	if err != nil {
		return fmt.Errorf("failed to create artifact copy: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy artifact: %w", err)
	}
	return nil
}

// ListArtifacts returns the sorted names of every file in the job directory
// except the job record itself.
func (s *Store) ListArtifacts(jobId string) ([]string, error) {
	entries, err := os.ReadDir(s.JobDir(jobId))
	if err != nil {
		return nil, fmt.Errorf("failed to list job directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == JobRecordFile {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// ArtifactPath resolves a named artifact inside the job directory, verifying
// it exists and is a regular file. Both components are sanitized.
func (s *Store) ArtifactPath(jobId string, name string) (string, error) {
	path := filepath.Join(s.JobDir(jobId), filepath.Base(name))
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("artifact %s not found", name)
	}
	return path, nil
}

// SaveJob persists the final job record. The record is immutable after this
// call; the store never rewrites it.
func (s *Store) SaveJob(job *model.Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}
	path := filepath.Join(s.JobDir(job.JobId), JobRecordFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}

// LoadJob reads a persisted job record, returning ErrJobNotFound when the
// job directory or its record is absent.
func (s *Store) LoadJob(jobId string) (*model.Job, error) {
	data, err := os.ReadFile(filepath.Join(s.JobDir(jobId), JobRecordFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job record: %w", err)
	}
	job := &model.Job{}
	if err := json.Unmarshal(data, job); err != nil {
		return nil, fmt.Errorf("failed to decode job record: %w", err)
	}
	return job, nil
}
