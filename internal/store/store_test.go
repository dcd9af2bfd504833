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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(t.TempDir())
	require.NoError(t, err)
	return s
}

// TestCreateJobAllocatesIsolatedDirectories checks that every job gets a
// fresh id with its own directory.
func TestCreateJobAllocatesIsolatedDirectories(t *testing.T) {
	s := newTestStore(t)

	first, err := s.CreateJob()
	require.NoError(t, err)
	second, err := s.CreateJob()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	for _, id := range []string{first, second} {
		info, err := os.Stat(s.JobDir(id))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

// TestSaveUploadSanitizesFilename checks that caller-supplied names cannot
// escape the job directory and that pathological names get a fallback.
func TestSaveUploadSanitizesFilename(t *testing.T) {
	s := newTestStore(t)
	jobId, err := s.CreateJob()
	require.NoError(t, err)

	name, err := s.SaveUpload(jobId, "../../../etc/passwd.wav", []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, "passwd.wav", name)
	assert.FileExists(t, filepath.Join(s.JobDir(jobId), "passwd.wav"))

	name, err = s.SaveUpload(jobId, "", []byte("audio"))
	require.NoError(t, err)
	assert.Equal(t, "upload.bin", name)
}

// TestListArtifactsSortedWithoutJobRecord checks the listing contract: sorted
// names, job.json excluded.
func TestListArtifactsSortedWithoutJobRecord(t *testing.T) {
	s := newTestStore(t)
	jobId, err := s.CreateJob()
	require.NoError(t, err)

	require.NoError(t, s.SaveArtifactBytes(jobId, "vocals.wav", []byte("v")))
	require.NoError(t, s.SaveArtifactBytes(jobId, "separation.json", []byte("{}")))
	require.NoError(t, s.SaveJob(&model.Job{JobId: jobId, Status: model.JobStatusCompleted, CreatedAt: time.Now().UTC()}))

	names, err := s.ListArtifacts(jobId)
	require.NoError(t, err)
	assert.Equal(t, []string{"separation.json", "vocals.wav"}, names)
}

// TestCopyArtifactFromBlobCache checks the copy path used on cache hits: a
// blob stored under a cache key lands in the job directory byte-identical,
// with the destination name sanitized to its base component.
func TestCopyArtifactFromBlobCache(t *testing.T) {
	s := newTestStore(t)
	jobId, err := s.CreateJob()
	require.NoError(t, err)

	content := []byte("stem-bytes")
	_, err = s.PutBlob("separation-abc-def", "vocals.wav", content)
	require.NoError(t, err)

	require.NoError(t, s.CopyArtifact(jobId, s.BlobPath("separation-abc-def", "vocals.wav"), "../vocals.wav"))
	copied, err := os.ReadFile(filepath.Join(s.JobDir(jobId), "vocals.wav"))
	require.NoError(t, err)
	assert.Equal(t, content, copied)

	// An empty destination keeps the source's base name.
	_, err = s.PutBlob("separation-abc-def", "stems.zip", []byte("zip-bytes"))
	require.NoError(t, err)
	require.NoError(t, s.CopyArtifact(jobId, s.BlobPath("separation-abc-def", "stems.zip"), ""))
	assert.FileExists(t, filepath.Join(s.JobDir(jobId), "stems.zip"))

	// A missing source is an error, not an empty artifact.
	err = s.CopyArtifact(jobId, s.BlobPath("separation-abc-def", "drums.wav"), "drums.wav")
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(s.JobDir(jobId), "drums.wav"))
}

// TestArtifactPathRejectsMissing checks that absent artifacts and traversal
// attempts both resolve to not-found.
func TestArtifactPathRejectsMissing(t *testing.T) {
	s := newTestStore(t)
	jobId, err := s.CreateJob()
	require.NoError(t, err)
	require.NoError(t, s.SaveArtifactBytes(jobId, "transcript.json", []byte("{}")))

	path, err := s.ArtifactPath(jobId, "transcript.json")
	require.NoError(t, err)
	assert.FileExists(t, path)

	_, err = s.ArtifactPath(jobId, "nope.json")
	assert.Error(t, err)
}

// TestSaveLoadJobRoundTrip persists a full job record and loads it back.
func TestSaveLoadJobRoundTrip(t *testing.T) {
	s := newTestStore(t)
	jobId, err := s.CreateJob()
	require.NoError(t, err)

	job := &model.Job{
		JobId:       jobId,
		Status:      model.JobStatusFailed,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
		InputFile:   "song.wav",
		InputDigest: store.DigestBytes([]byte("song")),
		Language:    "en",
		Stages: []model.StageResult{
			{Stage: model.StageSeparation, CacheHit: true, Payload: []byte(`{"provider":"demucs"}`)},
		},
		OutputArtifacts: []string{"separation.json", "song.wav"},
		Error:           "transcription: upstream unavailable",
	}
	require.NoError(t, s.SaveJob(job))

	loaded, err := s.LoadJob(jobId)
	require.NoError(t, err)
	assert.Equal(t, job.JobId, loaded.JobId)
	assert.Equal(t, job.Status, loaded.Status)
	assert.Equal(t, job.InputDigest, loaded.InputDigest)
	assert.Equal(t, job.Error, loaded.Error)
	require.Len(t, loaded.Stages, 1)
	assert.True(t, loaded.Stages[0].CacheHit)
	assert.JSONEq(t, `{"provider":"demucs"}`, string(loaded.Stages[0].Payload))
}

// TestLoadJobNotFound checks the sentinel for unknown job ids.
func TestLoadJobNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.LoadJob("00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

// TestDigestBytesStable pins the digest used for input identity and cache
// partitioning to SHA-256.
func TestDigestBytesStable(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		store.DigestBytes([]byte("hello")))
	assert.Equal(t, store.DigestBytes([]byte("a")), store.DigestBytes([]byte("a")))
	assert.NotEqual(t, store.DigestBytes([]byte("a")), store.DigestBytes([]byte("b")))
}
