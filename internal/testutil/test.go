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

// Package testutil provides helpers and fakes that support the test suite:
// an in-code test configuration, fake upstream adapters, a scriptable chunk
// predictor and a stems archive builder matching the wire format of the real
// separation service.
package testutil

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/spatial"
)

// NewTestConfig returns a configuration suitable for unit tests, rooted at
// dataDir (normally t.TempDir()). It is built in code rather than loaded from
// TOML so tests never depend on the working directory.
func NewTestConfig(dataDir string) *config.Config {
	cfg := config.NewConfig()
	cfg.Application = config.Application{
		Name:             "spatial-audio-test",
		Port:             0,
		MaxUploadMB:      8,
		EnableSpatialize: true,
	}
	cfg.Storage = config.Storage{DataDir: dataDir}
	cfg.Separation = config.AdapterEndpoint{URL: "http://separation.test", Version: "demucs-test", TimeoutInSeconds: 5}
	cfg.Transcription = config.AdapterEndpoint{URL: "http://transcription.test", Version: "whisperx-test", TimeoutInSeconds: 5}
	cfg.Spatial = config.Spatial{AgentModel: "spatial-test", ChunkSize: 12, ContextWords: 4}
	return cfg
}

// BuildStemsArchive builds an in-memory zip archive with the given members,
// the same shape the separation service returns. Use the member name
// constants from the adapters package for realistic archives.
func BuildStemsArchive(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range members {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("failed to add archive member %s: %v", name, err)
		}
		if _, err := f.Write(content); err != nil {
			t.Fatalf("failed to write archive member %s: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to finalize archive: %v", err)
	}
	return buf.Bytes()
}

// FakeSeparator is a scriptable adapters.Separator. It counts calls so cache
// tests can assert that a second identical run never reaches the service.
type FakeSeparator struct {
	Result  *model.SeparationResult
	Archive []byte
	Err     error
	Calls   int
}

func (f *FakeSeparator) Separate(_ context.Context, _ []byte, _ string) (*model.SeparationResult, []byte, error) {
	f.Calls++
	if f.Err != nil {
		return nil, nil, f.Err
	}
	// Copy the payload: the pipeline annotates it with artifact names.
	res := *f.Result
	res.Stems = append([]model.Stem(nil), f.Result.Stems...)
	return &res, f.Archive, nil
}

// FakeTranscriber is a scriptable adapters.Transcriber.
type FakeTranscriber struct {
	Transcript *model.Transcript
	Err        error
	Calls      int
}

func (f *FakeTranscriber) Transcribe(_ context.Context, _ []byte, _ string, _ string) (*model.Transcript, error) {
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	res := *f.Transcript
	return &res, nil
}

// FakePredictor is a scriptable spatial.ChunkPredictor backed by a function.
type FakePredictor struct {
	Fn    func(req *spatial.ChunkRequest) ([]spatial.PredictedPosition, error)
	Calls int
}

func (f *FakePredictor) PredictChunk(_ context.Context, req *spatial.ChunkRequest) ([]spatial.PredictedPosition, error) {
	f.Calls++
	return f.Fn(req)
}

// Ptr returns a pointer to v. Handy for the optional word timing fields.
func Ptr[T any](v T) *T {
	return &v
}
