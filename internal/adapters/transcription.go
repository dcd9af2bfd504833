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

// Package adapters holds the thin interfaces to the upstream model services.
// This file implements the HTTP client for the transcription service. The
// audio (normally the extracted vocal stem) is POSTed as the request body;
// an optional language hint rides along as a query parameter.
package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
)

// HTTPTranscriber calls a hosted transcription service over HTTP.
type HTTPTranscriber struct {
	endpoint config.AdapterEndpoint
	client   *http.Client
}

// NewHTTPTranscriber builds a transcriber for the configured endpoint.
func NewHTTPTranscriber(endpoint config.AdapterEndpoint) *HTTPTranscriber {
	return &HTTPTranscriber{
		endpoint: endpoint,
		client:   &http.Client{Timeout: time.Duration(endpoint.TimeoutInSeconds) * time.Second},
	}
}

// Transcribe sends the audio to the transcription service and validates the
// word-level transcript it returns.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string, language string) (*model.Transcript, error) {
	target := t.endpoint.URL + "/transcribe"
	if language != "" {
		target += "?language=" + url.QueryEscape(language)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("failed to build transcription request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcription service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcription response: %w", err)
	}

	transcript := &model.Transcript{}
	if err := json.Unmarshal(body, transcript); err != nil {
		return nil, fmt.Errorf("malformed transcription response: %w", err)
	}
	if transcript.Provider == "" || transcript.Model == "" {
		return nil, fmt.Errorf("malformed transcription response: missing provider or model")
	}
	// Words may legitimately be empty (instrumental input); the field itself
	// must still be present as a list in the persisted payload.
	if transcript.Words == nil {
		transcript.Words = []model.WordTiming{}
	}
	if transcript.Segments == nil {
		transcript.Segments = []model.Segment{}
	}
	return transcript, nil
}
