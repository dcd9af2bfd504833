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
// This file implements the HTTP client for the source-separation service.
//
// The wire contract is deliberately small: the audio bytes are POSTed as the
// request body with their sniffed content type, and the service answers with
// a JSON document naming the stems it produced plus, optionally, a base64
// encoded archive containing the stem files themselves.
package adapters

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
)

// separationResponse is the upstream wire document, decoded and validated
// here before anything downstream touches it.
type separationResponse struct {
	Provider      string       `json:"provider"`
	Stems         []model.Stem `json:"stems"`
	ArchiveBase64 string       `json:"archive_base64,omitempty"`
}

// HTTPSeparator calls a hosted source-separation service over HTTP.
type HTTPSeparator struct {
	endpoint config.AdapterEndpoint
	client   *http.Client
}

// NewHTTPSeparator builds a separator for the configured endpoint, with the
// endpoint's timeout applied to the whole request.
func NewHTTPSeparator(endpoint config.AdapterEndpoint) *HTTPSeparator {
	return &HTTPSeparator{
		endpoint: endpoint,
		client:   &http.Client{Timeout: time.Duration(endpoint.TimeoutInSeconds) * time.Second},
	}
}

// Separate sends the audio to the separation service and validates the
// response. The returned archive is nil when the service sent metadata only.
func (s *HTTPSeparator) Separate(ctx context.Context, audio []byte, mimeType string) (*model.SeparationResult, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint.URL+"/separate", bytes.NewReader(audio))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build separation request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("separation request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("separation service returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read separation response: %w", err)
	}

	var wire separationResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, nil, fmt.Errorf("malformed separation response: %w", err)
	}
	if wire.Provider == "" || len(wire.Stems) == 0 {
		return nil, nil, fmt.Errorf("malformed separation response: missing provider or stems")
	}

	var archive []byte
	if wire.ArchiveBase64 != "" {
		archive, err = base64.StdEncoding.DecodeString(wire.ArchiveBase64)
		if err != nil {
			return nil, nil, fmt.Errorf("malformed separation response: bad archive encoding: %w", err)
		}
	}

	result := &model.SeparationResult{
		Provider: wire.Provider,
		Version:  s.endpoint.Version,
		Stems:    wire.Stems,
	}
	return result, archive, nil
}
