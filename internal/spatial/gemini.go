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
// This file implements the production ChunkPredictor on Gemini.
//
// The model handle is wrapped in a rate-limiting decorator so the service
// stays inside its request quota: the limiter blocks until a slot is
// available, bounded by the per-chunk timeout. There is deliberately no
// retry here — a failed chunk is the synthesizer's cue to degrade to the
// deterministic fallback, which is cheaper and more predictable than
// hammering a struggling service.
//
// The prompt is a Go text template carrying the chunk's target words, the
// context windows, the previous anchors, and a one-entry example of the
// exact JSON shape expected back (few-shot prompting, which markedly
// improves structural reliability of the response).
package spatial

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/config"
)

// DefaultPromptTemplate is used when the configuration does not override the
// spatial prompt. The rules mirror the response schema the parser expects.
const DefaultPromptTemplate = `Predict a 3D spatial position for every target lyric word for immersive ambisonic playback.

Rules:
- Return valid JSON only, matching the example shape exactly.
- Include one entry in "positions" for every target index, preserving the index values.
- azimuth_pi must be a float in [0,2), elevation_pi in [0,1], distance in [0.25,3.0], confidence in [0,1].
- Context words and previous positions are continuity cues only; do not return entries for them.
- Keep movement between consecutive words smooth and continuous with the previous positions.

Language: {{.LANGUAGE}}
Target words: {{.TARGET_WORDS}}
Context before: {{.CONTEXT_BEFORE}}
Context after: {{.CONTEXT_AFTER}}
Previous positions: {{.PREVIOUS_POSITIONS}}

Example response:
{{.EXAMPLE_JSON}}
`

// chunkResponse is the JSON document the model must return.
type chunkResponse struct {
	Positions []PredictedPosition `json:"positions"`
}

// QuotaAwareGeminiModel decorates a Gemini model handle with a rate limiter
// so chunk predictions never exceed the configured requests per second.
type QuotaAwareGeminiModel struct {
	GenerateConfig *genai.GenerateContentConfig
	ModelName      string
	ModelHandle    *genai.Models
	limiter        *rate.Limiter
}

// NewQuotaAwareGeminiModel wraps the model named by cfg with its generation
// settings and rate limit.
func NewQuotaAwareGeminiModel(cfg config.GeminiModel, models *genai.Models) *QuotaAwareGeminiModel {
	burst := cfg.RateLimit
	if burst < 1 {
		burst = 1
	}
	return &QuotaAwareGeminiModel{
		GenerateConfig: &genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](cfg.Temperature),
			MaxOutputTokens:  cfg.MaxTokens,
			ResponseMIMEType: cfg.OutputFormat,
		},
		ModelName:   cfg.Model,
		ModelHandle: models,
		limiter:     rate.NewLimiter(rate.Limit(burst), burst),
	}
}

// GenerateContent blocks until the rate limiter admits the request, then
// performs a single generation call. The context deadline bounds both.
func (q *QuotaAwareGeminiModel) GenerateContent(ctx context.Context, contents []*genai.Content) (*genai.GenerateContentResponse, error) {
	if err := q.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter rejected request: %w", err)
	}
	return q.ModelHandle.GenerateContent(ctx, q.ModelName, contents, q.GenerateConfig)
}

// GeminiPredictor is the production ChunkPredictor.
type GeminiPredictor struct {
	model              *QuotaAwareGeminiModel
	template           *template.Template
	timeout            time.Duration
	inputTokenCounter  metric.Int64Counter
	outputTokenCounter metric.Int64Counter
}

// NewGeminiPredictor builds a predictor from the named model configuration.
// The prompt template comes from the configuration when present, otherwise
// DefaultPromptTemplate; an unparsable template is a startup error.
func NewGeminiPredictor(cfg config.GeminiModel, promptTemplate string, models *genai.Models) (*GeminiPredictor, error) {
	text := promptTemplate
	if text == "" {
		text = DefaultPromptTemplate
	}
	tmpl, err := template.New("spatial-prompt").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse spatial prompt template: %w", err)
	}

	meter := otel.Meter("github.com/jaycherian/gcp-go-spatial-audio/spatial")
	inputTokens, _ := meter.Int64Counter("spatial.gemini.token.input")
	outputTokens, _ := meter.Int64Counter("spatial.gemini.token.output")

	return &GeminiPredictor{
		model:              NewQuotaAwareGeminiModel(cfg, models),
		template:           tmpl,
		timeout:            time.Duration(cfg.TimeoutInSeconds) * time.Second,
		inputTokenCounter:  inputTokens,
		outputTokenCounter: outputTokens,
	}, nil
}

// PredictChunk renders the prompt for one chunk, calls the model, and parses
// the JSON response. Every failure mode returns an error; normalization of
// the numeric values is the synthesizer's job.
func (g *GeminiPredictor) PredictChunk(ctx context.Context, req *ChunkRequest) ([]PredictedPosition, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	params, err := g.promptParams(req)
	if err != nil {
		return nil, err
	}
	var buffer bytes.Buffer
	if err := g.template.Execute(&buffer, params); err != nil {
		return nil, fmt.Errorf("failed to execute spatial prompt template: %w", err)
	}

	resp, err := g.model.GenerateContent(ctx, genai.Text(buffer.String()))
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	if resp.UsageMetadata != nil {
		g.inputTokenCounter.Add(ctx, int64(resp.UsageMetadata.PromptTokenCount))
		g.outputTokenCounter.Add(ctx, int64(resp.UsageMetadata.CandidatesTokenCount))
	}

	text := responseText(resp)
	if text == "" {
		return nil, fmt.Errorf("gemini returned empty content")
	}

	var parsed chunkResponse
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &parsed); err != nil {
		return nil, fmt.Errorf("malformed gemini response: %w", err)
	}
	if len(parsed.Positions) == 0 {
		return nil, fmt.Errorf("gemini response missing positions list")
	}
	return parsed.Positions, nil
}

// promptParams produces the substitution map for the prompt template. Every
// structured value is serialized to compact JSON so the model sees one
// unambiguous representation.
func (g *GeminiPredictor) promptParams(req *ChunkRequest) (map[string]any, error) {
	params := make(map[string]any)
	for key, value := range map[string]any{
		"TARGET_WORDS":       req.Targets,
		"CONTEXT_BEFORE":     req.ContextBefore,
		"CONTEXT_AFTER":      req.ContextAfter,
		"PREVIOUS_POSITIONS": req.PreviousAnchors,
	} {
		blob, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal prompt section %s: %w", key, err)
		}
		params[key] = string(blob)
	}
	params["LANGUAGE"] = req.Language
	if req.Language == "" {
		params["LANGUAGE"] = "unknown"
	}

	exampleIndex := 0
	if len(req.Targets) > 0 {
		exampleIndex = req.Targets[0].Index
	}
	example, err := json.Marshal(chunkResponse{Positions: []PredictedPosition{{
		Index:       exampleIndex,
		AzimuthPi:   0.5,
		ElevationPi: 0.5,
		Distance:    1.0,
		Confidence:  0.8,
	}}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal example response: %w", err)
	}
	params["EXAMPLE_JSON"] = string(example)
	return params, nil
}

// responseText concatenates the text parts of every candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}

// stripCodeFences removes a ```json ... ``` wrapper when the model ignores
// the response MIME type and fences its output anyway.
func stripCodeFences(text string) string {
	cleaned := strings.TrimSpace(text)
	if strings.HasPrefix(cleaned, "```") {
		if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
			cleaned = cleaned[idx+1:]
		}
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	return strings.TrimSpace(cleaned)
}
