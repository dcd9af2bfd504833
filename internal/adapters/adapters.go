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

// Package adapters holds the thin interfaces to the upstream model services
// (source separation and transcription) and their HTTP implementations. The
// services are opaque collaborators: the pipeline only depends on the two
// interfaces below, and responses are validated into the closed payload
// shapes at this boundary so nothing downstream ever sees untyped JSON.
//
// Calls are synchronous and bounded by the configured timeout. There are no
// retries here: a transport error or timeout surfaces as a stage failure.
package adapters

import (
	"context"

	"github.com/h2non/filetype"

	"github.com/jaycherian/gcp-go-spatial-audio/internal/core/model"
)

// Separator splits an audio file into stems. The second return value is the
// optional multi-stem archive; nil when the service returned metadata only.
type Separator interface {
	Separate(ctx context.Context, audio []byte, mimeType string) (*model.SeparationResult, []byte, error)
}

// Transcriber produces a word-level transcript of an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string, language string) (*model.Transcript, error)
}

// DetectMIME sniffs the content type of uploaded bytes so adapters can send
// an accurate Content-Type upstream. Unknown content degrades to the generic
// binary type rather than failing: the upstream services do their own probing.
func DetectMIME(data []byte) string {
	kind, err := filetype.Match(data)
	if err != nil || kind == filetype.Unknown {
		return "application/octet-stream"
	}
	return kind.MIME.Value
}
