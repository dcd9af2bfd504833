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
// This file handles the multi-stem zip archive returned by the separation
// service. Member names follow the usual four-stem convention; the vocal
// track is the one the rest of the pipeline cares about, since transcription
// runs against it when present.
package adapters

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
)

// Well-known member names inside a stems archive.
const (
	VocalsMember = "vocals.wav"
	DrumsMember  = "drums.wav"
	BassMember   = "bass.wav"
	OtherMember  = "other.wav"
)

// ExtractStem pulls a single named member out of a stems zip archive. A
// missing member counts as a malformed upstream response, not a local error.
func ExtractStem(archive []byte, member string) ([]byte, error) {
	reader, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("malformed stems archive: %w", err)
	}
	for _, file := range reader.File {
		if path.Base(file.Name) != member {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open archive member %s: %w", member, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("failed to read archive member %s: %w", member, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("malformed stems archive: missing member %s", member)
}
