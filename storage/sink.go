// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage archives metadata about decoded multipart uploads.
// It plays the same role the teacher's exporter/sinker layer plays for
// captured roundtrips: pluggable Sink implementations, selected and
// configured from confengine, that persist the output of a decode
// pass somewhere durable.
package storage

import "context"

// PartRecord is what gets archived for a single decoded part.
type PartRecord struct {
	RequestID   string
	FieldName   string
	ContentType string
	Filename    string
	Bytes       int
	Fingerprint uint64
}

// UploadSummary is what gets archived for a whole upload once every
// part has been drained.
type UploadSummary struct {
	RequestID string
	Parts     []PartRecord
}

// Sink persists an UploadSummary somewhere durable. Implementations
// must be safe for concurrent use; one upload is never archived by
// more than one goroutine at a time, but multiple uploads archive
// concurrently.
type Sink interface {
	Store(ctx context.Context, summary UploadSummary) error
	Close(ctx context.Context) error
}

// MultiSink fans an UploadSummary out to every configured Sink,
// continuing past a failing sink so one broken archiver doesn't block
// the others. The first error encountered, if any, is returned.
type MultiSink []Sink

func (m MultiSink) Store(ctx context.Context, summary UploadSummary) error {
	var first error
	for _, sink := range m {
		if err := sink.Store(ctx, summary); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m MultiSink) Close(ctx context.Context) error {
	var first error
	for _, sink := range m {
		if err := sink.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
