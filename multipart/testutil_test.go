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

package multipart

import (
	"context"
	"io"
)

// headerMap is a minimal HeaderSource backed by a plain map, standing
// in for http.Header in tests that don't need canonicalization.
type headerMap map[string]string

func (h headerMap) Get(key string) string { return h[key] }

// fakeStream is an UpstreamReader that can be told to hand back its
// data in fixed-size pieces (down to one byte at a time), exercising
// the "interleaves pending" chunk-splitting invariance property
// without the core needing to know anything changed.
type fakeStream struct {
	data      []byte
	pos       int
	chunkSize int
}

func (f *fakeStream) Read(p []byte) (int, error) {
	if f.pos >= len(f.data) {
		return 0, io.EOF
	}
	n := f.chunkSize
	if n <= 0 {
		n = len(p)
	}
	if n > len(p) {
		n = len(p)
	}
	if f.pos+n > len(f.data) {
		n = len(f.data) - f.pos
	}
	copy(p, f.data[f.pos:f.pos+n])
	f.pos += n
	return n, nil
}

// drainAllParts runs a Stream to completion, collecting each part's
// full body and field name. It fails the test via t.Fatal on any
// unexpected error.
type partResult struct {
	field string
	body  []byte
}

func drainAllParts(ctx context.Context, s *Stream) ([]partResult, error) {
	var out []partResult
	for {
		part, err := s.Next(ctx)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		var body []byte
		for {
			chunk, rerr := part.Read(ctx)
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				return out, rerr
			}
			body = append(body, chunk...)
		}
		out = append(out, partResult{field: part.FieldName(), body: body})
	}
}
