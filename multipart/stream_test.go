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
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBoundary = "abbc761f78ff4d7cb7573b5a23f96ef0"

func sampleBody() string {
	return "testasdadsad\r\n" +
		"--" + testBoundary + "\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"fn.txt\"\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Length: 4\r\n\r\n" +
		"test\r\n" +
		"--" + testBoundary + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Length: 4\r\n\r\n" +
		"data\r\n" +
		"--" + testBoundary + "--\r\n"
}

func headerFor(boundary string) headerMap {
	return headerMap{"Content-Type": `multipart/mixed; boundary="` + boundary + `"`}
}

// S1
func TestStream_TwoPartsThenEOF(t *testing.T) {
	s := New(headerFor(testBoundary), strings.NewReader(sampleBody()))

	parts, err := drainAllParts(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "test", string(parts[0].body))
	assert.Equal(t, "data", string(parts[1].body))
}

// S2
func TestStream_TruncatedFinalCRLF(t *testing.T) {
	body := strings.TrimSuffix(sampleBody(), "\r\n")
	s := New(headerFor(testBoundary), strings.NewReader(body))

	parts, err := drainAllParts(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "test", string(parts[0].body))
	assert.Equal(t, "data", string(parts[1].body))
}

// S3
func TestStream_OneByteAtATime(t *testing.T) {
	fs := &fakeStream{data: []byte(sampleBody()), chunkSize: 1}
	s := New(headerFor(testBoundary), fs)

	parts, err := drainAllParts(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "test", string(parts[0].body))
	assert.Equal(t, "data", string(parts[1].body))
}

// S4
func TestStream_MissingContentType(t *testing.T) {
	s := New(headerMap{}, strings.NewReader(sampleBody()))

	_, err := s.Next(context.Background())
	require.Error(t, err)
	merr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindNoContentType, merr.Kind())

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

// S5
func TestStream_DeclaredLengthLongerThanBody(t *testing.T) {
	body := "--" + testBoundary + "\r\n" +
		`Content-Disposition: form-data; name="f"` + "\r\n" +
		"Content-Length: 4\r\n\r\n" +
		"abc"
	s := New(headerFor(testBoundary), strings.NewReader(body))

	part, err := s.Next(context.Background())
	require.NoError(t, err)

	_, err = part.Read(context.Background())
	require.Error(t, err)
	merr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindIncomplete, merr.Kind())
}

// S6
func TestStream_NestedMultipartRejected(t *testing.T) {
	body := "--" + testBoundary + "\r\n" +
		"Content-Type: multipart/alternative; boundary=inner\r\n\r\n" +
		"whatever\r\n" +
		"--" + testBoundary + "--\r\n"
	s := New(headerFor(testBoundary), strings.NewReader(body))

	_, err := s.Next(context.Background())
	require.Error(t, err)
	merr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, KindNested, merr.Kind())
}

func TestStream_EmptyBody(t *testing.T) {
	body := "--" + testBoundary + "--\r\n"
	s := New(headerFor(testBoundary), strings.NewReader(body))

	_, err := s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_ContentTypeSingleShot(t *testing.T) {
	s := New(headerMap{}, strings.NewReader(""))

	_, err := s.ContentType()
	require.Error(t, err)

	_, err = s.ContentType()
	assert.ErrorIs(t, err, io.EOF)
}

// Invariant 1: dropping (abandoning) a PartReader mid-stream and
// polling the outer stream again still yields the next part cleanly.
func TestStream_AbandonedPartDrainsCleanly(t *testing.T) {
	s := New(headerFor(testBoundary), strings.NewReader(sampleBody()))

	first, err := s.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, "file", first.Disposition().Name())
	// abandon `first` without reading it at all.

	second, err := s.Next(context.Background())
	require.NoError(t, err)
	chunk, err := second.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "data", string(chunk))

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

// Invariant 2: no-overshoot in known-length mode.
func TestStream_KnownLengthNeverOvershoots(t *testing.T) {
	s := New(headerFor(testBoundary), strings.NewReader(sampleBody()))
	parts, err := drainAllParts(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 4, len(parts[0].body))
	assert.Equal(t, 4, len(parts[1].body))
}

// Invariant 3: streaming-mode chunks never contain the boundary
// delimiter.
func TestStream_StreamingModeExcludesBoundary(t *testing.T) {
	body := "--" + testBoundary + "\r\n" +
		`Content-Disposition: form-data; name="f"` + "\r\n\r\n" +
		"hello world, no content length here\r\n" +
		"--" + testBoundary + "--\r\n"
	s := New(headerFor(testBoundary), strings.NewReader(body))

	parts, err := drainAllParts(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "hello world, no content length here", string(parts[0].body))
	assert.False(t, bytes.Contains(parts[0].body, []byte("\r\n--"+testBoundary)))
}

// Invariant 5: at most one PartReader from a given Stream can
// successfully yield bytes at a time. Stream.Next enforces this by
// fully draining the previous part before minting the next one, so a
// reader a caller already exhausted (by reading it directly, or by
// abandoning it and calling Next) always reports io.EOF rather than
// silently resuming.
func TestStream_PreviousPartIsExhaustedOnceNextAdvances(t *testing.T) {
	s := New(headerFor(testBoundary), strings.NewReader(sampleBody()))

	first, err := s.Next(context.Background())
	require.NoError(t, err)

	_, err = s.Next(context.Background())
	require.NoError(t, err)

	_, err = first.Read(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}
