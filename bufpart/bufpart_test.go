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

package bufpart

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedReader hands back src in fixed-size pieces, regardless of
// the size the caller asked for, so tests exercise the buffer's
// incremental fill path rather than getting everything in one Read.
type chunkedReader struct {
	src       []byte
	chunkSize int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.src) == 0 {
		return 0, io.EOF
	}
	n := c.chunkSize
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.src) {
		n = len(c.src)
	}
	copy(p, c.src[:n])
	c.src = c.src[n:]
	return n, nil
}

func TestReadExact(t *testing.T) {
	b := New(strings.NewReader("hello world"))
	data, ok, err := b.ReadExact(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(data))
}

func TestReadExactShortOnEOF(t *testing.T) {
	b := New(strings.NewReader("hi"))
	_, ok, err := b.ReadExact(context.Background(), 10)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadUntilAcrossChunks(t *testing.T) {
	r := &chunkedReader{src: []byte("part-one\r\n--boundary\r\nmore"), chunkSize: 3}
	b := NewSize(r, 3)

	data, found, err := b.ReadUntil(context.Background(), []byte("\r\n--boundary\r\n"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "part-one\r\n--boundary\r\n", string(data))
}

func TestReadUntilNotFoundAtEOF(t *testing.T) {
	b := New(strings.NewReader("no delimiter here"))
	_, found, err := b.ReadUntil(context.Background(), []byte("XYZ"))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestReadLineOrEOFReturnsTrailingPartial(t *testing.T) {
	b := New(strings.NewReader("first\nsecond"))

	line, err := b.ReadLineOrEOF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(line))

	line, err = b.ReadLineOrEOF(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "second", string(line))

	_, err = b.ReadLineOrEOF(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnprocessedPushesBack(t *testing.T) {
	b := New(strings.NewReader("rest of stream"))
	b.Unprocessed([]byte("pre:"))

	data, ok, err := b.ReadExact(context.Background(), 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pre:", string(data))
}

func TestEOFReflectsDrainedBuffer(t *testing.T) {
	b := New(strings.NewReader("x"))
	assert.False(t, b.EOF())

	_, _, err := b.ReadExact(context.Background(), 1)
	require.NoError(t, err)

	_, ok, err := b.ReadExact(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, b.EOF())
}
