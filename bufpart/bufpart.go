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

// Package bufpart implements the growable read-ahead buffer that sits
// between a multipart body's upstream io.Reader and the boundary/
// header scanners in package multipart. It accumulates bytes from the
// upstream reader on demand and lets callers consume them either by
// fixed size or by scanning for a delimiter, pushing back whatever
// they didn't use.
package bufpart

import (
	"bytes"
	"context"
	"io"

	"github.com/packetd/multipartd/common"
)

// ByteBuffer accumulates bytes read from an upstream io.Reader and
// serves them out to callers a chunk, line or delimiter-terminated
// run at a time. It is not safe for concurrent use; the guard package
// is what enforces that only one consumer touches it at a time.
type ByteBuffer struct {
	r     io.Reader
	block int
	buf   []byte
	eof   bool
}

// New wraps r with the default read chunk size.
func New(r io.Reader) *ByteBuffer {
	return NewSize(r, common.ReadWriteBlockSize)
}

// NewSize wraps r, asking it for blockSize bytes on each fill.
func NewSize(r io.Reader, blockSize int) *ByteBuffer {
	if blockSize <= 0 {
		blockSize = common.ReadWriteBlockSize
	}
	return &ByteBuffer{r: r, block: blockSize}
}

// EOF reports whether the upstream reader has been fully drained.
// Buffered-but-unconsumed bytes may still remain even when EOF is
// true.
func (b *ByteBuffer) EOF() bool {
	return b.eof
}

// Len returns the number of bytes currently buffered and unconsumed.
func (b *ByteBuffer) Len() int {
	return len(b.buf)
}

// fill reads one more chunk from the upstream reader into buf. It is
// a no-op once eof has been observed.
func (b *ByteBuffer) fill() error {
	if b.eof {
		return nil
	}
	chunk := make([]byte, b.block)
	n, err := b.r.Read(chunk)
	if n > 0 {
		b.buf = append(b.buf, chunk[:n]...)
	}
	if err != nil {
		if err == io.EOF {
			b.eof = true
			return nil
		}
		return err
	}
	return nil
}

// fillUntil grows buf, reading from upstream, until pred reports
// satisfied or EOF is reached or the context is cancelled.
func (b *ByteBuffer) fillUntil(ctx context.Context, pred func() bool) error {
	for !pred() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if b.eof {
			return nil
		}
		if err := b.fill(); err != nil {
			return err
		}
	}
	return nil
}

// ReadMax returns up to size bytes, reading from upstream as needed.
// It returns fewer than size bytes only once the upstream reader is
// exhausted. A zero-length (possibly nil) slice with a nil error
// signals clean EOF with nothing left to give.
func (b *ByteBuffer) ReadMax(ctx context.Context, size int) ([]byte, error) {
	if err := b.fillUntil(ctx, func() bool { return len(b.buf) >= size }); err != nil {
		return nil, err
	}
	n := size
	if n > len(b.buf) {
		n = len(b.buf)
	}
	out := b.buf[:n:n]
	b.buf = b.buf[n:]
	return out, nil
}

// ReadExact returns exactly size bytes, or ok=false if the upstream
// reader hit EOF before producing that many.
func (b *ByteBuffer) ReadExact(ctx context.Context, size int) (data []byte, ok bool, err error) {
	if err := b.fillUntil(ctx, func() bool { return len(b.buf) >= size }); err != nil {
		return nil, false, err
	}
	if len(b.buf) < size {
		return nil, false, nil
	}
	out := b.buf[:size:size]
	b.buf = b.buf[size:]
	return out, true, nil
}

// ReadUntil scans for delim and, if found, returns everything up to
// and including it, consuming that much from the buffer. found is
// false if the upstream reader reached EOF without ever producing
// delim, in which case nothing is consumed.
func (b *ByteBuffer) ReadUntil(ctx context.Context, delim []byte) (data []byte, found bool, err error) {
	idx := -1
	fillErr := b.fillUntil(ctx, func() bool {
		idx = bytes.Index(b.buf, delim)
		return idx >= 0 || b.eof
	})
	if fillErr != nil {
		return nil, false, fillErr
	}
	if idx < 0 {
		return nil, false, nil
	}
	end := idx + len(delim)
	out := b.buf[:end:end]
	b.buf = b.buf[end:]
	return out, true, nil
}

// ReadLine reads up to and including the next "\n", or reports
// found=false if the upstream reader reached EOF with no newline.
func (b *ByteBuffer) ReadLine(ctx context.Context) (line []byte, found bool, err error) {
	return b.ReadUntil(ctx, []byte("\n"))
}

// ReadLineOrEOF behaves like ReadLine, but on a clean EOF with a
// trailing partial line it returns that remainder instead of
// signalling not-found; on EOF with nothing buffered it returns a
// nil slice and io.EOF.
func (b *ByteBuffer) ReadLineOrEOF(ctx context.Context) ([]byte, error) {
	line, found, err := b.ReadLine(ctx)
	if err != nil {
		return nil, err
	}
	if found {
		return line, nil
	}
	if len(b.buf) == 0 {
		return nil, io.EOF
	}
	rest := b.buf
	b.buf = nil
	return rest, nil
}

// Unprocessed pushes data back to the front of the buffer, as if it
// had never been consumed. Used when a scan reads past a boundary it
// wasn't looking for and needs to hand the remainder back.
func (b *ByteBuffer) Unprocessed(data []byte) {
	if len(data) == 0 {
		return
	}
	b.buf = append(data, b.buf...)
}

// Buffered returns the currently accumulated, unconsumed bytes
// without reading more from upstream or consuming them. The slice is
// only valid until the next call that mutates the buffer.
func (b *ByteBuffer) Buffered() []byte {
	return b.buf
}

// Discard drops the first n buffered bytes without returning them.
// It panics if n exceeds the buffered length.
func (b *ByteBuffer) Discard(n int) {
	if n > len(b.buf) {
		panic("bufpart: Discard past end of buffer")
	}
	b.buf = b.buf[n:]
}

// FillOnce asks the upstream reader for one more chunk, growing the
// buffer. It is a no-op once EOF has been observed. Used by callers
// doing their own sliding-window scan (boundary search) who need
// "give me more bytes" without a target length in mind.
func (b *ByteBuffer) FillOnce(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.fill()
}
