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
	"fmt"
	"io"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"github.com/packetd/multipartd/bufpart"
	"github.com/packetd/multipartd/guard"
)

// Warner is the minimal logging seam PartReader needs for the one
// non-fatal warning spec'd for a malformed trailing CRLF. A
// logger.Logger already satisfies this; nil skips logging entirely,
// which keeps the package side-effect free when a caller doesn't wire
// one in.
type Warner interface {
	Warnf(format string, args ...any)
}

// PartReader is a lazy, finite, non-restartable sequence of byte
// chunks forming one part's body. It is produced by Stream.Next and
// must be drained (or abandoned, letting Stream.Next drain it) before
// the next part becomes available.
type PartReader struct {
	buf   *bufpart.ByteBuffer
	token *guard.Token
	warn  Warner

	// needle4 is the ordinary "\r\n--boundary" terminator; needle3 is
	// the bare "\r--boundary" form (no "\n") that a non-conformant but
	// still valid-per-spec upstream may send instead. margin is the
	// longer of the two needle lengths, minus one: the tail slice of
	// that many bytes is never handed back as body, since it could
	// still grow into either terminator once more data arrives.
	needle4 []byte
	needle3 []byte
	margin  int

	remaining   int
	knownLength bool
	eof         bool

	headers     http.Header
	contentType string
	disposition *Disposition
	fieldName   string

	span      trace.Span
	bytesRead int
}

func newPartReader(
	buf *bufpart.ByteBuffer,
	token *guard.Token,
	boundary string,
	contentLength int,
	knownLength bool,
	headers http.Header,
	contentType string,
	disposition *Disposition,
	fieldName string,
	warn Warner,
	span trace.Span,
) *PartReader {
	needle4 := []byte("\r\n--" + boundary)
	needle3 := []byte("\r--" + boundary)
	return &PartReader{
		buf:         buf,
		token:       token,
		needle4:     needle4,
		needle3:     needle3,
		margin:      len(needle4) - 1,
		warn:        warn,
		remaining:   contentLength,
		knownLength: knownLength,
		headers:     headers,
		contentType: contentType,
		disposition: disposition,
		fieldName:   fieldName,
		span:        span,
	}
}

// Headers returns the part's raw header map, not just the two fields
// the core acts on.
func (p *PartReader) Headers() http.Header { return p.headers }

// ContentType returns the part's raw Content-Type header value, or
// "" if absent.
func (p *PartReader) ContentType() string { return p.contentType }

// Disposition returns the part's parsed Content-Disposition, or nil
// if it had none (only possible outside form-data mode).
func (p *PartReader) Disposition() *Disposition { return p.disposition }

// FieldName returns the form field name extracted from
// Content-Disposition in form-data mode, or "" otherwise.
func (p *PartReader) FieldName() string { return p.fieldName }

// String renders a short debug summary of the part, for diagnostics.
func (p *PartReader) String() string {
	return fmt.Sprintf("PartReader{field=%q content_type=%q eof=%t}", p.fieldName, p.contentType, p.eof)
}

// done finalizes the part once its body bytes are fully accounted
// for: it consumes the single connecting line that should be exactly
// "\r\n", warns (non-fatally) if it isn't, latches EOF, and releases
// the guard token so the outer stream may advance.
func (p *PartReader) done(ctx context.Context) error {
	line, err := p.buf.ReadLineOrEOF(ctx)
	if err != nil && err != io.EOF {
		p.eof = true
		p.token.Release()
		return ErrPayload(err)
	}
	if string(line) != "\r\n" {
		if p.warn != nil {
			p.warn.Warnf("multipart: part body for field %q did not end with CRLF", p.fieldName)
		}
	}
	p.eof = true
	p.token.Release()
	return nil
}

// Read returns the next chunk of the part's body, or io.EOF once the
// part is exhausted. It never returns a chunk containing the
// boundary delimiter.
func (p *PartReader) Read(ctx context.Context) ([]byte, error) {
	if p.eof {
		return nil, io.EOF
	}
	if !p.token.Current() {
		if !p.token.Clean() {
			return nil, newError(KindNotConsumed, "part reader was superseded while a stray caller kept reading it")
		}
		return nil, newError(KindNotConsumed, "part reader is no longer the active part")
	}

	var chunk []byte
	var err error
	if p.knownLength {
		chunk, err = p.readKnownLength(ctx)
	} else {
		chunk, err = p.readStreaming(ctx)
	}
	p.bytesRead += len(chunk)
	if p.eof {
		var spanErr error
		if err != io.EOF {
			spanErr = err
		}
		endPartSpan(p.span, p.bytesRead, spanErr)
	}
	return chunk, err
}

// finish consumes the trailing connector line and translates the
// result into the (nil, io.EOF) or (nil, err) shape Read callers
// expect. Used by known-length mode, where the connector's exact
// length isn't known ahead of time.
func (p *PartReader) finish(ctx context.Context) ([]byte, error) {
	if err := p.done(ctx); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// finishStreaming completes the part once readStreaming has located
// the boundary marker at the head of the buffer. Unlike finish, the
// connector's length is already known exactly (2 bytes for "\r\n", 1
// for a bare "\r"): discarding exactly that many bytes, rather than
// scanning for the next "\n", leaves "--boundary..." itself untouched
// in the buffer for the outer Stream to read as its own line,
// including in the bare-"\r" case where the next "\n" in the buffer
// belongs to the boundary line, not the connector.
func (p *PartReader) finishStreaming(prefixLen int) ([]byte, error) {
	p.buf.Discard(prefixLen)
	if prefixLen != 2 {
		if p.warn != nil {
			p.warn.Warnf("multipart: part body for field %q did not end with CRLF", p.fieldName)
		}
	}
	p.eof = true
	p.token.Release()
	return nil, io.EOF
}

func (p *PartReader) readKnownLength(ctx context.Context) ([]byte, error) {
	if p.remaining == 0 {
		return p.finish(ctx)
	}

	n := p.remaining
	if n > blockSize {
		n = blockSize
	}
	data, ok, err := p.buf.ReadExact(ctx, n)
	if err != nil {
		p.eof = true
		p.token.Release()
		return nil, ErrPayload(err)
	}
	if !ok {
		p.eof = true
		p.token.Release()
		return nil, newError(KindIncomplete, "upstream ended with %d bytes still declared for this part", p.remaining)
	}
	p.remaining -= len(data)
	return data, nil
}

// findBoundary returns the index of the earliest boundary terminator
// in buffered and the length of its connector prefix (2 for
// "\r\n--boundary", 1 for the bare "\r--boundary" form), checking
// both forms and preferring whichever occurs first. idx is -1 if
// neither appears yet.
func (p *PartReader) findBoundary(buffered []byte) (idx int, prefixLen int) {
	idx, prefixLen = -1, 0
	if i := bytes.Index(buffered, p.needle4); i >= 0 {
		idx, prefixLen = i, 2
	}
	if i := bytes.Index(buffered, p.needle3); i >= 0 && (idx < 0 || i < idx) {
		idx, prefixLen = i, 1
	}
	return idx, prefixLen
}

func (p *PartReader) readStreaming(ctx context.Context) ([]byte, error) {
	for {
		buffered := p.buf.Buffered()
		if idx, prefixLen := p.findBoundary(buffered); idx >= 0 {
			if idx == 0 {
				return p.finishStreaming(prefixLen)
			}
			chunk := append([]byte(nil), buffered[:idx]...)
			p.buf.Discard(idx)
			return chunk, nil
		}

		safe := len(buffered) - p.margin
		if safe > 0 {
			chunk := append([]byte(nil), buffered[:safe]...)
			p.buf.Discard(safe)
			return chunk, nil
		}

		if p.buf.EOF() {
			p.eof = true
			p.token.Release()
			return nil, newError(KindIncomplete, "upstream ended before the boundary for field %q appeared", p.fieldName)
		}
		if err := p.buf.FillOnce(ctx); err != nil {
			p.eof = true
			p.token.Release()
			return nil, ErrPayload(err)
		}
	}
}
