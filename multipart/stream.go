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
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/trace"

	"github.com/packetd/multipartd/bufpart"
	"github.com/packetd/multipartd/common"
	"github.com/packetd/multipartd/guard"
)

// blockSize bounds how many body bytes a single PartReader.Read call
// hands back, so a part with a far-away boundary doesn't get buffered
// in one shot.
const blockSize = common.ReadWriteBlockSize

// HeaderSource is the case-insensitive header lookup the core needs
// from the outer request. http.Header already satisfies this.
type HeaderSource interface {
	Get(key string) string
}

// DispositionParser parses a raw Content-Disposition header value.
type DispositionParser func(raw string) (*Disposition, error)

// UpstreamReader is the byte-stream the core consumes: repeated Read
// returns the next ready chunk, io.EOF on exhaustion, or any other
// error, which Stream and PartReader wrap as KindPayload.
type UpstreamReader = io.Reader

// Mime is the parsed form of the outer Content-Type header.
type Mime struct {
	Type   string
	Params map[string]string
}

type state int

const (
	stateFirstBoundary state = iota
	stateHeaders
	stateBoundary
	stateEof
)

// Stream is the outer lazy sequence over a multipart body: parses the
// Content-Type, locates boundaries, and hands out one PartReader at a
// time. Only one PartReader is active at a time: if the previously
// returned PartReader has not reached io.EOF, Next drains it before
// advancing.
type Stream struct {
	buf   *bufpart.ByteBuffer
	root  *guard.Token
	state state

	mime     Mime
	boundary string
	formData bool

	dispositionParser DispositionParser
	maxHeaderLines    int
	maxHeaderBytes    int
	warn              Warner
	tracer            trace.Tracer

	current *PartReader

	latchedErr      error
	latchedConsumed bool
	mimeErrConsumed bool
}

// Option configures a Stream at construction time.
type Option func(*Stream)

// WithDispositionParser overrides the default mime.ParseMediaType-
// based Content-Disposition parser.
func WithDispositionParser(p DispositionParser) Option {
	return func(s *Stream) { s.dispositionParser = p }
}

// WithMaxHeaderLines overrides the default 32-line cap on a single
// part's header block.
func WithMaxHeaderLines(n int) Option {
	return func(s *Stream) { s.maxHeaderLines = n }
}

// WithWarner wires in a logger for the one non-fatal warning the core
// emits: a part body not terminated by CRLF.
func WithWarner(w Warner) Option {
	return func(s *Stream) { s.warn = w }
}

// WithMaxHeaderBytes caps how many bytes of a single part's header
// block the stream will buffer while scanning for the terminating
// blank line, guarding against an upstream that never sends one.
func WithMaxHeaderBytes(n int) Option {
	return func(s *Stream) { s.maxHeaderBytes = n }
}

// New constructs a Stream over body, using header to locate the outer
// Content-Type. Construction never fails outright; a bad or missing
// Content-Type is latched and surfaced on the first call to Next or
// ContentType instead, per the single-shot error contract.
func New(header HeaderSource, body UpstreamReader, opts ...Option) *Stream {
	s := &Stream{
		buf:               bufpart.New(body),
		root:              guard.New(),
		state:             stateFirstBoundary,
		dispositionParser: ParseDisposition,
		maxHeaderLines:    32,
		maxHeaderBytes:    8192,
	}
	for _, opt := range opts {
		opt(s)
	}

	raw := header.Get("Content-Type")
	if raw == "" {
		s.fail(newError(KindNoContentType, "request has no Content-Type header"))
		return s
	}
	mt, params, err := mime.ParseMediaType(raw)
	if err != nil {
		s.fail(wrapError(KindParseContentType, err, "could not parse Content-Type %q", raw))
		return s
	}
	if !strings.HasPrefix(mt, "multipart/") {
		s.fail(newError(KindIncompatibleContentType, "Content-Type %q is not multipart/*", mt))
		return s
	}
	boundary, ok := params["boundary"]
	if !ok || boundary == "" {
		s.fail(newError(KindBoundary, "Content-Type %q has no boundary parameter", raw))
		return s
	}

	s.mime = Mime{Type: mt, Params: params}
	s.boundary = boundary
	s.formData = mt == "multipart/form-data"
	return s
}

func (s *Stream) fail(err error) {
	if s.latchedErr == nil {
		s.latchedErr = err
	}
}

// ContentType returns the parsed outer media type, or the stored
// initialization error exactly once; after the first call following
// a failed initialization, it reports io.EOF instead of repeating the
// error.
func (s *Stream) ContentType() (Mime, error) {
	if s.mime.Type == "" && s.latchedErr != nil {
		if !s.mimeErrConsumed {
			s.mimeErrConsumed = true
			return Mime{}, s.latchedErr
		}
		return Mime{}, io.EOF
	}
	return s.mime, nil
}

// Next drives the state machine forward and returns the next part, or
// io.EOF once the body is exhausted. It first proactively drains any
// part returned by a previous call that the caller never finished
// reading, so callers may abandon a PartReader instead of draining it
// by hand.
func (s *Stream) Next(ctx context.Context) (*PartReader, error) {
	if s.latchedErr != nil {
		if !s.latchedConsumed {
			s.latchedConsumed = true
			return nil, s.latchedErr
		}
		return nil, io.EOF
	}
	if s.state == stateEof {
		return nil, io.EOF
	}

	if s.current != nil {
		if err := s.drainCurrent(ctx); err != nil {
			s.fail(err)
			return nil, err
		}
		s.current = nil
	}

	if !s.root.Current() {
		err := newError(KindNotConsumed, "a stale part reader outlived the part it belonged to")
		s.fail(err)
		return nil, err
	}

	for {
		switch s.state {
		case stateFirstBoundary:
			done, err := s.scanFirstBoundary(ctx)
			if err != nil {
				s.fail(err)
				return nil, err
			}
			if done {
				return nil, io.EOF
			}
		case stateBoundary:
			done, err := s.scanBoundary(ctx)
			if err != nil {
				s.fail(err)
				return nil, err
			}
			if done {
				return nil, io.EOF
			}
		case stateHeaders:
			part, err := s.readPart(ctx)
			if err != nil {
				s.fail(err)
				return nil, err
			}
			s.state = stateBoundary
			s.current = part
			return part, nil
		case stateEof:
			return nil, io.EOF
		}
	}
}

func (s *Stream) drainCurrent(ctx context.Context) error {
	for {
		_, err := s.current.Read(ctx)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// dashBoundary is the "--boundary" text that boundary lines are
// matched against (with a trailing "--" for the closing boundary).
func (s *Stream) dashBoundary() string { return "--" + s.boundary }

func (s *Stream) scanFirstBoundary(ctx context.Context) (eof bool, err error) {
	for {
		line, rerr := s.buf.ReadLineOrEOF(ctx)
		if rerr == io.EOF {
			return false, newError(KindIncomplete, "upstream ended before the first boundary")
		}
		if rerr != nil {
			return false, ErrPayload(rerr)
		}
		trimmed := strings.TrimRight(string(line), "\r\n")
		switch trimmed {
		case s.dashBoundary() + "--":
			s.state = stateEof
			return true, nil
		case s.dashBoundary():
			s.state = stateHeaders
			return false, nil
		}
		// shorter or unrelated line: preamble, skip it.
	}
}

func (s *Stream) scanBoundary(ctx context.Context) (eof bool, err error) {
	line, rerr := s.buf.ReadLineOrEOF(ctx)
	if rerr == io.EOF {
		return false, newError(KindIncomplete, "upstream ended before the next boundary")
	}
	if rerr != nil {
		return false, ErrPayload(rerr)
	}
	trimmed := strings.TrimRight(string(line), "\r\n")
	switch trimmed {
	case s.dashBoundary() + "--":
		s.state = stateEof
		return true, nil
	case s.dashBoundary():
		s.state = stateHeaders
		return false, nil
	default:
		return false, newError(KindBoundary, "expected boundary line %q, got %q", s.dashBoundary(), trimmed)
	}
}

func (s *Stream) readHeaderBlock(ctx context.Context) ([]byte, error) {
	needle := []byte("\r\n\r\n")
	for {
		buffered := s.buf.Buffered()
		if idx := bytes.Index(buffered, needle); idx >= 0 {
			end := idx + len(needle)
			data := append([]byte(nil), buffered[:end]...)
			s.buf.Discard(end)
			return data, nil
		}
		if len(buffered) > s.maxHeaderBytes {
			return nil, newError(KindDecode, "part headers exceed the %d byte limit", s.maxHeaderBytes)
		}
		if s.buf.EOF() {
			return nil, newError(KindIncomplete, "part headers truncated before the terminating blank line")
		}
		if err := s.buf.FillOnce(ctx); err != nil {
			return nil, ErrPayload(err)
		}
	}
}

func (s *Stream) readPart(ctx context.Context) (*PartReader, error) {
	data, err := s.readHeaderBlock(ctx)
	if err != nil {
		return nil, err
	}

	headers, err := parseHeaderBlock(data, s.maxHeaderLines)
	if err != nil {
		return nil, err
	}

	partContentType := headers.Get("Content-Type")

	var disposition *Disposition
	if cdRaw := headers.Get("Content-Disposition"); cdRaw != "" {
		if d, derr := s.dispositionParser(cdRaw); derr == nil {
			disposition = d
		}
	}

	if s.formData {
		if disposition == nil || disposition.Type != DispositionFormData {
			return nil, newError(KindContentDispositionMissing, "form-data part is missing a form-data Content-Disposition")
		}
		if disposition.Name() == "" {
			return nil, newError(KindContentDispositionNameMissing, "form-data part's Content-Disposition has no name parameter")
		}
	}

	if partContentType != "" {
		if mt, _, perr := mime.ParseMediaType(partContentType); perr == nil && strings.HasPrefix(mt, "multipart/") {
			return nil, newError(KindNested, "part declares nested multipart Content-Type %q", mt)
		}
	}

	fieldName := ""
	if s.formData && disposition != nil {
		fieldName = disposition.Name()
	}

	length, knownLength := 0, false
	if cl := headers.Get("Content-Length"); cl != "" {
		if n, cerr := strconv.Atoi(strings.TrimSpace(cl)); cerr == nil && n >= 0 {
			length, knownLength = n, true
		}
	}

	_, span := s.startPartSpan(ctx, fieldName, partContentType)

	token := s.root.Clone()
	return newPartReader(s.buf, token, s.boundary, length, knownLength, headers, partContentType, disposition, fieldName, s.warn, span), nil
}

func parseHeaderBlock(data []byte, maxLines int) (http.Header, error) {
	headers := make(http.Header)
	problems := &headerErrors{}

	count := 0
	for _, raw := range bytes.Split(data, []byte("\r\n")) {
		if len(raw) == 0 {
			break
		}
		count++
		if count > maxLines {
			return nil, newError(KindDecode, "part headers exceed the %d line limit", maxLines)
		}
		idx := bytes.IndexByte(raw, ':')
		if idx < 0 {
			problems.add(errors.Errorf("malformed header line %q", raw))
			continue
		}
		key := strings.TrimSpace(string(raw[:idx]))
		val := strings.TrimSpace(string(raw[idx+1:]))
		headers.Add(key, val)
	}
	if err := problems.err(); err != nil {
		return nil, &Error{kind: KindDecode, cause: err}
	}
	return headers, nil
}
