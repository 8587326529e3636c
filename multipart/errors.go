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
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Kind classifies a multipart decode failure so callers can branch on
// it without string matching.
type Kind int

const (
	// KindNoContentType means the outer request had no Content-Type
	// header at all.
	KindNoContentType Kind = iota
	// KindParseContentType means the outer Content-Type header value
	// could not be parsed as a media type.
	KindParseContentType
	// KindIncompatibleContentType means the outer media type parsed
	// fine but isn't multipart/*.
	KindIncompatibleContentType
	// KindBoundary means the outer Content-Type lacked a boundary
	// parameter, or a boundary line in the body didn't match it.
	KindBoundary
	// KindNested means a part's own Content-Type is multipart/*.
	KindNested
	// KindIncomplete means the upstream stream ended mid-part or
	// mid-header.
	KindIncomplete
	// KindDecode means a part's headers were malformed.
	KindDecode
	// KindContentDispositionMissing means a form-data part lacked a
	// Content-Disposition header.
	KindContentDispositionMissing
	// KindContentDispositionNameMissing means a form-data part's
	// Content-Disposition lacked a name parameter.
	KindContentDispositionNameMissing
	// KindNotConsumed means the caller violated the single-active-part
	// discipline: it advanced the outer stream, or used a stale
	// PartReader, out of order.
	KindNotConsumed
	// KindPayload wraps an error returned by the upstream byte-stream
	// verbatim.
	KindPayload
)

func (k Kind) String() string {
	switch k {
	case KindNoContentType:
		return "no_content_type"
	case KindParseContentType:
		return "parse_content_type"
	case KindIncompatibleContentType:
		return "incompatible_content_type"
	case KindBoundary:
		return "boundary"
	case KindNested:
		return "nested"
	case KindIncomplete:
		return "incomplete"
	case KindDecode:
		return "decode"
	case KindContentDispositionMissing:
		return "content_disposition_missing"
	case KindContentDispositionNameMissing:
		return "content_disposition_name_missing"
	case KindNotConsumed:
		return "not_consumed"
	case KindPayload:
		return "payload"
	default:
		return "unknown"
	}
}

// Error is the error type every failure out of this package's public
// API takes. Kind lets callers branch; Unwrap exposes the underlying
// cause, including a *multierror.Error for KindDecode when one or
// more header lines failed to parse.
type Error struct {
	kind  Kind
	cause error
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, cause: errors.Errorf("multipart: "+format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{kind: kind, cause: errors.Wrapf(err, "multipart: "+format, args...)}
}

// Kind reports what went wrong.
func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Error() string { return e.cause.Error() }

// Unwrap exposes the wrapped cause so errors.Is/errors.As and
// errors.Cause keep working for callers already using pkg/errors.
func (e *Error) Unwrap() error { return e.cause }

// ErrPayload wraps an upstream byte-stream error verbatim, per the
// "Payload(e)" error kind.
func ErrPayload(err error) *Error {
	return &Error{kind: KindPayload, cause: err}
}

// headerErrors accumulates per-line header parse failures within a
// single part's header block before they are resolved to one
// KindDecode error at the public API boundary.
type headerErrors struct {
	merr *multierror.Error
}

func (h *headerErrors) add(err error) {
	h.merr = multierror.Append(h.merr, err)
}

func (h *headerErrors) err() error {
	if h.merr == nil {
		return nil
	}
	return h.merr.ErrorOrNil()
}
