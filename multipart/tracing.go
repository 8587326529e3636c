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

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// WithTracer opts a Stream into starting one "multipartd.part" span
// per part, the same per-component, opt-in instrumentation style the
// teacher's protocol decoders use. Unset, no spans are created and
// the otel dependency costs nothing at runtime.
func WithTracer(t trace.Tracer) Option {
	return func(s *Stream) { s.tracer = t }
}

func (s *Stream) startPartSpan(ctx context.Context, fieldName, contentType string) (context.Context, trace.Span) {
	if s.tracer == nil {
		return ctx, nil
	}
	return s.tracer.Start(ctx, "multipartd.part", trace.WithAttributes(
		attribute.String("field.name", fieldName),
		attribute.String("content.type", contentType),
	))
}

func endPartSpan(span trace.Span, bytesRead int, err error) {
	if span == nil {
		return
	}
	span.SetAttributes(attribute.Int("bytes.read", bytesRead))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
