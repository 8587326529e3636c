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

package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/packetd/multipartd/common"
	"github.com/packetd/multipartd/controller"
	"github.com/packetd/multipartd/internal/fieldbuf"
	"github.com/packetd/multipartd/internal/rescue"
	"github.com/packetd/multipartd/internal/tracekit"
	"github.com/packetd/multipartd/logger"
	"github.com/packetd/multipartd/multipart"
	"github.com/packetd/multipartd/storage"
)

// UploadHandler decodes a multipart/form-data request body part by
// part, archiving the result through sink and broadcasting progress
// through events. Both may be nil, in which case that side effect is
// skipped.
type UploadHandler struct {
	sink         storage.Sink
	events       *EventBus
	maxBodyBytes int64
	decoderOpts  []multipart.Option

	// inflight bounds concurrent decodes to common.Concurrency(), the
	// same CPU-scaled figure the teacher sizes its worker pools by,
	// so a burst of large uploads can't run unbounded goroutines each
	// holding their own bufpart buffer.
	inflight chan struct{}
}

func NewUploadHandler(sink storage.Sink, events *EventBus, maxBodyBytes int64, opts ...multipart.Option) *UploadHandler {
	return &UploadHandler{
		sink:         sink,
		events:       events,
		maxBodyBytes: maxBodyBytes,
		decoderOpts:  opts,
		inflight:     make(chan struct{}, common.Concurrency()),
	}
}

func (h *UploadHandler) publish(ev UploadEvent) {
	if h.events != nil {
		h.events.Publish(ev)
	}
}

func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer rescue.HandleCrash()

	select {
	case h.inflight <- struct{}{}:
		defer func() { <-h.inflight }()
	case <-r.Context().Done():
		return
	}

	requestID := uuid.New().String()
	if traceID, ok := tracekit.TraceIDFromHTTPHeader(r.Header); ok {
		logger.Infof("upload %s: incoming trace %s", requestID, traceID.String())
	}

	controller.UploadStarted()
	defer controller.UploadFinished()
	h.publish(UploadEvent{RequestID: requestID, Stage: "started"})

	body := io.ReadCloser(r.Body)
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}

	opts := append([]multipart.Option{multipart.WithWarner(warnerFunc(logger.Warnf))}, h.decoderOpts...)
	if raw := r.Header.Get("X-Multipart-Limits"); raw != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			http.Error(w, "invalid X-Multipart-Limits header", http.StatusBadRequest)
			return
		}
		limits, err := multipart.DecoderLimitsFromMap(m)
		if err != nil {
			http.Error(w, "invalid X-Multipart-Limits header", http.StatusBadRequest)
			return
		}
		opts = append(opts, limits.Options()...)
	}

	stream := multipart.New(r.Header, body, opts...)
	summary := storage.UploadSummary{RequestID: requestID}
	ctx := r.Context()

	for {
		part, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			h.fail(w, requestID, err)
			return
		}

		buf := fieldbuf.Get()
		for {
			chunk, rerr := part.Read(ctx)
			if rerr == io.EOF {
				break
			}
			if rerr != nil {
				buf.Release()
				h.fail(w, requestID, rerr)
				return
			}
			buf.Write(chunk)
		}

		filename := ""
		if d := part.Disposition(); d != nil {
			filename = d.Filename()
		}
		rec := storage.PartRecord{
			RequestID:   requestID,
			FieldName:   part.FieldName(),
			ContentType: part.ContentType(),
			Filename:    filename,
			Bytes:       buf.Len(),
			Fingerprint: buf.Fingerprint(),
		}
		buf.Release()

		controller.PartDecoded(rec.Bytes)
		summary.Parts = append(summary.Parts, rec)
		h.publish(UploadEvent{RequestID: requestID, Stage: "part", FieldName: rec.FieldName, Bytes: rec.Bytes})
	}

	if h.sink != nil {
		if err := h.sink.Store(ctx, summary); err != nil {
			logger.Errorf("upload %s: archiving failed: %v", requestID, err)
		}
	}
	h.publish(UploadEvent{RequestID: requestID, Stage: "done"})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(summary)
}

func (h *UploadHandler) fail(w http.ResponseWriter, requestID string, err error) {
	kind := "unknown"
	if merr, ok := err.(*multipart.Error); ok {
		kind = merr.Kind().String()
	}
	controller.DecodeError(kind)
	logger.Warnf("upload %s: decode failed (%s): %v", requestID, kind, err)
	h.publish(UploadEvent{RequestID: requestID, Stage: "error", Error: err.Error()})
	http.Error(w, err.Error(), http.StatusBadRequest)
}

type warnerFunc func(format string, args ...any)

func (w warnerFunc) Warnf(format string, args ...any) { w(format, args...) }
