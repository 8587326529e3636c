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
	"fmt"
	"net/http"
	"time"

	"github.com/packetd/multipartd/internal/pubsub"
	"github.com/packetd/multipartd/logger"
)

// UploadEvent is broadcast to every subscriber of the /events stream
// as an upload is decoded, so an operator watching the endpoint sees
// part-by-part progress without polling.
type UploadEvent struct {
	RequestID string `json:"requestId"`
	Stage     string `json:"stage"` // "started", "part", "done", "error"
	FieldName string `json:"fieldName,omitempty"`
	Bytes     int    `json:"bytes,omitempty"`
	Error     string `json:"error,omitempty"`
}

// EventBus fans out UploadEvents to connected /events subscribers.
type EventBus struct {
	ps *pubsub.PubSub
}

func NewEventBus() *EventBus {
	return &EventBus{ps: pubsub.New()}
}

func (b *EventBus) Publish(ev UploadEvent) {
	b.ps.Publish(ev)
}

// RegisterEventsRoute wires a Server-Sent-Events endpoint backed by b
// onto s, so a web client can watch upload progress live.
func (s *Server) RegisterEventsRoute(path string, b *EventBus) {
	s.RegisterGetRoute(path, func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		q := b.ps.Subscribe(32)
		defer b.ps.Unsubscribe(q)

		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}

			msg, ok := q.PopTimeout(15 * time.Second)
			if !ok {
				fmt.Fprint(w, ": keep-alive\n\n")
				flusher.Flush()
				continue
			}
			ev, ok := msg.(UploadEvent)
			if !ok {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Stage, ev.RequestID); err != nil {
				logger.Warnf("events: write to subscriber failed: %v", err)
				return
			}
			flusher.Flush()
		}
	})
}
