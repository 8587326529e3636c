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

// Package controller registers the process-wide Prometheus metrics
// the upload server reports through.
package controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/packetd/multipartd/common"
	"github.com/packetd/multipartd/internal/fasttime"
)

var (
	uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "uptime",
			Help:      "Uptime in seconds",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "git_hash", "build_time"},
	)

	uploadsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "uploads_in_flight",
			Help:      "Uploads currently being decoded",
		},
	)

	partsDecodedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "parts_decoded_total",
			Help:      "Parts successfully decoded",
		},
	)

	partBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "part_bytes_total",
			Help:      "Body bytes streamed across all decoded parts",
		},
	)

	decodeErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "decode_errors_total",
			Help:      "Decode failures by error kind",
		},
		[]string{"kind"},
	)
)

// ObserveBuildInfo records the running binary's version metadata,
// called once at startup.
func ObserveBuildInfo() {
	info := common.GetBuildInfo()
	buildInfo.WithLabelValues(info.Version, info.GitHash, info.Time).Set(1)
}

// ObserveUptime records the process uptime in seconds, called
// periodically by the server's background tick.
func ObserveUptime() {
	uptime.Set(float64(fasttime.UnixTimestamp() - common.Started()))
}

// UploadStarted marks one upload as in flight.
func UploadStarted() {
	uploadsInFlight.Inc()
}

// UploadFinished marks one in-flight upload as finished, successfully
// or not.
func UploadFinished() {
	uploadsInFlight.Dec()
}

// PartDecoded records one successfully decoded part of n bytes.
func PartDecoded(n int) {
	partsDecodedTotal.Inc()
	partBytesTotal.Add(float64(n))
}

// DecodeError records one decode failure, bucketed by its Kind's
// string form.
func DecodeError(kind string) {
	decodeErrorsTotal.WithLabelValues(kind).Inc()
}
