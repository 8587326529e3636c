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

// Package snapshot archives an UploadSummary as a protobuf-marshaled,
// snappy-compressed file under a configured directory, mirroring the
// teacher's marshal-then-compress pipeline for shipping roundtrips.
package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/snappy"

	"github.com/packetd/multipartd/storage"
)

type Config struct {
	TempDir string `config:"tempDir"`
}

// Sink writes one ".snap" file per upload to conf.TempDir.
type Sink struct {
	conf Config
}

func New(conf Config) (*Sink, error) {
	if conf.TempDir == "" {
		conf.TempDir = os.TempDir()
	}
	if err := os.MkdirAll(conf.TempDir, 0o755); err != nil {
		return nil, err
	}
	return &Sink{conf: conf}, nil
}

func (s *Sink) Store(_ context.Context, summary storage.UploadSummary) error {
	pb := UploadSummary{RequestId: summary.RequestID}
	for _, p := range summary.Parts {
		pb.Parts = append(pb.Parts, PartSummary{
			FieldName:   p.FieldName,
			ContentType: p.ContentType,
			Filename:    p.Filename,
			Bytes:       int64(p.Bytes),
			Fingerprint: p.Fingerprint,
		})
	}

	raw, err := pb.Marshal()
	if err != nil {
		return err
	}
	compressed := snappy.Encode(nil, raw)

	path := filepath.Join(s.conf.TempDir, fmt.Sprintf("%s.snap", summary.RequestID))
	return os.WriteFile(path, compressed, 0o644)
}

func (s *Sink) Close(_ context.Context) error {
	return nil
}

// Load reads back a snapshot file written by Store, for the decode
// CLI subcommand's --replay flag.
func Load(path string) (UploadSummary, error) {
	var out UploadSummary
	compressed, err := os.ReadFile(path)
	if err != nil {
		return out, err
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return out, err
	}
	err = out.Unmarshal(raw)
	return out, err
}
