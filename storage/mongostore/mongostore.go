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

// Package mongostore archives upload summaries as documents in
// MongoDB, one of the storage.Sink implementations confengine's
// storage block can select.
package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/packetd/multipartd/storage"
)

type Config struct {
	URI        string        `config:"uri"`
	Database   string        `config:"database"`
	Collection string        `config:"collection"`
	Timeout    time.Duration `config:"timeout"`
}

// Sink persists storage.UploadSummary documents to a MongoDB
// collection.
type Sink struct {
	client *mongo.Client
	coll   *mongo.Collection
	conf   Config
}

type partDocument struct {
	FieldName   string `bson:"fieldName"`
	ContentType string `bson:"contentType"`
	Filename    string `bson:"filename"`
	Bytes       int    `bson:"bytes"`
	Fingerprint uint64 `bson:"fingerprint"`
}

type uploadDocument struct {
	RequestID string         `bson:"requestId"`
	Parts     []partDocument `bson:"parts"`
	CreatedAt time.Time      `bson:"createdAt"`
}

// New connects to the configured MongoDB deployment and returns a
// Sink backed by conf.Collection in conf.Database.
func New(ctx context.Context, conf Config) (*Sink, error) {
	if conf.Timeout <= 0 {
		conf.Timeout = 5 * time.Second
	}
	if conf.Collection == "" {
		conf.Collection = "parts"
	}

	ctx, cancel := context.WithTimeout(ctx, conf.Timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &Sink{
		client: client,
		coll:   client.Database(conf.Database).Collection(conf.Collection),
		conf:   conf,
	}, nil
}

func (s *Sink) Store(ctx context.Context, summary storage.UploadSummary) error {
	doc := uploadDocument{
		RequestID: summary.RequestID,
		CreatedAt: time.Now(),
	}
	for _, p := range summary.Parts {
		doc.Parts = append(doc.Parts, partDocument{
			FieldName:   p.FieldName,
			ContentType: p.ContentType,
			Filename:    p.Filename,
			Bytes:       p.Bytes,
			Fingerprint: p.Fingerprint,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, s.conf.Timeout)
	defer cancel()
	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

func (s *Sink) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
