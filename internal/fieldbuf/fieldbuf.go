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

// Package fieldbuf stages a decoded part's bytes in a pooled buffer
// before handing them to a storage.Sink, and fingerprints the result,
// the same way internal/labels pools a buffer to hash a label set
// instead of allocating fresh for every one.
package fieldbuf

import (
	"github.com/cespare/xxhash/v2"
	"github.com/valyala/bytebufferpool"
)

// Buffer wraps a pooled bytebufferpool.ByteBuffer. Release must be
// called once the staged bytes have been handed off, returning the
// buffer to the pool.
type Buffer struct {
	buf *bytebufferpool.ByteBuffer
}

// Get acquires a Buffer from the shared pool.
func Get() *Buffer {
	return &Buffer{buf: bytebufferpool.Get()}
}

// Write appends p to the staged bytes.
func (b *Buffer) Write(p []byte) (int, error) {
	return b.buf.Write(p)
}

// Bytes returns the staged bytes so far.
func (b *Buffer) Bytes() []byte {
	return b.buf.Bytes()
}

// Len returns the number of staged bytes.
func (b *Buffer) Len() int {
	return b.buf.Len()
}

// Fingerprint returns an xxhash of the staged bytes, a cheap content
// hash suitable for dedup keys and log correlation, not for integrity
// verification.
func (b *Buffer) Fingerprint() uint64 {
	return xxhash.Sum64(b.buf.Bytes())
}

// Release returns the underlying buffer to the pool. The Buffer must
// not be used afterward.
func (b *Buffer) Release() {
	bytebufferpool.Put(b.buf)
	b.buf = nil
}

// Fingerprint hashes p directly, for callers that already have the
// full byte slice and don't need staged, incremental writes.
func Fingerprint(p []byte) uint64 {
	return xxhash.Sum64(p)
}
