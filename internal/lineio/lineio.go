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

// Package lineio holds small byte-slice scanning helpers: newline
// search, arbitrary-delimiter search and prefix checks. No package in
// this module imports it; bufpart and multipart scan with the bytes
// package directly.
package lineio

import "bytes"

// IndexNewline returns the index of the first '\n' in buf, or -1.
func IndexNewline(buf []byte) int {
	return bytes.IndexByte(buf, '\n')
}

// Index returns the index of the first occurrence of delim in buf,
// or -1 if delim does not occur.
func Index(buf, delim []byte) int {
	return bytes.Index(buf, delim)
}

// HasPrefix reports whether buf starts with prefix.
func HasPrefix(buf, prefix []byte) bool {
	return bytes.HasPrefix(buf, prefix)
}
