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

package common

const (
	// App is the program name used as the metrics/log namespace.
	App = "multipartd"

	// Version is the program version.
	Version = "v0.1.0"

	// ReadWriteBlockSize is the chunk size bufpart.ByteBuffer asks the
	// upstream io.Reader for on each drain. Large enough to avoid a
	// syscall per line, small enough that a single slow part doesn't
	// pin down an oversized buffer.
	ReadWriteBlockSize = 4096
)
