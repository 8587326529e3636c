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

// Package mapstructure is a thin wrapper around mitchellh/mapstructure,
// giving every caller in this module one decode entrypoint instead of
// importing the third-party package directly.
package mapstructure

import "github.com/mitchellh/mapstructure"

// Decode fills out with the contents of input, matching keys against
// each field's "mapstructure" tag.
func Decode(input any, out any) error {
	return mapstructure.Decode(input, out)
}
