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
	"github.com/packetd/multipartd/common"
	"github.com/packetd/multipartd/internal/mapstructure"
)

// DecoderOptions is a loosely-typed per-call override of a Stream's
// construction options, the same role common.Options plays for
// protocol/phttp.NewDecoder's per-connection overrides.
type DecoderOptions common.Options

// Options converts the override into the Option slice New
// expects, reading "maxHeaderLines" and "maxHeaderBytes" if present
// and ignoring anything else. Absent or non-numeric keys are left at
// Stream's own defaults.
func (o DecoderOptions) Options() []Option {
	raw := common.Options(o)
	var opts []Option
	if n, err := raw.GetInt("maxHeaderLines"); err == nil && n > 0 {
		opts = append(opts, WithMaxHeaderLines(n))
	}
	if n, err := raw.GetInt("maxHeaderBytes"); err == nil && n > 0 {
		opts = append(opts, WithMaxHeaderBytes(n))
	}
	return opts
}

// DecoderLimits is the strongly-typed form of the same two knobs,
// used when the override arrives as an already-decoded map[string]any
// (e.g. a per-route JSON body) rather than as confengine-sourced
// common.Options, the same split the teacher draws between
// processor.New(conf map[string]any) decoding via internal/mapstructure
// and protocol/phttp.NewDecoder reading common.Options directly.
type DecoderLimits struct {
	MaxHeaderLines int `mapstructure:"maxHeaderLines"`
	MaxHeaderBytes int `mapstructure:"maxHeaderBytes"`
}

// DecoderLimitsFromMap decodes raw into a DecoderLimits.
func DecoderLimitsFromMap(raw map[string]any) (DecoderLimits, error) {
	var limits DecoderLimits
	if err := mapstructure.Decode(raw, &limits); err != nil {
		return DecoderLimits{}, err
	}
	return limits, nil
}

// Options converts the limits into the Option slice New
// expects.
func (l DecoderLimits) Options() []Option {
	var opts []Option
	if l.MaxHeaderLines > 0 {
		opts = append(opts, WithMaxHeaderLines(l.MaxHeaderLines))
	}
	if l.MaxHeaderBytes > 0 {
		opts = append(opts, WithMaxHeaderBytes(l.MaxHeaderBytes))
	}
	return opts
}
