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
	"mime"
	"sort"
	"strings"
)

// DispositionType is the first token of a Content-Disposition header
// value.
type DispositionType int

const (
	DispositionInline DispositionType = iota
	DispositionAttachment
	DispositionFormData
	DispositionExtension
)

func (d DispositionType) String() string {
	switch d {
	case DispositionInline:
		return "inline"
	case DispositionAttachment:
		return "attachment"
	case DispositionFormData:
		return "form-data"
	default:
		return "extension"
	}
}

func parseDispositionType(s string) DispositionType {
	switch strings.ToLower(s) {
	case "inline":
		return DispositionInline
	case "attachment":
		return DispositionAttachment
	case "form-data":
		return DispositionFormData
	default:
		return DispositionExtension
	}
}

// Disposition is the parsed form of a Content-Disposition header
// value: a disposition type plus a parameter map over at minimum
// "name" and "filename".
type Disposition struct {
	Type   DispositionType
	Raw    string // the extension token, set only when Type is DispositionExtension
	Params map[string]string
}

// Name returns the "name" parameter, or "" if absent.
func (d *Disposition) Name() string { return d.Params["name"] }

// Filename returns the "filename" parameter, or "" if absent.
func (d *Disposition) Filename() string { return d.Params["filename"] }

// ParseDisposition parses a raw Content-Disposition header value. It
// is the default DispositionParser, grounded on mime.ParseMediaType;
// callers with stricter RFC 2183 needs can supply their own
// DispositionParser to New through WithDispositionParser instead.
func ParseDisposition(raw string) (*Disposition, error) {
	token, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return nil, err
	}
	d := &Disposition{Params: params, Type: parseDispositionType(token)}
	if d.Type == DispositionExtension {
		d.Raw = token
	}
	return d, nil
}

var quotedValueEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// String re-renders the disposition, sorting parameters by key for a
// deterministic output. Round-tripping ParseDisposition(d.String())
// yields the same Type and Params.
func (d *Disposition) String() string {
	var sb strings.Builder
	if d.Type == DispositionExtension {
		sb.WriteString(d.Raw)
	} else {
		sb.WriteString(d.Type.String())
	}

	keys := make([]string, 0, len(d.Params))
	for k := range d.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		sb.WriteString("; ")
		sb.WriteString(k)
		sb.WriteString(`="`)
		sb.WriteString(quotedValueEscaper.Replace(d.Params[k]))
		sb.WriteString(`"`)
	}
	return sb.String()
}
