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

package snapshot

import (
	"fmt"
	"io"

	"github.com/gogo/protobuf/proto"
)

// PartSummary mirrors the wire shape a protoc-gogofaster run would
// generate for a single archived part. Field numbers below are load-
// bearing: they fix the wire tags Marshal/Unmarshal use.
type PartSummary struct {
	FieldName   string `protobuf:"bytes,1,opt,name=fieldName"`
	ContentType string `protobuf:"bytes,2,opt,name=contentType"`
	Filename    string `protobuf:"bytes,3,opt,name=filename"`
	Bytes       int64  `protobuf:"varint,4,opt,name=bytes"`
	Fingerprint uint64 `protobuf:"varint,5,opt,name=fingerprint"`
}

// UploadSummary is the per-upload record persisted to tempDir.
type UploadSummary struct {
	RequestId string        `protobuf:"bytes,1,opt,name=requestId"`
	Parts     []PartSummary `protobuf:"bytes,2,rep,name=parts"`
}

func marshalPart(p PartSummary) []byte {
	buf := proto.NewBuffer(nil)
	buf.EncodeVarint(uint64(1<<3 | 2))
	buf.EncodeStringBytes(p.FieldName)
	buf.EncodeVarint(uint64(2<<3 | 2))
	buf.EncodeStringBytes(p.ContentType)
	buf.EncodeVarint(uint64(3<<3 | 2))
	buf.EncodeStringBytes(p.Filename)
	buf.EncodeVarint(uint64(4<<3 | 0))
	buf.EncodeVarint(uint64(p.Bytes))
	buf.EncodeVarint(uint64(5<<3 | 0))
	buf.EncodeVarint(p.Fingerprint)
	return buf.Bytes()
}

func unmarshalPart(data []byte) (PartSummary, error) {
	var p PartSummary
	buf := proto.NewBuffer(data)
	for {
		tag, err := buf.DecodeVarint()
		if err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return p, err
		}
		field, wireType := tag>>3, tag&0x7
		switch {
		case field == 1 && wireType == 2:
			p.FieldName, err = buf.DecodeStringBytes()
		case field == 2 && wireType == 2:
			p.ContentType, err = buf.DecodeStringBytes()
		case field == 3 && wireType == 2:
			p.Filename, err = buf.DecodeStringBytes()
		case field == 4 && wireType == 0:
			var v uint64
			v, err = buf.DecodeVarint()
			p.Bytes = int64(v)
		case field == 5 && wireType == 0:
			p.Fingerprint, err = buf.DecodeVarint()
		default:
			err = fmt.Errorf("snapshot: unknown field %d (wire type %d) in PartSummary", field, wireType)
		}
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// Marshal encodes s in the same wire format protoc-generated code
// would for the field numbers tagged above, written by hand since
// running protoc is out of scope here.
func (s UploadSummary) Marshal() ([]byte, error) {
	buf := proto.NewBuffer(nil)
	buf.EncodeVarint(uint64(1<<3 | 2))
	buf.EncodeStringBytes(s.RequestId)
	for _, p := range s.Parts {
		buf.EncodeVarint(uint64(2<<3 | 2))
		buf.EncodeRawBytes(marshalPart(p))
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data produced by Marshal back into s.
func (s *UploadSummary) Unmarshal(data []byte) error {
	*s = UploadSummary{}
	buf := proto.NewBuffer(data)
	for {
		tag, err := buf.DecodeVarint()
		if err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return err
		}
		field, wireType := tag>>3, tag&0x7
		switch {
		case field == 1 && wireType == 2:
			s.RequestId, err = buf.DecodeStringBytes()
		case field == 2 && wireType == 2:
			var raw []byte
			raw, err = buf.DecodeRawBytes(false)
			if err == nil {
				var p PartSummary
				p, err = unmarshalPart(raw)
				s.Parts = append(s.Parts, p)
			}
		default:
			err = fmt.Errorf("snapshot: unknown field %d (wire type %d) in UploadSummary", field, wireType)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
