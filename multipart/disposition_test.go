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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Invariant 6: parsing a Content-Disposition value and rendering it
// back with Disposition.String produces a value that reparses to the
// same Type and Params, regardless of the key order String chose.
func TestDisposition_RoundTrip(t *testing.T) {
	raw := `form-data; name="upload"; filename="sample.png"`

	d, err := ParseDisposition(raw)
	require.NoError(t, err)
	assert.Equal(t, DispositionFormData, d.Type)
	assert.Equal(t, "upload", d.Name())
	assert.Equal(t, "sample.png", d.Filename())

	rendered := d.String()

	again, err := ParseDisposition(rendered)
	require.NoError(t, err)
	assert.Equal(t, d.Type, again.Type)
	assert.Equal(t, d.Params, again.Params)
}

func TestDisposition_AttachmentType(t *testing.T) {
	d, err := ParseDisposition(`attachment; filename="report.csv"`)
	require.NoError(t, err)
	assert.Equal(t, DispositionAttachment, d.Type)
	assert.Equal(t, "", d.Name())
	assert.Equal(t, "report.csv", d.Filename())
}

func TestDisposition_ExtensionTypePreservesToken(t *testing.T) {
	d, err := ParseDisposition(`x-custom; foo="bar"`)
	require.NoError(t, err)
	assert.Equal(t, DispositionExtension, d.Type)
	assert.Equal(t, "x-custom", d.Raw)

	rendered := d.String()
	again, err := ParseDisposition(rendered)
	require.NoError(t, err)
	assert.Equal(t, DispositionExtension, again.Type)
	assert.Equal(t, "x-custom", again.Raw)
	assert.Equal(t, d.Params, again.Params)
}

func TestDisposition_QuoteEscapingRoundTrips(t *testing.T) {
	d, err := ParseDisposition(`form-data; name="f"; filename="a \"quoted\" name.txt"`)
	require.NoError(t, err)

	rendered := d.String()
	again, err := ParseDisposition(rendered)
	require.NoError(t, err)
	assert.Equal(t, d.Filename(), again.Filename())
}

func TestDisposition_InvalidValueErrors(t *testing.T) {
	_, err := ParseDisposition(`;;;not valid`)
	assert.Error(t, err)
}
