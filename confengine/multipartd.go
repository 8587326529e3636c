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

package confengine

// StorageConfig configures where decoded uploads get archived.
type StorageConfig struct {
	TempDir string `config:"tempDir"`
	Mongo   struct {
		Enabled    bool   `config:"enabled"`
		URI        string `config:"uri"`
		Database   string `config:"database"`
		Collection string `config:"collection"`
	} `config:"mongo"`
}

// MultipartdConfig is the "multipartd:" top-level block a deployment's
// YAML file carries, loaded via Config.UnpackChild("multipartd", ...).
// Defaults mirror the ones multipart.New itself falls back to, so an
// absent block still behaves the way the library would unconfigured.
type MultipartdConfig struct {
	MaxHeaderLines     int           `config:"maxHeaderLines"`
	MaxPartHeaderBytes int           `config:"maxPartHeaderBytes"`
	Server             ServerSection `config:"server"`
	Storage            StorageConfig `config:"storage"`
}

// ServerSection is the "server:" child of the multipartd block; it is
// deliberately not the same type as server.Config (which lives in a
// package above confengine in the import graph) so confengine stays a
// leaf package. The caller of server.NewFromConfig copies the fields
// across.
type ServerSection struct {
	Enabled      bool   `config:"enabled"`
	Address      string `config:"address"`
	MaxBodyBytes int64  `config:"maxBodyBytes"`
}

const (
	defaultMaxHeaderLines     = 32
	defaultMaxPartHeaderBytes = 8192
)

// LoadMultipartdConfig reads the "multipartd" block, filling in the
// library's own defaults for any field the YAML document omits.
func LoadMultipartdConfig(c *Config) (MultipartdConfig, error) {
	cfg := MultipartdConfig{
		MaxHeaderLines:     defaultMaxHeaderLines,
		MaxPartHeaderBytes: defaultMaxPartHeaderBytes,
	}
	if !c.Has("multipartd") {
		return cfg, nil
	}
	if err := c.UnpackChild("multipartd", &cfg); err != nil {
		return cfg, err
	}
	if cfg.MaxHeaderLines <= 0 {
		cfg.MaxHeaderLines = defaultMaxHeaderLines
	}
	if cfg.MaxPartHeaderBytes <= 0 {
		cfg.MaxPartHeaderBytes = defaultMaxPartHeaderBytes
	}
	return cfg, nil
}
