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

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/packetd/multipartd/confengine"
	"github.com/packetd/multipartd/controller"
	"github.com/packetd/multipartd/internal/rescue"
	"github.com/packetd/multipartd/internal/sigs"
	"github.com/packetd/multipartd/logger"
	"github.com/packetd/multipartd/multipart"
	"github.com/packetd/multipartd/server"
	"github.com/packetd/multipartd/storage"
	"github.com/packetd/multipartd/storage/mongostore"
	"github.com/packetd/multipartd/storage/snapshot"
)

// setupLogger wires the "logger" config block the same way the
// teacher's controller.setupLogger does, with the same fallback
// defaults for an omitted block.
func setupLogger(conf *confengine.Config) error {
	var opts logger.Options
	if err := conf.UnpackChild("logger", &opts); err != nil {
		return err
	}
	if opts.Filename == "" {
		opts.Filename = "multipartd.log"
	}
	if opts.MaxBackups <= 0 {
		opts.MaxBackups = 10
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = 7
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = 100
	}
	logger.SetOptions(opts)
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the multipart upload server",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := confengine.LoadConfigPath(configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
			os.Exit(1)
		}
		if err := setupLogger(cfg); err != nil {
			fmt.Fprintf(os.Stderr, "failed to configure logger: %v\n", err)
			os.Exit(1)
		}

		mpCfg, err := confengine.LoadMultipartdConfig(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to load multipartd config: %v\n", err)
			os.Exit(1)
		}

		srvCfg := server.Config{
			Enabled:      mpCfg.Server.Enabled,
			Address:      mpCfg.Server.Address,
			MaxBodyBytes: mpCfg.Server.MaxBodyBytes,
		}
		if srvCfg.Address == "" {
			srvCfg.Address = ":8089"
		}
		if !mpCfg.Server.Enabled && mpCfg.Server.Address == "" {
			srvCfg.Enabled = true // absent block still runs the demo server with defaults
		}

		sink, err := buildSink(mpCfg.Storage)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build storage sink: %v\n", err)
			os.Exit(1)
		}

		controller.ObserveBuildInfo()

		srv := server.NewFromConfig(srvCfg)
		events := server.NewEventBus()
		handler := server.NewUploadHandler(sink, events, srvCfg.MaxBodyBytes,
			multipart.WithMaxHeaderLines(mpCfg.MaxHeaderLines),
			multipart.WithMaxHeaderBytes(mpCfg.MaxPartHeaderBytes),
		)
		srv.RegisterPostRoute("/upload", handler.ServeHTTP)
		srv.RegisterEventsRoute("/events", events)

		go func() {
			defer rescue.HandleCrash()
			if err := srv.ListenAndServe(); err != nil {
				logger.Errorf("server stopped: %v", err)
			}
		}()

		go func() {
			defer rescue.HandleCrash()
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				controller.ObserveUptime()
			}
		}()

		var reloadTotal int
		for {
			select {
			case <-sigs.Terminate():
				if sink != nil {
					_ = sink.Close(context.Background())
				}
				return

			case <-sigs.Reload():
				reloadTotal++
				cfg, err := confengine.LoadConfigPath(configPath)
				if err != nil {
					fmt.Fprintf(os.Stderr, "failed to load config (count=%d): %v\n", reloadTotal, err)
					continue
				}
				if _, err := confengine.LoadMultipartdConfig(cfg); err != nil {
					logger.Errorf("failed to reload multipartd config: %v", err)
					continue
				}
				logger.Infof("reload (count=%d): config re-read and validated; the running server keeps its startup decoder limits", reloadTotal)
			}
		}
	},
	Example: "# multipartd serve --config multipartd.yaml",
}

func buildSink(cfg confengine.StorageConfig) (storage.Sink, error) {
	var sinks storage.MultiSink

	snap, err := snapshot.New(snapshot.Config{TempDir: cfg.TempDir})
	if err != nil {
		return nil, err
	}
	sinks = append(sinks, snap)

	if cfg.Mongo.Enabled {
		mongo, err := mongostore.New(context.Background(), mongostore.Config{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, mongo)
	}

	return sinks, nil
}

var configPath string

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "multipartd.yaml", "Configuration file path")
	rootCmd.AddCommand(serveCmd)
}
