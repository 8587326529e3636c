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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/packetd/multipartd/common"
	"github.com/packetd/multipartd/logger"
)

var rootCmd = &cobra.Command{
	Use:     common.App,
	Short:   "multipartd decodes and archives multipart/form-data uploads",
	Version: common.Version,
}

func init() {
	if _, err := maxprocs.Set(maxprocs.Logger(logger.Debugf)); err != nil {
		logger.Warnf("failed to set GOMAXPROCS: %v", err)
	}
}

// Execute runs the chosen subcommand, exiting the process on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
