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
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/packetd/multipartd/common"
	"github.com/packetd/multipartd/multipart"
	"github.com/packetd/multipartd/storage/snapshot"
)

var decodeConfig struct {
	File           string
	Boundary       string
	Replay         string
	MaxHeaderLines int
	MaxHeaderBytes int
}

var decodeCmd = &cobra.Command{
	Use:   "decode",
	Short: "Decode a local multipart body file and print per-part metadata",
	Run: func(cmd *cobra.Command, args []string) {
		if decodeConfig.Replay != "" {
			summary, err := snapshot.Load(decodeConfig.Replay)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load snapshot: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("upload %s, %d part(s)\n", summary.RequestId, len(summary.Parts))
			for _, p := range summary.Parts {
				fmt.Printf("  field=%q content-type=%q bytes=%d fingerprint=%x\n",
					p.FieldName, p.ContentType, p.Bytes, p.Fingerprint)
			}
			return
		}

		if decodeConfig.File == "" || decodeConfig.Boundary == "" {
			fmt.Fprintln(os.Stderr, "--file and --boundary are required (or use --replay)")
			os.Exit(1)
		}

		f, err := os.Open(decodeConfig.File)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open %s: %v\n", decodeConfig.File, err)
			os.Exit(1)
		}
		defer f.Close()

		header := http.Header{}
		header.Set("Content-Type", "multipart/form-data; boundary="+decodeConfig.Boundary)

		overrides := common.NewOptions()
		if decodeConfig.MaxHeaderLines > 0 {
			overrides.Merge("maxHeaderLines", decodeConfig.MaxHeaderLines)
		}
		if decodeConfig.MaxHeaderBytes > 0 {
			overrides.Merge("maxHeaderBytes", decodeConfig.MaxHeaderBytes)
		}

		stream := multipart.New(header, f, multipart.DecoderOptions(overrides).Options()...)
		ctx := context.Background()
		for {
			part, err := stream.Next(ctx)
			if err == io.EOF {
				break
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "decode error: %v\n", err)
				os.Exit(1)
			}

			n := 0
			for {
				chunk, rerr := part.Read(ctx)
				if rerr == io.EOF {
					break
				}
				if rerr != nil {
					fmt.Fprintf(os.Stderr, "read error: %v\n", rerr)
					os.Exit(1)
				}
				n += len(chunk)
			}
			fmt.Println(part.String(), "bytes="+fmt.Sprint(n))
		}
	},
	Example: "# multipartd decode --file body.bin --boundary XYZ\n# multipartd decode --replay /tmp/multipartd/<id>.snap",
}

func init() {
	decodeCmd.Flags().StringVar(&decodeConfig.File, "file", "", "Path to a raw multipart body to decode")
	decodeCmd.Flags().StringVar(&decodeConfig.Boundary, "boundary", "", "Boundary token used by the body file")
	decodeCmd.Flags().StringVar(&decodeConfig.Replay, "replay", "", "Path to a storage/snapshot .snap file to print instead of decoding")
	decodeCmd.Flags().IntVar(&decodeConfig.MaxHeaderLines, "max-header-lines", 0, "Override the decoder's per-part header line limit")
	decodeCmd.Flags().IntVar(&decodeConfig.MaxHeaderBytes, "max-header-bytes", 0, "Override the decoder's per-part header byte limit")
	rootCmd.AddCommand(decodeCmd)
}
