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
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/packetd/kawa/confengine"
	"github.com/packetd/kawa/internal/rescue"
	"github.com/packetd/kawa/logger"
	"github.com/packetd/kawa/relay"
)

type relayCmdConfig struct {
	Logger logger.Options `config:"logger"`
	Relay  relay.Config   `config:"relay"`
	Input  string         `config:"input"`  // 空值代表 stdin
	Output string         `config:"output"` // 空值代表 stdout
}

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Pump HTTP/1 messages through the IR and write them back out",
	Run: func(cmd *cobra.Command, args []string) {
		defer rescue.HandleCrash()

		var cfg relayCmdConfig
		if configPath != "" {
			conf, err := confengine.LoadConfigPath(configPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
				os.Exit(1)
			}
			if err := conf.Unpack(&cfg); err != nil {
				fmt.Fprintf(os.Stderr, "failed to unpack config: %v\n", err)
				os.Exit(1)
			}
		}
		cfg.Logger.Stdout = cfg.Logger.Filename == ""
		logger.SetOptions(cfg.Logger)

		src, err := openInput(cfg.Input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open input: %v\n", err)
			os.Exit(1)
		}
		dst, err := openOutput(cfg.Output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open output: %v\n", err)
			os.Exit(1)
		}

		r, err := relay.New(cfg.Relay)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid relay config: %v\n", err)
			os.Exit(1)
		}
		if err := r.Run(src, dst); err != nil {
			logger.Errorf("relay aborted: %v", err)
			os.Exit(1)
		}
	},
	Example: "# kawa relay --config kawa.yaml",
}

func openInput(p string) (io.Reader, error) {
	if p == "" {
		return os.Stdin, nil
	}
	return os.Open(p)
}

func openOutput(p string) (io.Writer, error) {
	if p == "" {
		return os.Stdout, nil
	}
	return os.Create(p)
}

var configPath string

func init() {
	relayCmd.Flags().StringVar(&configPath, "config", "", "Configuration file path")
	rootCmd.AddCommand(relayCmd)
}
