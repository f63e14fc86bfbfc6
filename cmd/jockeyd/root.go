// Copyright 2025 The LAMA Jockey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lama-robotics/jockey/internal/config"
)

// app carries the configuration shared by subcommands.
type app struct {
	configFile string
	cfg        *config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "jockeyd",
		Short: "Localizing jockey daemon",
		Long: `jockeyd runs a single-slot localizing jockey behind a gRPC endpoint and
provides client commands to submit goals, interrupt, continue and cancel them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("listen", "", "gRPC address to serve on or to connect to")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn or error")

	rootCmd.AddCommand(newServeCommand(a))
	rootCmd.AddCommand(newSubmitCommand(a))
	rootCmd.AddCommand(newControlCommand(a, "interrupt", "Interrupt the active goal"))
	rootCmd.AddCommand(newControlCommand(a, "continue", "Continue the interrupted goal"))
	rootCmd.AddCommand(newCancelCommand(a))
	rootCmd.AddCommand(newStateCommand(a))
	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	v, err := config.New(a.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	for key, flag := range map[string]string{"listen": "listen", "log_level": "log-level"} {
		if f := flags.Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level, _ := cfg.Level()
	opts := &slog.HandlerOptions{Level: level, AddSource: level <= slog.LevelDebug}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
