// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command autoagent runs the local autonomous agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jllopis/autoagent/pkg/errors"
)

var version = "0.1.0"

type globalFlags struct {
	ConfigPath string
	Profile    string
	Overrides  []string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "autoagent",
		Short: "Local autonomous agent with tools and long-term memory",
		Long: `autoagent answers questions with a local language model. It can search
the web, look things up on Wikipedia, read files, run commands and evaluate
small programs, and it remembers what it learns across sessions.

Run without arguments to start an interactive chat.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context(), flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	root.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "", "configuration file (YAML or JSON)")
	root.PersistentFlags().StringVar(&flags.Profile, "profile", "", "profile overlay, e.g. dev loads config.dev.yaml")
	root.PersistentFlags().StringArrayVar(&flags.Overrides, "set", nil, "override a configuration key (key=value), repeatable")

	root.AddCommand(
		newChatCmd(flags),
		newAskCmd(flags),
		newStatsCmd(flags),
		newToolsCmd(flags),
		newMCPCmd(flags),
		newSandboxCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	if ae := errors.AsAgentError(err); ae != nil {
		fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", ae.Code, errors.Describe(ae))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
