// Package main provides the CLI entry point for linggen-agent: the agent
// execution engine driving a turn loop of model calls, reply parsing, tool
// execution, and delegation against a developer's workspace.
//
// # Basic usage
//
// Run one agent interactively against the current directory:
//
//	linggen agent --root . --model claude
//
// Run the engine as a long-lived process with an HTTP boundary:
//
//	linggen serve --port 8080 --root .
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during release builds.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "linggen",
		Short:         "linggen-agent: a multi-agent execution engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	}
	root.AddCommand(newAgentCmd())
	root.AddCommand(newServeCmd())
	return root
}
