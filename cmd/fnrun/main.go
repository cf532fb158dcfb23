// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command fnrun serves a function over HTTP and supervises that server.
//
// Usage:
//
//	fnrun serve                  Serve the function on http_port
//	fnrun supervise              Keep a serve process running
//	fnrun supervise --dev        Restart it whenever a source file changes
//	fnrun supervise -- go run ./cmd/fnrun serve
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// a missing .env file is fine, the process environment is used as is
	_ = godotenv.Load(".env")

	err := newRootCmd().ExecuteContext(context.Background())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fnrun",
		Short: "Run a function behind an HTTP server",
		Long: `fnrun adapts HTTP requests into events for a single function handler.

The serve command runs the HTTP server. The supervise command runs serve
as a child process, restarts it when it crashes and, in development mode,
restarts it whenever a file in the working directory changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newSuperviseCmd(),
	)
	return rootCmd
}
