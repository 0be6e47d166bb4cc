package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forest6511/credvault/internal/history"
	"github.com/forest6511/credvault/internal/mcp"
)

var mcpBase string

func init() {
	rootCmd.AddCommand(mcpServerCmd)
	mcpServerCmd.Flags().StringVar(&mcpBase, "base", "", "Directory the server may read from (default: working directory)")
}

// mcpServerCmd starts the MCP server for AI coding assistant integration
var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Start the MCP server for AI coding assistant integration",
	Long: `Start an MCP (Model Context Protocol) server over stdio that lets
AI coding assistants inspect credential envelopes without seeing plaintext.

Available tools:
  - envelope_info:    Algorithm, timestamp and sizes of an envelope (no decryption)
  - target_status:    Which plaintext and encrypted target files exist
  - credential_keys:  Top-level keys with masked values (requires a password)
  - history_list:     Recent vault operations

Authentication:
  credential_keys is enabled only when CREDVAULT_PASSWORD (or the variable
  named by password_env) is set. The variable is read once and cleared
  from the environment.

Example MCP configuration:
  {
    "mcpServers": {
      "credvault": {
        "type": "stdio",
        "command": "/path/to/credvault",
        "args": ["mcp-server"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCPServer(cmd.Context())
	},
}

func runMCPServer(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var store *history.Store
	if !noHistory && cfg.HistoryPath != "" {
		var err error
		store, err = history.Open(ctx, cfg.HistoryPath)
		if err != nil {
			logger.Warn().Err(err).Msg("history unavailable")
		} else {
			defer store.Close()
		}
	}

	server, err := mcp.NewServer(mcp.ServerOptions{
		Vault:       v,
		Targets:     cfg.Targets,
		BasePath:    mcpBase,
		History:     store,
		PasswordEnv: cfg.PasswordEnvFor(currentNamespace()),
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Set up signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
			server.Close()
		case <-ctx.Done():
		}
	}()

	if err := server.Run(ctx); err != nil {
		// Don't report context canceled as an error
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
