// Package mcp implements the MCP (Model Context Protocol) server for
// credvault. Tools expose envelope metadata, target status and history;
// plaintext credential values never leave the process, only masked forms.
package mcp

import (
	"context"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/forest6511/credvault/internal/history"
	"github.com/forest6511/credvault/pkg/batch"
	"github.com/forest6511/credvault/pkg/vault"
)

// Version is reported in the MCP implementation info.
const Version = "0.3.0"

// Server represents the MCP server for credvault.
type Server struct {
	server   *mcp.Server
	vault    *vault.Vault
	batch    *batch.Batch
	history  *history.Store
	basePath string
	password string
	logger   zerolog.Logger
}

// ServerOptions contains configuration options for the MCP server.
type ServerOptions struct {
	Vault   *vault.Vault
	Targets []batch.Target

	// BasePath confines every path argument. Defaults to the working
	// directory.
	BasePath string

	// History is optional. When set, history_list is registered and
	// credential_keys calls are recorded.
	History *history.Store

	// PasswordEnv names the environment variable holding the vault
	// password. It is read once and cleared. Without a password the
	// credential_keys tool is not registered.
	PasswordEnv string

	Logger zerolog.Logger
}

// NewServer creates a new MCP server instance.
func NewServer(opts ServerOptions) (*Server, error) {
	basePath := opts.BasePath
	if basePath == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		basePath = wd
	}

	var password string
	if opts.PasswordEnv != "" {
		password = os.Getenv(opts.PasswordEnv)
		// Clear the environment variable after reading
		os.Unsetenv(opts.PasswordEnv)
	}

	s := &Server{
		server: mcp.NewServer(
			&mcp.Implementation{
				Name:    "credvault",
				Version: Version,
			},
			nil,
		),
		vault:    opts.Vault,
		batch:    batch.New(opts.Vault, opts.Targets),
		history:  opts.History,
		basePath: basePath,
		password: password,
		logger:   opts.Logger,
	}

	s.registerTools()
	return s, nil
}

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "envelope_info",
		Description: "Read the public fields of an encrypted credential envelope (algorithm, timestamp, IV and ciphertext sizes). Does NOT decrypt.",
	}, s.handleEnvelopeInfo)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "target_status",
		Description: "List the configured credential targets and whether their plaintext and encrypted files exist.",
	}, s.handleTargetStatus)

	if s.password != "" {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "credential_keys",
			Description: "Decrypt an envelope in memory and return its top-level keys with masked values. Sensitive keys (secrets, tokens, private keys) are fully masked; others show at most the last 4 characters. Does NOT return plaintext values.",
		}, s.handleCredentialKeys)
	}

	if s.history != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "history_list",
			Description: "List recent vault operations (operation, paths, outcome). Contains no secret material.",
		}, s.handleHistoryList)
	}
}

// Run starts the MCP server using stdio transport.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info().Str("base_path", s.basePath).Bool("credential_keys", s.password != "").Msg("MCP server starting")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Close drops the in-memory password.
func (s *Server) Close() error {
	s.password = ""
	return nil
}
