// Package mcp provides an MCP (Model Context Protocol) server that lets a
// client grow networks, run simulations and inspect stored runs.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/epinet/internal/config"
	"github.com/nvandessel/epinet/internal/metrics"
	"github.com/nvandessel/epinet/internal/pathutil"
	"github.com/nvandessel/epinet/internal/ratelimit"
	"github.com/nvandessel/epinet/internal/store"
)

// Server wraps the MCP SDK server with the epinet tools.
type Server struct {
	server   *sdk.Server
	store    *store.Store
	audit    *AuditLogger
	limiters ratelimit.ToolLimiters
	base     config.Params
	logger   *slog.Logger
	metrics  *metrics.Registry
	allowed  []string
}

// Config holds server configuration.
type Config struct {
	Name    string         // Server name (e.g., "epinet")
	Version string         // Server version
	Base    *config.Params // values for omitted tool arguments; defaults when nil
	// StorePath is the run database. Empty disables recording and
	// epinet_runs.
	StorePath string
	// AuditPath is the JSONL tool audit log. Empty disables auditing.
	AuditPath string
	// AllowedDirs bounds the file paths tools accept. Empty means the
	// working directory and the run store's directory.
	AllowedDirs []string
	Logger      *slog.Logger
}

// NewServer creates a new MCP server with the epinet tools registered.
func NewServer(ctx context.Context, cfg *Config) (*Server, error) {
	s := &Server{
		limiters: ratelimit.NewToolLimiters(),
		logger:   cfg.Logger,
		metrics:  metrics.NewRegistry(),
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if cfg.Base != nil {
		s.base = *cfg.Base
	} else {
		s.base = *config.Default()
	}
	// Tool calls return results; nothing is written to the base outputs.
	s.base.Output = config.OutputConfig{}
	s.base.Network.SaveEdges = ""

	s.allowed = cfg.AllowedDirs
	if len(s.allowed) == 0 {
		dirs, err := pathutil.AllowedDirs(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		s.allowed = dirs
	}

	if cfg.StorePath != "" {
		st, err := store.Open(ctx, cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open run store: %w", err)
		}
		s.store = st
	}
	if cfg.AuditPath != "" {
		audit, err := NewAuditLogger(cfg.AuditPath)
		if err != nil {
			s.logger.Warn("audit log disabled", "path", cfg.AuditPath, "error", err)
		} else {
			s.audit = audit
		}
	}

	s.server = sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			s.logger.Debug("mcp client initialized")
		},
	})

	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run serves over stdio until the client disconnects, the context is
// cancelled or the process is signalled.
func (s *Server) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, shutdownSignals...)
	defer stop()

	s.logger.Info("mcp server listening on stdio", "store", s.store != nil)
	err := s.server.Run(ctx, &sdk.StdioTransport{})
	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close releases the run store and the audit log. Safe to call more than
// once.
func (s *Server) Close() error {
	var firstErr error
	if s.store != nil {
		firstErr = s.store.Close()
	}
	if err := s.audit.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
