// Package mcp exposes a learner session over the Model Context Protocol.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nvandessel/competence/internal/logging"
	"github.com/nvandessel/competence/internal/ratelimit"
	"github.com/nvandessel/competence/internal/session"
)

// Server wraps the MCP SDK server around one learner session.
type Server struct {
	server  *sdk.Server
	session *session.Session
	name    string

	// mu serializes tool calls so that read-modify-write sequences such
	// as "snapshot, apply, diff" see a stable vector.
	mu sync.Mutex

	toolLimiters ratelimit.ToolLimiters
	audit        *AuditLogger
	decisions    *logging.DecisionLogger
	sessionID    string
	logger       *slog.Logger
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "competence")
	Version string // Server version
	Root    string // Project root directory; the audit log lives under it

	Session    *session.Session // Learner session served by the tools. Required.
	DomainName string           // Shown in graph renderings

	// RateLimit enables per-tool, per-learner rate limiting.
	RateLimit bool

	Logger    *slog.Logger
	Decisions *logging.DecisionLogger
}

// NewServer creates a new MCP server with the competence tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg.Session == nil {
		return nil, fmt.Errorf("mcp server: no session configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:    mcpServer,
		session:   cfg.Session,
		name:      cfg.DomainName,
		decisions: cfg.Decisions,
		sessionID: uuid.NewString(),
		logger:    logger.With("component", "mcp"),
	}
	if cfg.RateLimit {
		s.toolLimiters = ratelimit.NewToolLimiters(ratelimit.DefaultRates())
	}
	if cfg.Root != "" {
		s.audit = NewAuditLogger(cfg.Root)
	}

	s.registerTools()
	s.registerResources()

	s.logger.Info("mcp server ready",
		"session", s.sessionID,
		"learner", s.session.LearnerID(),
		"rate_limit", cfg.RateLimit)
	return s, nil
}

// SessionID identifies this server run in audit and decision logs.
func (s *Server) SessionID() string { return s.sessionID }

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			s.logger.Info("signal received, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	if cerr := s.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// Close persists the session and closes the audit log.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.session.Save(context.Background())
	if aerr := s.audit.Close(); aerr != nil && err == nil {
		err = aerr
	}
	return err
}
