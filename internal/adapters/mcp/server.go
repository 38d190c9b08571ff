package mcpadapter

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/medication-finder/internal/core/ports"
)

const (
	serverName    = "medication-finder"
	serverVersion = "1.0.0"
)

// Server exposes medication search and the assistant as MCP tools.
type Server struct {
	mcp    *server.MCPServer
	search ports.MedicationSearcher
	chat   ports.ChatService
	logger *slog.Logger
}

func NewServer(search ports.MedicationSearcher, chat ports.ChatService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		mcp:    server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
		search: search,
		chat:   chat,
		logger: logger,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchMedicationsTool(), s.handleSearchMedications)
	s.mcp.AddTool(askAssistantTool(), s.handleAskAssistant)
}

// Serve speaks the protocol over the given streams until ctx is cancelled or stdin closes.
func (s *Server) Serve(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	s.logger.Info("mcp_server_started", "tools", []string{toolSearchMedications, toolAskAssistant})
	return server.NewStdioServer(s.mcp).Listen(ctx, stdin, stdout)
}
