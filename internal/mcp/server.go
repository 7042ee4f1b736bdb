// Package mcp exposes the triage engine as MCP tools over stdio.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/offline-triage-engine/internal/domain"
	"github.com/offline-triage-engine/internal/service"
)

// Tool names.
const (
	ToolAnalyzeSymptoms       = "analyze_symptoms"
	ToolCheckDrugInteractions = "check_drug_interactions"
	ToolGetEngineStatus       = "get_engine_status"
)

// Analyzer is the engine surface the tools need.
type Analyzer interface {
	Analyze(ctx context.Context, req service.AnalysisRequest) *domain.AnalysisResult
	CheckDrugInteractions(medicines []string) []domain.DrugInteractionFinding
	Status() domain.EngineStatus
}

// Server is the MCP tool server.
type Server struct {
	engine    Analyzer
	logger    *logrus.Logger
	mcpServer *mcp.Server
}

// NewServer creates a new MCP server instance with every tool registered.
func NewServer(cfg domain.MCPConfig, engine Analyzer, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}

	serverInfo := &mcp.Implementation{
		Name:    cfg.ServerName,
		Version: cfg.ServerVersion,
	}

	s := &Server{
		engine:    engine,
		logger:    logger,
		mcpServer: mcp.NewServer(serverInfo, nil),
	}
	s.registerTools()

	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name: ToolAnalyzeSymptoms,
		Description: "Triage a set of reported symptoms with optional age, gender and vital signs. " +
			"Returns an urgency level, ranked condition candidates and advice. " +
			"This is decision support, not a diagnosis.",
	}, s.handleAnalyzeSymptoms)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolCheckDrugInteractions,
		Description: "Check a list of medicines against the built-in drug interaction table.",
	}, s.handleCheckDrugInteractions)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolGetEngineStatus,
		Description: "Report knowledge base and inference backend readiness.",
	}, s.handleGetEngineStatus)

	s.logger.WithField("tool_count", 3).Info("Registered MCP tools")
}

// Run serves on stdin/stdout until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.RunTransport(ctx, &mcp.StdioTransport{})
}

// RunTransport serves on transport.
func (s *Server) RunTransport(ctx context.Context, transport mcp.Transport) error {
	s.logger.Info("Starting MCP server")
	if err := s.mcpServer.Run(ctx, transport); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}
