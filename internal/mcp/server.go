// Package mcp exposes the lab and sleep analysis as MCP tools.
package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/c3po-initiative/dhroxy-frontend-example/internal/profile"
	"github.com/c3po-initiative/dhroxy-frontend-example/internal/service"
)

// ServerInfo contains MCP server metadata
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DefaultServerInfo is advertised when no other name is configured.
var DefaultServerInfo = ServerInfo{Name: "dhroxy-dashboard-mcp", Version: "v0.1.0"}

// Server is the MCP tool front end. Tools take FHIR data as input; when a tool is
// called without data it falls back to the configured lab source.
type Server struct {
	info      ServerInfo
	mcpServer *mcp.Server
	labs      service.ObservationSource
	store     profile.Store
	logger    *logrus.Logger
	now       func() time.Time
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithObservationSource lets tools fetch lab data when none is passed in.
func WithObservationSource(labs service.ObservationSource) ServerOption {
	return func(s *Server) {
		s.labs = labs
	}
}

// WithServerInfo overrides the advertised name and version.
func WithServerInfo(info ServerInfo) ServerOption {
	return func(s *Server) {
		s.info = info
	}
}

// NewServer creates the MCP server and registers its tools. store holds the
// profile the recommendations tool reads.
func NewServer(store profile.Store, opts ...ServerOption) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("profile store is required")
	}

	server := &Server{
		info:   DefaultServerInfo,
		store:  store,
		logger: logrus.New(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(server)
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    server.info.Name,
		Version: server.info.Version,
	}, nil)

	server.registerTools()
	return server, nil
}

// Start runs the server over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"name":    s.info.Name,
		"version": s.info.Version,
	}).Info("Starting MCP server on stdio")

	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// MCPServer exposes the underlying SDK server, e.g. for in-memory transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolClassifyObservations,
		Description: "Classify lab observations by their interpretation codes and reference ranges into action, watch, ok and unknown groups.",
	}, s.handleClassifyObservations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolLabPanel,
		Description: "Grade the latest value of each registered lab test against fixed warning and critical thresholds.",
	}, s.handleLabPanel)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolLabTrends,
		Description: "Group numeric lab results per test and report the direction and size of the change over time.",
	}, s.handleLabTrends)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolSleepSummary,
		Description: "Aggregate sleep sessions into per-night totals and stage durations for the last N nights.",
	}, s.handleSleepSummary)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolRecommendations,
		Description: "Produce diet, exercise, lifestyle and monitoring advice from lab values and the stored health profile.",
	}, s.handleRecommendations)

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        ToolExplainLabResult,
		Description: "Explain in plain Danish what a lab test measures and what the patient's value means.",
	}, s.handleExplainLabResult)

	s.logger.WithField("tool_count", len(ToolNames)).Debug("Registered MCP tools")
}
