package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/grounded-rag/internal/core/domain"
	"github.com/kirillkom/grounded-rag/internal/core/ports"
)

const (
	serverName    = "grounded-rag"
	serverVersion = "0.1.0"

	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// Server exposes the query pipeline as MCP tools.
type Server struct {
	query  ports.QueryService
	logger *slog.Logger
	mcp    *server.MCPServer
}

func NewServer(query ports.QueryService, logger *slog.Logger) (*Server, error) {
	if query == nil {
		return nil, errors.New("query service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		query:  query,
		logger: logger,
		mcp:    server.NewMCPServer(serverName, serverVersion, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s, nil
}

// MCPServer returns the underlying server for transports.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// ServeStdio blocks serving JSON-RPC over stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool("ask_documents",
		mcp.WithDescription("Answer a question from the indexed documents. The answer is verified against the sources and carries a 1-10 confidence score."),
		mcp.WithString("query", mcp.Required(), mcp.Description("the question to answer")),
		mcp.WithString("conversation_id", mcp.Description("continue an existing conversation")),
	), s.handleAsk)

	s.mcp.AddTool(mcp.NewTool("search_documents",
		mcp.WithDescription("Return the most relevant document chunks for a query without generating an answer."),
		mcp.WithString("query", mcp.Required(), mcp.Description("the search query")),
		mcp.WithNumber("limit", mcp.Description("maximum number of chunks to return (default 5)")),
	), s.handleSearch)
}

func (s *Server) handleAsk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.query.Answer(ctx, domain.QueryRequest{
		Query:          query,
		ConversationID: req.GetString("conversation_id", ""),
	})
	if err != nil {
		return s.toolError("ask_documents", err), nil
	}
	return jsonResult(result)
}

// SearchHit is one chunk returned by search_documents.
type SearchHit struct {
	ChunkID        string  `json:"chunk_id"`
	Source         string  `json:"source"`
	Text           string  `json:"text"`
	RelevanceScore float64 `json:"relevance_score"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", defaultSearchLimit)
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	candidates, err := s.query.Search(ctx, query, limit)
	if err != nil {
		return s.toolError("search_documents", err), nil
	}

	hits := make([]SearchHit, 0, len(candidates))
	for _, c := range candidates {
		source := c.Metadata.Source
		if source == "" {
			source = c.Metadata.FilePath
		}
		hits = append(hits, SearchHit{
			ChunkID:        c.ChunkID,
			Source:         source,
			Text:           c.Text,
			RelevanceScore: c.RelevanceScore,
		})
	}
	return jsonResult(map[string]any{"results": hits, "count": len(hits)})
}

// toolError reports failures inside the tool result so the client model can
// read them; protocol errors are reserved for transport problems.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		s.logger.Error("mcp_tool_failed", "tool", tool, "error", err)
	}
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", tool, err))
}

func jsonResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
