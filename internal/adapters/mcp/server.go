package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/assetiq/assetiq/internal/core/ports"
)

const serverVersion = "1.0.0"

// QueryAnswerer is the pipeline surface exposed over MCP.
type QueryAnswerer interface {
	ports.QueryAnswerer
	ports.CacheAdmin
}

// Server exposes the answer pipeline as MCP tools over stdio so agent
// hosts can query the asset registry directly.
type Server struct {
	answerer QueryAnswerer
	mcp      *server.MCPServer
}

func NewServer(answerer QueryAnswerer) *Server {
	s := &Server{
		answerer: answerer,
		mcp: server.NewMCPServer(
			"assetiq",
			serverVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(
		mcp.NewTool("ask_assets",
			mcp.WithDescription("Answer a natural-language question about the asset registry. "+
				"Exact questions (counts, lists, breakdowns) are answered from the database; "+
				"analytical and knowledge questions return ranked context passages."),
			mcp.WithString("question",
				mcp.Required(),
				mcp.Description("The question to answer."),
			),
		),
		s.handleAskAssets,
	)

	s.mcp.AddTool(
		mcp.NewTool("invalidate_cache",
			mcp.WithDescription("Flush the result cache after asset records change outside the pipeline."),
		),
		s.handleInvalidateCache,
	)

	return s
}

// ServeStdio blocks until stdin closes or the context is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) handleAskAssets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.answerer.AnswerQuery(ctx, question)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("answer query: %v", err)), nil
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleInvalidateCache(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.answerer.InvalidateAll()
	return mcp.NewToolResultText("cache invalidated"), nil
}
