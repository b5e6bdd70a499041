package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/retrieval"
	"github.com/hyperjump/kensaku/internal/server"
)

const searchToolName = "knowledge_base_search"

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the knowledge base search tool over MCP (stdio)",
	Args:  cobra.NoArgs,
	RunE:  runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	components, err := initializeComponents(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	s := mcpserver.NewMCPServer("kensaku", version, mcpserver.WithToolCapabilities(false))
	s.AddTool(searchTool(), makeSearchHandler(components.Pipeline, logger))
	return mcpserver.ServeStdio(s)
}

func searchTool() mcp.Tool {
	return mcp.NewTool(searchToolName,
		mcp.WithDescription("Search the internal and external document collections and return cited passages. "+
			"Each passage is headed [Source N: file]; cite those file names in the answer."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(true),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(false),
		}),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language question or keywords"),
		),
		mcp.WithString("source_type",
			mcp.Description("Optional filter: internal or external"),
			mcp.Enum("internal", "external"),
		),
	)
}

func makeSearchHandler(retriever server.Retriever, logger *zap.Logger) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query := strings.TrimSpace(req.GetString("query", ""))
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		category, err := models.ParseCategory(req.GetString("source_type", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		res, err := retriever.Query(ctx, query, category)
		switch {
		case errors.Is(err, retrieval.ErrNoDocumentsIndexed):
			return mcp.NewToolResultText("No documents are indexed for this query. Answer from general knowledge and say so."), nil
		case errors.Is(err, retrieval.ErrTimeout):
			return mcp.NewToolResultError("search timed out; try again"), nil
		case err != nil:
			logger.Error("mcp search failed", zap.String("query", query), zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatToolResult(res)), nil
	}
}

func formatToolResult(res *models.RetrievalResult) string {
	var sb strings.Builder
	sb.WriteString(res.Context)
	if len(res.Sources) > 0 {
		fmt.Fprintf(&sb, "\n\nSources: %s", strings.Join(res.Sources, ", "))
	}
	return sb.String()
}
