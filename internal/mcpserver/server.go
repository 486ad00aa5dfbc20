// Package mcpserver provides an MCP (Model Context Protocol) server that
// exposes the discovery tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/raido/internal/apperr"
	"github.com/starford/raido/internal/query"
)

// Server wraps the MCP server with the discovery tools.
type Server struct {
	mcp    *server.MCPServer
	engine *query.Engine
}

// New creates a new MCP server with all discovery tools registered.
func New(engine *query.Engine) *Server {
	s := &Server{engine: engine}

	s.mcp = server.NewMCPServer(
		"Raido",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
	)

	s.mcp.AddTool(mcp.NewTool("get_resources",
		mcp.WithDescription("List the available dbt project resources. Each resource is one project "+
			"whose models can be queried; use its id as resource_id in the other tools."),
		mcp.WithString("filter", mcp.Description("Narrow results by resource id, name, or alias (e.g. 'ethereum' or 'eth')")),
		mcp.WithString("category", mcp.Description("Narrow results by category (e.g. 'evm', 'l1', 'svm')")),
		mcp.WithBoolean("show_details", mcp.Description("Include cache status and last refresh time")),
	), s.getResources)

	s.mcp.AddTool(mcp.NewTool("get_models",
		mcp.WithDescription("List dbt models filtered by schema, medallion level, or resource. "+
			"Level defaults to gold when neither schema nor level is given."),
		mcp.WithString("schema", mcp.Description("Exact schema name (e.g. 'core'). Takes precedence over level.")),
		mcp.WithString("level", mcp.Description("Medallion level: bronze, silver, or gold")),
		mcp.WithString("resource_id", mcp.Description("Resource id or alias; a single string or an array of up to 5 strings. "+
			"Omit to search every resource. Never pass null or a boolean.")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows to return (default 25, max 200)")),
		mcp.WithBoolean("show_details", mcp.Description("Include unique_id, materialization, tags, and path per model")),
	), s.getModels)

	s.mcp.AddTool(mcp.NewTool("get_model_details",
		mcp.WithDescription("Get one model's columns and metadata. Identify it by unique_id "+
			"(model.<project>.<name>), fqn (database.schema.table), model_name, or table_name."),
		mcp.WithString("unique_id", mcp.Description("Model unique id, e.g. model.ethereum_models.core__fact_blocks")),
		mcp.WithString("fqn", mcp.Description("Fully qualified name: database.schema.table")),
		mcp.WithString("model_name", mcp.Description("Model name to search for across resources")),
		mcp.WithString("table_name", mcp.Description("Physical table name to search for across resources")),
		mcp.WithString("resource_id", mcp.Description("Narrow name/table searches to these resources")),
		mcp.WithBoolean("show_details", mcp.Description("Include lineage, code, catalog metadata, and stats")),
	), s.getModelDetails)

	s.mcp.AddTool(mcp.NewTool("get_description",
		mcp.WithDescription("Get a named documentation block from one or more resources."),
		mcp.WithString("doc_name", mcp.Required(), mcp.Description("Documentation block name, e.g. 'overview'")),
		mcp.WithString("resource_id", mcp.Required(), mcp.Description("Resource id or alias; a single string or an array of up to 5 strings")),
	), s.getDescription)

	s.mcp.AddTool(mcp.NewTool("refresh_cache",
		mcp.WithDescription("Re-discover resources and refresh their artifact caches. "+
			"Fresh entries are skipped unless force is set."),
		mcp.WithString("resource_id", mcp.Description("Limit the refresh to these resources; omit for all")),
		mcp.WithBoolean("force", mcp.Description("Refetch even when the cache is still fresh")),
	), s.refreshCache)

	// Usage guide, as both a prompt and a readable resource.
	s.mcp.AddPrompt(mcp.NewPrompt("discovery_workflow",
		mcp.WithPromptDescription("How to explore dbt projects with the Raido tools."),
	), s.discoveryWorkflowPrompt)
	s.mcp.AddResource(
		mcp.NewResource("raido://usage", "Discovery Workflow",
			mcp.WithResourceDescription("Intended order and parameter rules for the discovery tools."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readUsageResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) getResources(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	result, err := s.engine.ListResources(stringArg(args, "filter"), stringArg(args, "category"), boolArg(args, "show_details"))
	if err != nil {
		return toolError(err, nil), nil
	}
	return mcp.NewToolResultText(renderResources(result)), nil
}

func (s *Server) getModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	result, err := s.engine.ListModels(ctx, query.ModelsParams{
		Schema:      stringArg(args, "schema"),
		Level:       stringArg(args, "level"),
		ResourceIDs: args["resource_id"],
		Limit:       intArg(args, "limit"),
		ShowDetails: boolArg(args, "show_details"),
	})
	if err != nil {
		return toolError(err, nil), nil
	}
	return mcp.NewToolResultText(renderModels(result)), nil
}

func (s *Server) getModelDetails(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	result, err := s.engine.GetModel(ctx, query.ModelParams{
		UniqueID:    stringArg(args, "unique_id"),
		FQN:         stringArg(args, "fqn"),
		ModelName:   stringArg(args, "model_name"),
		TableName:   stringArg(args, "table_name"),
		ResourceIDs: args["resource_id"],
		ShowDetails: boolArg(args, "show_details"),
	})
	if err != nil {
		return toolError(err, result.Matches), nil
	}
	return mcp.NewToolResultText(renderModelDetails(result.Model)), nil
}

func (s *Server) getDescription(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docName, err := req.RequireString("doc_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.engine.GetDescription(ctx, docName, req.GetArguments()["resource_id"])
	if err != nil {
		return toolError(err, nil), nil
	}
	return mcp.NewToolResultText(renderDescriptions(result)), nil
}

func (s *Server) refreshCache(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	result, err := s.engine.Refresh(ctx, args["resource_id"], boolArg(args, "force"))
	if err != nil {
		return toolError(err, nil), nil
	}
	return mcp.NewToolResultText(renderRefresh(result)), nil
}

func (s *Server) discoveryWorkflowPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return mcp.NewGetPromptResult("Raido discovery workflow", []mcp.PromptMessage{
		mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(UsageGuide)),
	}), nil
}

func (s *Server) readUsageResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      "raido://usage",
			MIMEType: "text/markdown",
			Text:     UsageGuide,
		},
	}, nil
}

// toolError renders an engine failure as a tool error, never a protocol
// fault. Ambiguity errors carry the candidate list so the caller can retry
// with a narrower request.
func toolError(err error, matches []query.ModelMatch) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrAmbiguous) && len(matches) > 0 {
		msg := err.Error() + "\n\nCandidates:\n"
		for _, m := range matches {
			msg += fmt.Sprintf("- %s (resource %s, %s.%s)\n", m.UniqueID, m.ResourceID, m.Database, m.Schema)
		}
		msg += "\nRetry with the unique_id of the intended model or narrow resource_id."
		return mcp.NewToolResultError(msg)
	}
	return mcp.NewToolResultError(err.Error())
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func boolArg(args map[string]any, key string) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return false
}

func intArg(args map[string]any, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
