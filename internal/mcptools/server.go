package mcptools

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewServer creates an MCP server with the 4 pindiff tools registered:
// resolve_pins, generate_reports, aggregate_reports, and get_status.
func NewServer(svc *Service) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "pindiff",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_pins",
		Description: "Fetch and verify the selected registry pins into the local content cache. Returns the final status of each pin.",
	}, svc.ResolvePins)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "generate_reports",
		Description: "Resolve the selected pins and run the parser-comparison harness over each one, writing one report (or failure marker) per pin.",
	}, svc.GenerateReports)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "aggregate_reports",
		Description: "Fold the per-source reports already on disk into the single aggregate document. Fails if any selected pin has no artifact.",
	}, svc.AggregateReports)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_status",
		Description: "Report where every registry pin stands: reported, failed, or not yet run. Reads artifacts only, runs nothing.",
	}, svc.GetStatus)

	return server
}

// RunStdio runs the MCP server on stdio transport, blocking until stdin is
// closed or the context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}
