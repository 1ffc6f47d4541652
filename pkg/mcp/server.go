package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	nursery "github.com/unowned-ai/nursery/pkg"
	"github.com/unowned-ai/nursery/pkg/diary"
	"github.com/unowned-ai/nursery/pkg/records"
)

// ToolNames lists the tools RegisterTools installs, in registration order.
var ToolNames = []string{
	"ping", "add_record", "get_record", "update_record", "delete_record", "list_records",
	"query_index", "query_date_range", "query_child_range", "daily_summary",
	"export_backup", "import_backup",
}

type NurseryMCPServer struct {
	mcpServer *server.MCPServer
	store     *records.Store
	diary     *diary.Diary
}

// NewNurseryMCPServer builds an MCP server over store. The store opens lazily
// on the first tool call.
func NewNurseryMCPServer(store *records.Store, d *diary.Diary) *NurseryMCPServer {
	s := server.NewMCPServer(
		"Nursery MCP Server",
		nursery.Version,
		server.WithResourceCapabilities(true, true),
		server.WithLogging(),
		server.WithRecovery(),
	)
	return &NurseryMCPServer{mcpServer: s, store: store, diary: d}
}

// RegisterTools installs every standard tool.
func (s *NurseryMCPServer) RegisterTools() {
	RegisterPingTool(s.mcpServer)
	RegisterAddRecordTool(s.mcpServer, s.store)
	RegisterGetRecordTool(s.mcpServer, s.store)
	RegisterUpdateRecordTool(s.mcpServer, s.store)
	RegisterDeleteRecordTool(s.mcpServer, s.store)
	RegisterListRecordsTool(s.mcpServer, s.store)
	RegisterQueryIndexTool(s.mcpServer, s.store)
	RegisterQueryDateRangeTool(s.mcpServer, s.store)
	RegisterQueryChildRangeTool(s.mcpServer, s.store)
	RegisterDailySummaryTool(s.mcpServer, s.diary)
	RegisterExportBackupTool(s.mcpServer, s.store)
	RegisterImportBackupTool(s.mcpServer, s.store)
}

// Start runs the stdio event loop. Make sure to register tools beforehand.
func (s *NurseryMCPServer) Start() error {
	return server.ServeStdio(s.mcpServer)
}

// MCPRawServer exposes the raw mcp-go server (useful for additional configuration).
func (s *NurseryMCPServer) MCPRawServer() *server.MCPServer {
	return s.mcpServer
}

// Close checkpoints and closes the store.
func (s *NurseryMCPServer) Close() error {
	return s.store.Close()
}
