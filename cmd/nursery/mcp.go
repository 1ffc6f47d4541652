package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/unowned-ai/nursery/pkg/mcp"
)

func newMCPCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the nursery MCP server (stdio)",
		Long: `Start a Model Context Protocol (MCP) server that exposes the record store,
daily summaries and backups as MCP tools via STDIO.

If the --overview flag is provided, an additional tool named 'get_overview'
will be registered. It is meant to be called by an LLM at the start of an
interaction to learn which children exist and how their day is going.

The --db flag is optional. If not provided, $NURSERY_DB or a system-specific default location will be used:
- Windows: %USERPROFILE%\AppData\Roaming\nursery\nursery.db
- macOS: ~/Library/Application Support/nursery/nursery.db
- Linux: ~/.local/share/nursery/nursery.db

Example:
  nursery mcp
  nursery mcp --overview --db /path/to/nursery.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			overview, _ := cmd.Flags().GetBool("overview")

			store, d, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}

			srv := mcp.NewNurseryMCPServer(store, d)
			defer srv.Close()
			srv.RegisterTools()

			tools := append([]string{}, mcp.ToolNames...)
			if overview {
				mcp.RegisterOverviewTool(srv.MCPRawServer(), d)
				tools = append(tools, "get_overview")
			}

			// Log to stderr so we don't contaminate the JSON-RPC stream on stdout.
			stderr := cmd.ErrOrStderr()
			fmt.Fprintf(stderr, "Nursery MCP server started. DB: %s (WAL: %t, Sync: %s)\n", store.Name(), opts.walMode, opts.syncMode)
			fmt.Fprintf(stderr, "Available tools: %s\n", strings.Join(tools, ", "))
			fmt.Fprintln(stderr, "Listening for MCP JSON-RPC on STDIN/STDOUT ... (Ctrl+C to quit)")

			return srv.Start()
		},
	}
	cmd.Flags().Bool("overview", false, "Register the 'get_overview' tool for LLM initialization")
	return cmd
}
