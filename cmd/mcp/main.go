// matchstats MCP server.
// Exposes stat packing, fee and run history tools over MCP stdio transport.
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcptools "github.com/gateway-fm/matchstats/internal/mcp"
	"github.com/gateway-fm/matchstats/internal/storage"
)

func main() {
	s := server.NewMCPServer(
		"matchstats",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	// Run history tools need the run log; the pure tools work without it.
	var runs mcptools.RunReader
	if dbPath := os.Getenv("DATABASE_PATH"); dbPath != "" {
		store, err := storage.NewSQLiteStorage(dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "run log unavailable: %v\n", err)
		} else {
			defer store.Close()
			runs = store
		}
	}

	mcptools.RegisterTools(s, runs)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}
