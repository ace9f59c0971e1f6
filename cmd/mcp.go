package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/quarryhq/quarry/internal/app"
	"github.com/quarryhq/quarry/internal/config"
	"github.com/quarryhq/quarry/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Serve the retrieval tools over the Model Context Protocol on
stdin/stdout until interrupted. All logging goes to stderr; stdout carries
only protocol messages.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer a.Close()

	server, err := mcp.NewServer(mcp.Config{
		Name:        "quarry",
		Version:     Version,
		Objects:     a.ObjectStore,
		Relational:  a.Relational,
		Vector:      a.Vector,
		MaxBuckets:  cfg.ObjectStore.MaxBuckets,
		VectorTable: cfg.Vector.Table,
		Logger:      a.Logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	a.Logger.Info("MCP server ready", "name", "quarry", "version", Version, "transport", "stdio")

	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	a.Logger.Info("MCP server shut down gracefully")
	return nil
}
