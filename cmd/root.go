// Package cmd wires the quarry CLI: the MCP server, the upload workflow,
// database migrations, and version reporting.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Retrieval tools for conversational agents",
	Long: `Quarry serves object-store, relational, and vector-search retrieval
tools over the Model Context Protocol, and ships the matching upload
workflow for keeping an object store in sync with a local folder.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}
