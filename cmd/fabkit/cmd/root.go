package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "fabkit",
	Short: "Set up Fabric & Power BI MCP servers for a workspace",
	Long: `fabkit provisions the Fabric & Power BI toolkit for a workspace.

It checks for Python, uv, the Azure CLI and the ODBC driver, installs the
bundled MCP servers under ~/.fabric-mcp, copies the knowledge base and
agents into the workspace, and writes .mcp.json so Claude Code can launch
the servers.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fabkit %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Config file (default ~/.fabric-mcp/config.toml)")
	pf.String("install-root", "", "Directory for globally installed MCP servers (default ~/.fabric-mcp)")
	pf.String("bundle-dir", "", "Directory holding the bundled sources (default <executable dir>/bundled)")
	pf.String("extensions-dir", "", "Editor extensions directory searched for Power BI Modeling MCP")
	pf.String("settings-path", "", "Claude Code user settings file")
	pf.String("log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
