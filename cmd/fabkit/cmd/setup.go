package cmd

import (
	"fmt"

	"github.com/fabric-powerbi/fabkit/internal/core"
	"github.com/fabric-powerbi/fabkit/internal/ui"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Install the MCP servers and configure a workspace",
	Long: `Check prerequisites, install the bundled MCP servers, copy the
knowledge base, skills and agents into the workspace, and write .mcp.json.

A plain run always executes and refreshes every copied file. With --auto
the run is skipped when setup already completed for this version, newer
local copies of workspace files are kept, and warnings are only logged.

Individual failures never stop the run. Missing tools are reported with
install instructions and the servers that depend on them are left out.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDir, err := resolveTargetDir(cmd)
		if err != nil {
			return err
		}
		auto, _ := cmd.Flags().GetBool("auto")

		d, err := newDeps(cmd, newConsoleReporter(cmd.OutOrStdout()))
		if err != nil {
			return err
		}

		sum, err := d.orch.Run(cmd.Context(), core.RunOptions{
			WorkspaceDir: targetDir,
			Manual:       !auto,
		})
		if err != nil {
			return fmt.Errorf("running setup: %w", err)
		}

		fmt.Fprint(cmd.OutOrStdout(), ui.RenderSummary(sum, outputWidth()))
		return nil
	},
}

func init() {
	setupCmd.Flags().StringP("dir", "d", "", "Workspace directory (default: current directory)")
	setupCmd.Flags().Bool("auto", false, "Run only if setup has not completed for this version")

	rootCmd.AddCommand(setupCmd)
}
