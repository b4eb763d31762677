package cmd

import (
	"fmt"

	"github.com/fabric-powerbi/fabkit/internal/ui"
	"github.com/spf13/cobra"
)

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "Rebuild .mcp.json from what is already installed",
	Long: `Rewrite the fabkit-managed entries of .mcp.json based on the servers
currently installed under the install root and the Power BI Modeling MCP
extension, without installing anything. Other entries are kept.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDir, err := resolveTargetDir(cmd)
		if err != nil {
			return err
		}

		d, err := newDeps(cmd, nil)
		if err != nil {
			return err
		}

		sum, err := d.orch.Regenerate(targetDir)
		if err != nil {
			return fmt.Errorf("regenerating .mcp.json: %w", err)
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderRegenerate(sum))
		return nil
	},
}

func init() {
	regenerateCmd.Flags().StringP("dir", "d", "", "Workspace directory (default: current directory)")

	rootCmd.AddCommand(regenerateCmd)
}
