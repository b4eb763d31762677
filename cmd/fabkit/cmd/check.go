package cmd

import (
	"fmt"

	"github.com/fabric-powerbi/fabkit/internal/ui"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which prerequisites are installed",
	Long: `Probe Python, uv, the Azure CLI and its login, the ODBC driver and
the Power BI Modeling MCP extension, and print one PASS or FAIL line for
each. Nothing is installed or written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := newDeps(cmd, nil)
		if err != nil {
			return err
		}

		diags := d.orch.CheckPrereqs(cmd.Context())
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderChecks(diags, outputWidth()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
