package root

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crucial707/asset-audit/cmd/cli/audits"
	"github.com/crucial707/asset-audit/cmd/cli/token"
)

// Exported RootCmd
var RootCmd = &cobra.Command{
	Use:           "auditctl",
	Short:         "Inventory audit CLI",
	Long:          "Command line interface for running physical inventory audits against the audit API.\nSet AUDIT_API_URL to point at the server.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	audits.InitAudits(RootCmd)
	token.InitToken(RootCmd)
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
