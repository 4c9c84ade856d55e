package cmd

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:          "plan",
	Short:        "Show the statements a migration would run, without changing anything",
	SilenceUsage: true,
	Long: `Run the migration in dry-run mode and list every generated statement:
  - Operation classification (INPLACE, COPY)
  - Locking behavior and whether the table is rebuilt
  - Topology warnings (replication lag, Galera TOI, read-only server)

The transaction is always rolled back and no ALTER TABLE is sent.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd, true)
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
	addConversionFlags(planCmd)
}
