package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const versionTemplate = `dbcharset {{.Version}}

Supported servers:
  • MySQL 5.7, 8.0 and 8.4 LTS (including Percona Server)
  • MariaDB 10.x and later
  • Percona XtraDB Cluster / Galera
  • MySQL Group Replication

utf8mb4 requires MySQL 5.5.3 or later.
`

// Version is set at build time via ldflags
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print dbcharset version and supported servers",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "dbcharset %s (commit: %s, built: %s)\n\n", Version, CommitSHA, BuildDate)
		fmt.Fprintln(out, "Supported servers:")
		fmt.Fprintln(out, "  • MySQL 5.7, 8.0 and 8.4 LTS (including Percona Server)")
		fmt.Fprintln(out, "  • MariaDB 10.x and later")
		fmt.Fprintln(out, "  • Percona XtraDB Cluster / Galera")
		fmt.Fprintln(out, "  • MySQL Group Replication")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "utf8mb4 requires MySQL 5.5.3 or later.")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Enable the standard --version flag, matching the `version` subcommand output.
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, CommitSHA, BuildDate)
	rootCmd.SetVersionTemplate(versionTemplate)
}
