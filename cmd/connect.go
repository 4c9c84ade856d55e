package cmd

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/output"
	"github.com/nethalo/dbcharset/internal/topology"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// openDB is replaced in tests.
var openDB = mysql.Connect

var connectCmd = &cobra.Command{
	Use:          "connect",
	Short:        "Test connection and show server info",
	SilenceUsage: true, // Don't show usage on errors
	Long: `Connect to a MySQL instance, detect its version and topology (standalone,
replica, Galera/PXC, Group Replication) and show the server default
character set and collation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		connCfg, err := connectionConfig()
		if err != nil {
			return err
		}

		ctx := commandContext(cmd)
		conn, err := openDB(ctx, connCfg)
		if err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
		defer closeDB(conn)

		topo, err := topology.Detect(ctx, conn)
		if err != nil {
			return fmt.Errorf("topology detection failed: %w", err)
		}

		renderer := output.NewRenderer(viper.GetString("format"), cmd.OutOrStdout(), output.Options{})
		renderer.RenderTopology(connCfg, topo)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

// connectionConfig builds the connection settings from flags, environment
// and config file, prompting for the password when none is configured.
func connectionConfig() (mysql.ConnectionConfig, error) {
	connCfg := mysql.ConnectionConfig{
		Host:     viper.GetString("host"),
		Port:     viper.GetInt("port"),
		User:     viper.GetString("user"),
		Password: viper.GetString("password"),
		Database: viper.GetString("database"),
		Socket:   viper.GetString("socket"),
		TLSMode:  viper.GetString("tls"),
		TLSCA:    viper.GetString("tls_ca"),
	}

	if connCfg.Host == "" && connCfg.Socket == "" {
		connCfg.Host = "127.0.0.1"
	}
	if connCfg.Port == 0 {
		connCfg.Port = 3306
	}
	if connCfg.User == "" {
		connCfg.User = "root"
	}
	if connCfg.Database == "" {
		return connCfg, fmt.Errorf("database not specified: use -d or set DB_NAME")
	}

	if connCfg.Password == "" {
		connCfg.Password = mysql.PromptPassword()
	}
	return connCfg, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("closing connection pool failed", "error", err)
	}
}
