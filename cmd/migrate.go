package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/nethalo/dbcharset/internal/output"
	"github.com/nethalo/dbcharset/internal/topology"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var migrateCmd = &cobra.Command{
	Use:          "migrate",
	Aliases:      []string{"run"},
	Short:        "Convert every table of a schema to the target charset",
	SilenceUsage: true,
	Long: `Convert a schema in one transaction:
  - ALTER TABLE ... ROW_FORMAT for every base table
  - ALTER TABLE ... CONVERT TO CHARACTER SET for every base table
  - ALTER TABLE ... CHANGE for every text column

Views, and tables whose name starts with the view prefix, are skipped.
A failing column is recorded and the run continues; a failing table-level
statement skips the rest of that table. With --dry-run every statement is
logged and the transaction is rolled back.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigration(cmd, false)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	addConversionFlags(migrateCmd)
	migrateCmd.Flags().Bool("dry-run", false, "Log the statements and roll back instead of committing")
	migrateCmd.Flags().Bool("show-statements", false, "List every statement in the report, not only failures")
}

// addConversionFlags registers the flags shared by migrate and plan.
func addConversionFlags(cmd *cobra.Command) {
	defaults := migrate.DefaultConfig()
	cmd.Flags().String("charset", defaults.Charset, "Target character set")
	cmd.Flags().String("collation", defaults.Collation, "Target collation")
	cmd.Flags().String("row-format", defaults.RowFormat, "Target row format")
	cmd.Flags().String("view-prefix", defaults.ViewPrefix, "Tables with this name prefix are treated as views and skipped")
	cmd.Flags().String("field-types", strings.Join(defaults.TextTypes, ","), "Comma-separated column type prefixes to convert")
	cmd.Flags().Bool("disable-fk-checks", false, "Run with FOREIGN_KEY_CHECKS=0")
	cmd.Flags().Bool("skip-preflight", false, "Skip the server checks before the run")
}

// bindConversionFlags binds the flags of the running command. Binding
// happens at run time because migrate and plan share the keys.
func bindConversionFlags(cmd *cobra.Command) {
	bindings := map[string]string{
		"charset":           "charset",
		"collation":         "collation",
		"row_format":        "row-format",
		"view_prefix":       "view-prefix",
		"text_types":        "field-types",
		"disable_fk_checks": "disable-fk-checks",
		"dry_run":           "dry-run",
		"show_statements":   "show-statements",
		"skip_preflight":    "skip-preflight",
	}
	for key, name := range bindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			viper.BindPFlag(key, f)
		}
	}
}

// conversionConfig builds the run configuration from viper.
func conversionConfig() (migrate.Config, error) {
	cfg := migrate.DefaultConfig()
	if v := viper.GetString("charset"); v != "" {
		cfg.Charset = v
	}
	if v := viper.GetString("collation"); v != "" {
		cfg.Collation = v
	}
	if v := viper.GetString("row_format"); v != "" {
		cfg.RowFormat = v
	}
	if viper.IsSet("view_prefix") {
		cfg.ViewPrefix = viper.GetString("view_prefix")
	}
	if types := textTypes(); len(types) > 0 {
		cfg.TextTypes = types
	}
	cfg.DryRun = viper.GetBool("dry_run")
	cfg.DisableForeignKeyChecks = viper.GetBool("disable_fk_checks")

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// textTypes accepts both a YAML list and the comma-separated env form.
func textTypes() []string {
	switch v := viper.Get("text_types").(type) {
	case []interface{}, []string:
		return viper.GetStringSlice("text_types")
	case string:
		return migrate.ParseTextTypes(v)
	default:
		return nil
	}
}

func runMigration(cmd *cobra.Command, forceDryRun bool) error {
	bindConversionFlags(cmd)

	cfg, err := conversionConfig()
	if err != nil {
		return err
	}
	if forceDryRun {
		cfg.DryRun = true
	}

	connCfg, err := connectionConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	conn, err := openDB(ctx, connCfg)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer closeDB(conn)

	renderer := output.NewRenderer(viper.GetString("format"), cmd.OutOrStdout(), output.Options{
		ShowStatements: forceDryRun || viper.GetBool("show_statements"),
	})

	opts := []migrate.Option{migrate.WithLogger(logger)}
	if viper.GetBool("skip_preflight") {
		logger.Warn("preflight checks skipped")
	} else {
		pf, err := topology.Preflight(ctx, conn, topology.Target{
			Charset:   cfg.Charset,
			Collation: cfg.Collation,
			DryRun:    cfg.DryRun,
		})
		if err != nil {
			return fmt.Errorf("preflight failed: %w", err)
		}
		renderer.RenderWarnings(pf.Warnings)
		opts = append(opts, migrate.WithServer(pf.Info.Version, pf.Info))
	}

	session := mysql.NewSession(conn, logger)
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("closing session failed", "error", err)
		}
	}()

	runner, err := migrate.New(cfg, session, opts...)
	if err != nil {
		return err
	}

	report, err := runner.Run(ctx, connCfg.Database)
	if report != nil {
		renderer.RenderReport(report)
	}
	return err
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
