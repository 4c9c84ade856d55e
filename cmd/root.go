package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "dbcharset",
	Short: "Convert a MySQL schema to a new character set and collation",
	Long: `dbcharset converts every table of a MySQL schema to a target character
set, collation and row format, then converts each text column in place.

All statements run on one connection inside one transaction. Use --dry-run
(or the plan command) to see every ALTER TABLE without changing anything.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(newLogger(cmd.ErrOrStderr(), viper.GetString("log_format"), viper.GetBool("verbose")))
	},
}

// Execute is called by main.main(). It adds all child commands to the root
// command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// envNames are the environment variables read for each key, in priority order.
var envNames = map[string][]string{
	"host":              {"DBCHARSET_HOST", "DB_HOST"},
	"port":              {"DBCHARSET_PORT", "DB_PORT"},
	"user":              {"DBCHARSET_USER", "DB_USER"},
	"password":          {"DBCHARSET_PASSWORD", "DB_PASSWORD"},
	"database":          {"DBCHARSET_DATABASE", "DB_NAME"},
	"charset":           {"DBCHARSET_CHARSET", "DB_CHARSET"},
	"collation":         {"DBCHARSET_COLLATION", "DB_COLLATION"},
	"row_format":        {"DBCHARSET_ROW_FORMAT", "DB_ROW_FORMAT"},
	"view_prefix":       {"DBCHARSET_VIEW_PREFIX", "VIEW_PREFIX"},
	"text_types":        {"DBCHARSET_TEXT_TYPES", "FIELD_TYPES_TO_UPDATE"},
	"dry_run":           {"DBCHARSET_DRY_RUN", "DRY_RUN"},
	"disable_fk_checks": {"DBCHARSET_DISABLE_FK_CHECKS", "DISABLE_FK_CHECKS"},
}

// configKeys maps the nested config file layout to the flat keys flags use.
var configKeys = map[string]string{
	"connections.default.host":     "host",
	"connections.default.port":     "port",
	"connections.default.user":     "user",
	"connections.default.password": "password",
	"connections.default.database": "database",
	"connections.default.socket":   "socket",
	"conversion.charset":           "charset",
	"conversion.collation":         "collation",
	"conversion.row_format":        "row_format",
	"conversion.view_prefix":       "view_prefix",
	"conversion.text_types":        "text_types",
	"conversion.disable_fk_checks": "disable_fk_checks",
	"defaults.format":              "format",
	"defaults.log_format":          "log_format",
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dbcharset/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load (ignored if missing)")
	rootCmd.PersistentFlags().StringP("host", "H", "127.0.0.1", "MySQL host")
	rootCmd.PersistentFlags().IntP("port", "P", 3306, "MySQL port")
	rootCmd.PersistentFlags().StringP("user", "u", "root", "MySQL user")
	rootCmd.PersistentFlags().StringP("password", "p", "", "MySQL password (will prompt if empty)")
	rootCmd.PersistentFlags().StringP("database", "d", "", "Target schema")
	rootCmd.PersistentFlags().StringP("socket", "S", "", "Unix socket path")
	rootCmd.PersistentFlags().String("tls", "", "TLS mode: disabled, preferred, required, skip-verify, custom")
	rootCmd.PersistentFlags().String("tls-ca", "", "CA certificate file for --tls=custom")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Output format: text, plain, json, markdown")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format on stderr: text, json")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	// Bind flags to viper
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("socket", rootCmd.PersistentFlags().Lookup("socket"))
	viper.BindPFlag("tls", rootCmd.PersistentFlags().Lookup("tls"))
	viper.BindPFlag("tls_ca", rootCmd.PersistentFlags().Lookup("tls-ca"))
	viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	// Real environment variables win over the dotenv file.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("could not load env file", "path", envFile, "error", err)
		}
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".dbcharset"))
		}
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DBCHARSET")
	viper.AutomaticEnv()
	for key, names := range envNames {
		viper.BindEnv(append([]string{key}, names...)...)
	}

	// Silently ignore missing config file; it's optional
	if err := viper.ReadInConfig(); err != nil {
		return
	}

	// Nested values become defaults of the flat keys so flags and the
	// environment still take precedence over the file.
	for nested, flat := range configKeys {
		if viper.IsSet(nested) {
			viper.SetDefault(flat, viper.Get(nested))
		}
	}
}

// newLogger builds the stderr logger. Anything but "json" gets text output.
func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
