package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage dbcharset configuration",
}

var configInitCmd = &cobra.Command{
	Use:          "init",
	Short:        "Create config file interactively",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		configDir := filepath.Join(home, ".dbcharset")
		configPath := filepath.Join(configDir, "config.yaml")

		out := cmd.OutOrStdout()
		reader := bufio.NewReader(cmd.InOrStdin())

		// Check if config already exists
		if _, err := os.Stat(configPath); err == nil {
			fmt.Fprintf(out, "Config file already exists at %s\n", configPath)
			if strings.ToLower(ask(out, reader, "Overwrite? [y/N]: ", "n")) != "y" {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		if err := os.MkdirAll(configDir, 0700); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		defaults := migrate.DefaultConfig()

		fmt.Fprintln(out, "dbcharset configuration setup")
		fmt.Fprintln(out, "─────────────────────────────")
		fmt.Fprintln(out)

		host := ask(out, reader, "MySQL host [127.0.0.1]: ", "127.0.0.1")
		port := ask(out, reader, "MySQL port [3306]: ", "3306")
		user := ask(out, reader, "MySQL user [root]: ", "root")
		database := ask(out, reader, "Default schema (optional): ", "")
		charset := ask(out, reader, fmt.Sprintf("Target character set [%s]: ", defaults.Charset), defaults.Charset)
		collation := ask(out, reader, fmt.Sprintf("Target collation [%s]: ", defaults.Collation), defaults.Collation)
		format := ask(out, reader, "Default output format [text]: ", "text")

		var config strings.Builder
		config.WriteString("# dbcharset configuration\n\n")

		config.WriteString("connections:\n")
		config.WriteString("  default:\n")
		config.WriteString(fmt.Sprintf("    host: %s\n", host))
		config.WriteString(fmt.Sprintf("    port: %s\n", port))
		config.WriteString(fmt.Sprintf("    user: %s\n", user))
		config.WriteString("    # password: omitted for security, will prompt\n")
		if database != "" {
			config.WriteString(fmt.Sprintf("    database: %s\n", database))
		}

		config.WriteString("\nconversion:\n")
		config.WriteString(fmt.Sprintf("  charset: %s\n", charset))
		config.WriteString(fmt.Sprintf("  collation: %s\n", collation))
		config.WriteString(fmt.Sprintf("  row_format: %s\n", defaults.RowFormat))
		config.WriteString(fmt.Sprintf("  view_prefix: %s\n", defaults.ViewPrefix))
		config.WriteString("  text_types:\n")
		for _, t := range defaults.TextTypes {
			config.WriteString(fmt.Sprintf("    - %s\n", t))
		}

		config.WriteString("\ndefaults:\n")
		config.WriteString(fmt.Sprintf("  format: %s\n", format))

		if err := os.WriteFile(configPath, []byte(config.String()), 0600); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Fprintf(out, "\n✅ Config written to %s\n", configPath)

		if user != "root" {
			fmt.Fprintln(out, "\nThe migration user needs ALTER on the target schema:")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "  CREATE USER '%s'@'%%' IDENTIFIED BY '<password>';\n", user)
			if database != "" {
				fmt.Fprintf(out, "  GRANT SELECT, ALTER ON `%s`.* TO '%s'@'%%';\n", database, user)
			} else {
				fmt.Fprintf(out, "  GRANT SELECT, ALTER ON `<schema>`.* TO '%s'@'%%';\n", user)
			}
			fmt.Fprintf(out, "  GRANT PROCESS, REPLICATION CLIENT ON *.* TO '%s'@'%%';\n", user)
			fmt.Fprintln(out)
		}

		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		configFile := viper.ConfigFileUsed()
		if configFile == "" {
			fmt.Fprintln(out, "No config file found.")
			fmt.Fprintln(out, "Run 'dbcharset config init' to create one.")
			return nil
		}

		fmt.Fprintf(out, "Config file: %s\n\n", configFile)

		data, err := os.ReadFile(configFile)
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		fmt.Fprintln(out, string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

// ask prints prompt and returns the trimmed answer, or def when it is empty.
func ask(out io.Writer, reader *bufio.Reader, prompt, def string) string {
	fmt.Fprint(out, prompt)
	answer, _ := reader.ReadString('\n')
	if answer = strings.TrimSpace(answer); answer != "" {
		return answer
	}
	return def
}
