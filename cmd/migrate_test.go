package cmd

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/nethalo/dbcharset/internal/migrate"
	"github.com/nethalo/dbcharset/internal/mysql"
	"github.com/spf13/viper"
)

// useMockDB points openDB at a sqlmock connection for the duration of the test.
func useMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	orig := openDB
	openDB = func(ctx context.Context, cfg mysql.ConnectionConfig) (*sql.DB, error) {
		if cfg.Database != "shop" {
			t.Errorf("database = %q, want shop", cfg.Database)
		}
		return db, nil
	}
	t.Cleanup(func() { openDB = orig })
	return mock
}

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("database", "shop")
	viper.Set("password", "secret")
	viper.Set("format", "plain")
	viper.Set("skip_preflight", true)
}

func expectUsersDiscovery(mock sqlmock.Sqlmock) {
	mock.ExpectExec("SET autocommit = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SHOW FULL TABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Tables_in_shop", "Table_type"}).
			AddRow("users", "BASE TABLE").
			AddRow("v_orders", "VIEW"))
}

func usersColumns() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"Field", "Type", "Null", "Key", "Default", "Extra"}).
		AddRow("id", "int", "NO", "PRI", nil, "auto_increment").
		AddRow("name", "varchar(100)", "YES", "", nil, "")
}

func TestPlanCmd_DryRunThroughMock(t *testing.T) {
	resetViper(t)
	mock := useMockDB(t)

	// any ALTER reaching the server would be an unexpected call
	expectUsersDiscovery(mock)
	mock.ExpectQuery("SHOW COLUMNS FROM `users`").WillReturnRows(usersColumns())
	mock.ExpectRollback()
	mock.ExpectExec("SET autocommit = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	out := &bytes.Buffer{}
	planCmd.SetOut(out)
	defer planCmd.SetOut(nil)

	if err := planCmd.RunE(planCmd, nil); err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}

	result := out.String()
	for _, want := range []string{
		"Mode: DRY-RUN",
		"Tables processed: 1",
		"Tables skipped (views): 1",
		"Fields updated: 1",
		"[dry-run] ALTER TABLE `users` ROW_FORMAT=Dynamic;",
		"[dry-run] ALTER TABLE `users` CHANGE `name` `name` varchar(100) CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci;",
		"Result: rolled back (dry run)",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("output missing %q\n%s", want, result)
		}
	}
}

func TestMigrateCmd_LiveThroughMock(t *testing.T) {
	resetViper(t)
	viper.Set("charset", "utf8mb4")
	viper.Set("collation", "utf8mb4_unicode_ci")
	mock := useMockDB(t)

	expectUsersDiscovery(mock)
	mock.ExpectExec("ALTER TABLE `users` ROW_FORMAT=Dynamic").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ALTER TABLE `users` CONVERT TO CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SHOW COLUMNS FROM `users`").WillReturnRows(usersColumns())
	mock.ExpectExec("ALTER TABLE `users` CHANGE `name` `name` varchar(100) CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci").
		WillReturnError(errors.New("Data too long"))
	mock.ExpectCommit()
	mock.ExpectExec("SET autocommit = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	out := &bytes.Buffer{}
	migrateCmd.SetOut(out)
	defer migrateCmd.SetOut(nil)

	// column failures are reported, not fatal
	if err := migrateCmd.RunE(migrateCmd, nil); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}

	result := out.String()
	for _, want := range []string{"Mode: LIVE", "Fields failed: 1", "Data too long", "Result: committed"} {
		if !strings.Contains(result, want) {
			t.Errorf("output missing %q\n%s", want, result)
		}
	}
}

func TestMigrateCmd_FatalError(t *testing.T) {
	resetViper(t)
	mock := useMockDB(t)

	mock.ExpectExec("SET autocommit = 0").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	mock.ExpectQuery("SHOW FULL TABLES").WillReturnError(errors.New("access denied"))
	mock.ExpectRollback()
	mock.ExpectExec("SET autocommit = 1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectClose()

	out := &bytes.Buffer{}
	migrateCmd.SetOut(out)
	defer migrateCmd.SetOut(nil)

	err := migrateCmd.RunE(migrateCmd, nil)
	if !errors.Is(err, migrate.ErrListTables) {
		t.Fatalf("err = %v, want ErrListTables", err)
	}
	if out.Len() != 0 {
		t.Errorf("no report expected for a fatal run, got:\n%s", out.String())
	}
}

func TestMigrateCmd_InvalidConfigFailsBeforeConnecting(t *testing.T) {
	resetViper(t)
	viper.Set("row_format", "SIDEWAYS")

	orig := openDB
	openDB = func(ctx context.Context, cfg mysql.ConnectionConfig) (*sql.DB, error) {
		t.Fatal("should not connect with an invalid config")
		return nil, nil
	}
	defer func() { openDB = orig }()

	err := migrateCmd.RunE(migrateCmd, nil)
	if !errors.Is(err, migrate.ErrInvalidConfig) {
		t.Errorf("err = %v, want ErrInvalidConfig", err)
	}
}

func TestConversionConfig(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
		check func(t *testing.T, cfg migrate.Config)
	}{
		{
			name:  "defaults",
			setup: func() {},
			check: func(t *testing.T, cfg migrate.Config) {
				def := migrate.DefaultConfig()
				if cfg.Charset != def.Charset || cfg.Collation != def.Collation || cfg.RowFormat != def.RowFormat {
					t.Errorf("cfg = %+v, want defaults", cfg)
				}
				if cfg.ViewPrefix != "v_" || len(cfg.TextTypes) != len(def.TextTypes) {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
		{
			name: "comma separated types",
			setup: func() {
				viper.Set("text_types", "varchar, text")
			},
			check: func(t *testing.T, cfg migrate.Config) {
				if strings.Join(cfg.TextTypes, "|") != "varchar|text" {
					t.Errorf("TextTypes = %v", cfg.TextTypes)
				}
			},
		},
		{
			name: "yaml list types",
			setup: func() {
				viper.Set("text_types", []interface{}{"char", "json"})
			},
			check: func(t *testing.T, cfg migrate.Config) {
				if strings.Join(cfg.TextTypes, "|") != "char|json" {
					t.Errorf("TextTypes = %v", cfg.TextTypes)
				}
			},
		},
		{
			name: "empty view prefix disables prefix matching",
			setup: func() {
				viper.Set("view_prefix", "")
			},
			check: func(t *testing.T, cfg migrate.Config) {
				if cfg.ViewPrefix != "" {
					t.Errorf("ViewPrefix = %q", cfg.ViewPrefix)
				}
			},
		},
		{
			name: "flags",
			setup: func() {
				viper.Set("dry_run", true)
				viper.Set("disable_fk_checks", "true")
			},
			check: func(t *testing.T, cfg migrate.Config) {
				if !cfg.DryRun || !cfg.DisableForeignKeyChecks {
					t.Errorf("cfg = %+v", cfg)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			defer viper.Reset()
			tt.setup()

			cfg, err := conversionConfig()
			if err != nil {
				t.Fatalf("conversionConfig: %v", err)
			}
			tt.check(t, cfg)
		})
	}
}

func TestMigrateCmd_Structure(t *testing.T) {
	for _, name := range []string{"charset", "collation", "row-format", "view-prefix", "field-types", "disable-fk-checks", "skip-preflight", "dry-run", "show-statements"} {
		if migrateCmd.Flags().Lookup(name) == nil {
			t.Errorf("migrate should have --%s", name)
		}
	}
	if planCmd.Flags().Lookup("dry-run") != nil {
		t.Error("plan is always a dry run and should not take --dry-run")
	}
	if len(migrateCmd.Aliases) == 0 || migrateCmd.Aliases[0] != "run" {
		t.Errorf("aliases = %v", migrateCmd.Aliases)
	}
}

func TestMigrateCmd_HelpMatchesGeneratedSQL(t *testing.T) {
	stmts := migrate.NewPlanner(migrate.DefaultConfig(), nil).TableStatements("users")
	if !strings.Contains(migrateCmd.Long, "ROW_FORMAT") || !strings.Contains(stmts[0].SQL, "ROW_FORMAT") {
		t.Errorf("help and row format statement disagree: %q", stmts[0].SQL)
	}
	if !strings.Contains(migrateCmd.Long, "ALTER TABLE ... CHANGE for every text column") {
		t.Errorf("help should describe the per-column CHANGE:\n%s", migrateCmd.Long)
	}
	if strings.Contains(migrateCmd.Long, "MODIFY") {
		t.Error("columns are converted with CHANGE, not MODIFY")
	}
}
