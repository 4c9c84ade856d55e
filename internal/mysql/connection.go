package mysql

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"syscall"

	mysqldriver "github.com/go-sql-driver/mysql"
	"golang.org/x/term"
)

// customTLSName is the name the custom CA config is registered under in the driver.
const customTLSName = "dbcharset-custom"

// ConnectionConfig holds MySQL connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Socket   string
	TLSMode  string // "", "disabled", "preferred", "required", "skip-verify", "custom"
	TLSCA    string // path to CA certificate file (required when TLSMode == "custom")
}

// Address returns host:port, or the socket path when a socket is configured.
func (c ConnectionConfig) Address() string {
	if c.Socket != "" {
		return c.Socket
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Connect opens a connection pool for the target schema and verifies it with a ping.
func Connect(ctx context.Context, cfg ConnectionConfig) (*sql.DB, error) {
	if cfg.Database == "" {
		return nil, errors.New("database not specified")
	}

	// Register custom TLS config before building DSN
	if cfg.TLSMode == "custom" {
		if cfg.TLSCA == "" {
			return nil, fmt.Errorf("--tls-ca is required when --tls=custom")
		}
		if err := registerCustomTLS(cfg.TLSCA); err != nil {
			return nil, fmt.Errorf("TLS setup failed: %w", err)
		}
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	// One connection carries the migration transaction, the other serves preflight reads.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	return db, nil
}

// registerCustomTLS reads a CA certificate PEM file and registers it as a named TLS config.
func registerCustomTLS(caPath string) error {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("reading CA certificate %q: %w", caPath, err)
	}

	rootCAs := x509.NewCertPool()
	if !rootCAs.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no valid certificates found in %q", caPath)
	}

	return mysqldriver.RegisterTLSConfig(customTLSName, &tls.Config{
		RootCAs: rootCAs,
	})
}

// buildDSN renders the driver DSN. The driver's Config handles quoting of
// credentials; interpolateParams stays off so SHOW and ALTER statements are
// sent verbatim.
func buildDSN(cfg ConnectionConfig) (string, error) {
	dc := mysqldriver.NewConfig()
	dc.User = cfg.User
	dc.Passwd = cfg.Password
	dc.DBName = cfg.Database
	dc.ParseTime = true

	if cfg.Socket != "" {
		dc.Net, dc.Addr = "unix", cfg.Socket
	} else {
		dc.Net, dc.Addr = "tcp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	switch cfg.TLSMode {
	case "", "disabled":
	case "preferred":
		dc.TLSConfig = "preferred"
	case "required":
		dc.TLSConfig = "true"
	case "skip-verify":
		dc.TLSConfig = "skip-verify"
	case "custom":
		dc.TLSConfig = customTLSName
	default:
		return "", fmt.Errorf("invalid TLS mode %q: valid values are disabled, preferred, required, skip-verify, custom", cfg.TLSMode)
	}

	return dc.FormatDSN(), nil
}

// PromptPassword reads a password from the terminal without echoing.
func PromptPassword() string {
	fmt.Fprint(os.Stderr, "Enter password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return string(password)
}

// ErrorCode returns the MySQL server error number carried by err, or 0.
func ErrorCode(err error) uint16 {
	var myErr *mysqldriver.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number
	}
	return 0
}
