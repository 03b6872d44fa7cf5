package session

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

const (
	DefaultTable         = "sessions"
	DefaultIDColumn      = "id"
	DefaultDataColumn    = "session_data"
	DefaultExpiresColumn = "expires"
)

// ConnectionProvider is implemented by anything that can hand out an open
// database handle, e.g. an adapter around an ORM's connection.
type ConnectionProvider interface {
	Connection() *sql.DB
}

type dbHandle struct {
	db *sql.DB
}

func (h dbHandle) Connection() *sql.DB { return h.db }

// DB adapts a bare *sql.DB to ConnectionProvider.
func DB(db *sql.DB) ConnectionProvider {
	return dbHandle{db: db}
}

// SaveMode selects how Save writes a row.
type SaveMode int

const (
	// SaveCheckThenAct looks the id up, then issues UPDATE or INSERT.
	// Two concurrent first saves of one id can fail with a duplicate key.
	SaveCheckThenAct SaveMode = iota
	// SaveTransactional runs the lookup and the write in one transaction.
	SaveTransactional
	// SaveAtomic issues a single dialect specific upsert statement.
	SaveAtomic
)

func ParseSaveMode(s string) (SaveMode, error) {
	switch strings.ToLower(s) {
	case "", "check":
		return SaveCheckThenAct, nil
	case "tx", "transaction":
		return SaveTransactional, nil
	case "atomic", "upsert":
		return SaveAtomic, nil
	default:
		return 0, fmt.Errorf("session: unknown save mode %q", s)
	}
}

// CorruptPolicy decides what Load does with an undecodable payload.
type CorruptPolicy int

const (
	// CorruptFail returns a *CorruptSessionError.
	CorruptFail CorruptPolicy = iota
	// CorruptAsMissing logs a warning and reports the session as not found.
	CorruptAsMissing
)

func ParseCorruptPolicy(s string) (CorruptPolicy, error) {
	switch strings.ToLower(s) {
	case "", "fail":
		return CorruptFail, nil
	case "missing":
		return CorruptAsMissing, nil
	default:
		return 0, fmt.Errorf("session: unknown corrupt policy %q", s)
	}
}

// Config configures an SQLStore.
//
// The connection is resolved in a fixed order: Conn when set, otherwise
// Driver and DSN with User and Password merged in. Setting neither is an
// error.
type Config struct {
	Table         string
	IDColumn      string
	DataColumn    string
	ExpiresColumn string

	Conn ConnectionProvider

	Driver   string
	DSN      string
	User     string
	Password string

	// Dialect overrides the dialect derived from Driver or from Conn's driver.
	Dialect Dialect

	Codec         Codec
	SaveMode      SaveMode
	CorruptPolicy CorruptPolicy
	Logger        *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.IDColumn == "" {
		c.IDColumn = DefaultIDColumn
	}
	if c.DataColumn == "" {
		c.DataColumn = DefaultDataColumn
	}
	if c.ExpiresColumn == "" {
		c.ExpiresColumn = DefaultExpiresColumn
	}
	if c.Codec == nil {
		c.Codec = GobCodec{}
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

func (c Config) table() table {
	return table{
		name:    c.Table,
		id:      c.IDColumn,
		data:    c.DataColumn,
		expires: c.ExpiresColumn,
	}
}

// open returns the handle to use and whether the store owns it.
func (c Config) open() (*sql.DB, bool, error) {
	if c.Conn != nil {
		db := c.Conn.Connection()
		if db == nil {
			return nil, false, ErrNoConnection
		}
		return db, false, nil
	}
	if c.DSN == "" {
		return nil, false, ErrNoConnection
	}
	if c.Driver == "" {
		return nil, false, fmt.Errorf("%w: driver is required with a DSN", ErrNoConnection)
	}
	dsn, err := DSN(c.Driver, c.DSN, c.User, c.Password)
	if err != nil {
		return nil, false, err
	}
	db, err := sql.Open(c.Driver, dsn)
	if err != nil {
		return nil, false, fmt.Errorf("session: open %s: %w", c.Driver, err)
	}
	return db, true, nil
}

// DSN merges user and password into dsn for the given driver. Empty
// credentials leave the DSN untouched.
func DSN(driver, dsn, user, password string) (string, error) {
	if user == "" && password == "" {
		return dsn, nil
	}
	d, err := ParseDialect(driver)
	if err != nil {
		return "", err
	}
	switch d {
	case DialectMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("session: parse mysql dsn: %w", err)
		}
		if user != "" {
			cfg.User = user
		}
		if password != "" {
			cfg.Passwd = password
		}
		return cfg.FormatDSN(), nil
	case DialectPostgres:
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			converted, err := pq.ParseURL(dsn)
			if err != nil {
				return "", fmt.Errorf("session: parse postgres url: %w", err)
			}
			dsn = converted
		}
		parts := []string{dsn}
		if user != "" {
			parts = append(parts, "user="+pqQuote(user))
		}
		if password != "" {
			parts = append(parts, "password="+pqQuote(password))
		}
		return strings.TrimSpace(strings.Join(parts, " ")), nil
	default:
		// sqlite3 has no credentials.
		return dsn, nil
	}
}

func pqQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
