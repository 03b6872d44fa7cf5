package session

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite3"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// ParseDialect maps a database/sql driver name to its dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "mysql":
		return DialectMySQL, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite3", "sqlite":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, driver)
	}
}

// dialectOf guesses the dialect from the driver behind an open handle.
func dialectOf(db *sql.DB) (Dialect, error) {
	name := fmt.Sprintf("%T", db.Driver())
	switch {
	case strings.Contains(name, "mysql."):
		return DialectMySQL, nil
	case strings.Contains(name, "pq."), strings.Contains(name, "stdlib."):
		return DialectPostgres, nil
	case strings.Contains(name, "sqlite3."):
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("%w: driver %s", ErrUnknownDialect, name)
	}
}

// table holds the trusted identifiers interpolated into statements.
type table struct {
	name    string
	id      string
	data    string
	expires string
}

func (t table) validate() error {
	for _, ident := range []string{t.name, t.id, t.data, t.expires} {
		if !identRe.MatchString(ident) {
			return fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
		}
	}
	return nil
}

type queries struct {
	load          string
	exists        string
	insert        string
	update        string
	upsert        string
	delete        string
	deleteExpired string
}

func (d Dialect) queries(t table) queries {
	return queries{
		load:          d.rebind(fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?", t.data, t.name, t.id)),
		exists:        d.rebind(fmt.Sprintf("SELECT 1 FROM %s WHERE %s = ?", t.name, t.id)),
		insert:        d.rebind(fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)", t.name, t.id, t.data, t.expires)),
		update:        d.rebind(fmt.Sprintf("UPDATE %s SET %s = ?, %s = ? WHERE %s = ?", t.name, t.data, t.expires, t.id)),
		upsert:        d.rebind(d.upsert(t)),
		delete:        d.rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", t.name, t.id)),
		deleteExpired: d.rebind(fmt.Sprintf("DELETE FROM %s WHERE %s < ?", t.name, t.expires)),
	}
}

func (d Dialect) upsert(t table) string {
	insert := fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)", t.name, t.id, t.data, t.expires)
	if d == DialectMySQL {
		return fmt.Sprintf("%s ON DUPLICATE KEY UPDATE %s = VALUES(%s), %s = VALUES(%s)",
			insert, t.data, t.data, t.expires, t.expires)
	}
	return fmt.Sprintf("%s ON CONFLICT (%s) DO UPDATE SET %s = excluded.%s, %s = excluded.%s",
		insert, t.id, t.data, t.data, t.expires, t.expires)
}

// rebind rewrites ? placeholders to $n for postgres.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// schema returns the CREATE TABLE statement for t. expires is 64 bit
// everywhere so far-future timestamps fit.
func (d Dialect) schema(t table) string {
	expiresType := "BIGINT"
	if d == DialectSQLite {
		expiresType = "INTEGER"
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	%s CHAR(40) NOT NULL PRIMARY KEY,
	%s TEXT,
	%s %s
)`, t.name, t.id, t.data, t.expires, expiresType)
}
