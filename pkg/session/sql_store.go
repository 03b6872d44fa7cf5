package session

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
)

// SQLStore keeps sessions in one table of a relational database.
type SQLStore struct {
	db      *sql.DB
	owned   bool
	dialect Dialect
	table   table
	q       queries
	codec   Codec
	mode    SaveMode
	corrupt CorruptPolicy
	logger  *slog.Logger
}

// New builds a store from cfg and checks the connection with a ping.
func New(cfg Config) (*SQLStore, error) {
	cfg = cfg.withDefaults()

	tbl := cfg.table()
	if err := tbl.validate(); err != nil {
		return nil, err
	}

	db, owned, err := cfg.open()
	if err != nil {
		return nil, err
	}

	dialect, err := resolveDialect(cfg, db)
	if err != nil {
		if owned {
			db.Close()
		}
		return nil, err
	}

	if err := db.Ping(); err != nil {
		if owned {
			db.Close()
		}
		return nil, fmt.Errorf("session: cannot connect to DB: %w", err)
	}

	return &SQLStore{
		db:      db,
		owned:   owned,
		dialect: dialect,
		table:   tbl,
		q:       dialect.queries(tbl),
		codec:   cfg.Codec,
		mode:    cfg.SaveMode,
		corrupt: cfg.CorruptPolicy,
		logger:  cfg.Logger,
	}, nil
}

func resolveDialect(cfg Config, db *sql.DB) (Dialect, error) {
	if cfg.Dialect != "" {
		return ParseDialect(string(cfg.Dialect))
	}
	if cfg.Conn == nil {
		return ParseDialect(cfg.Driver)
	}
	return dialectOf(db)
}

// Connection exposes the cached handle, so an SQLStore is itself a
// ConnectionProvider.
func (s *SQLStore) Connection() *sql.DB { return s.db }

// Schema returns the CREATE TABLE statement for the configured table.
func (s *SQLStore) Schema() string { return s.dialect.schema(s.table) }

// EnsureSchema creates the session table when it does not exist.
func (s *SQLStore) EnsureSchema() error {
	if _, err := s.db.Exec(s.Schema()); err != nil {
		return &StoreError{Op: "create table", Err: err}
	}
	return nil
}

// Close releases the handle if the store opened it.
func (s *SQLStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) Load(id string) (Data, bool, error) {
	if err := validateID(id); err != nil {
		return nil, false, err
	}

	var raw sql.NullString
	err := s.db.QueryRow(s.q.load, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Op: "load", ID: id, Err: err}
	}
	if !raw.Valid {
		return Data{}, true, nil
	}

	data, err := s.codec.Decode(raw.String)
	if err != nil {
		return corrupted(s.logger, s.corrupt, id, err)
	}
	return data, true, nil
}

func (s *SQLStore) Save(id string, data Data) error {
	if err := validateID(id); err != nil {
		return err
	}
	exp, ok, err := expiresOf(data)
	if err != nil {
		return err
	}
	expires := sql.NullInt64{Int64: exp, Valid: ok}

	payload, err := s.codec.Encode(data)
	if err != nil {
		return fmt.Errorf("session: encode %q: %w", id, err)
	}

	switch s.mode {
	case SaveAtomic:
		if _, err := s.db.Exec(s.q.upsert, id, payload, expires); err != nil {
			return &StoreError{Op: "save", ID: id, Err: err}
		}
		return nil
	case SaveTransactional:
		return s.saveTx(id, payload, expires)
	default:
		return s.write(s.db, id, payload, expires)
	}
}

func (s *SQLStore) saveTx(id, payload string, expires sql.NullInt64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &StoreError{Op: "save", ID: id, Err: err}
	}
	if err := s.write(tx, id, payload, expires); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "save", ID: id, Err: err}
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *SQLStore) write(e execer, id, payload string, expires sql.NullInt64) error {
	var one int
	err := e.QueryRow(s.q.exists, id).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = e.Exec(s.q.insert, id, payload, expires)
	case err != nil:
		return &StoreError{Op: "save", ID: id, Err: err}
	default:
		_, err = e.Exec(s.q.update, payload, expires, id)
	}
	if err != nil {
		return &StoreError{Op: "save", ID: id, Err: err}
	}
	return nil
}

func (s *SQLStore) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if _, err := s.db.Exec(s.q.delete, id); err != nil {
		return &StoreError{Op: "delete", ID: id, Err: err}
	}
	return nil
}

// DeleteExpired removes every row whose expiry is before now. Rows without
// an expiry are kept.
func (s *SQLStore) DeleteExpired(now int64) error {
	res, err := s.db.Exec(s.q.deleteExpired, now)
	if err != nil {
		return &StoreError{Op: "delete expired", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("expired sessions removed", "table", s.table.name, "count", n)
	}
	return nil
}

func corrupted(logger *slog.Logger, policy CorruptPolicy, id string, err error) (Data, bool, error) {
	if policy == CorruptAsMissing {
		logger.Warn("discarding corrupt session", "id", id, "error", err)
		return nil, false, nil
	}
	return nil, false, &CorruptSessionError{ID: id, Err: err}
}
