package database

import (
	"database/sql"
	"log"
	"time"

	"sessionstore/pkg/session"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// LoadDB opens the pool shared by the session store for the whole process.
// Any failure is fatal.
func LoadDB(driver, dsn, user, password string) *sql.DB {
	full, err := session.DSN(driver, dsn, user, password)
	if err != nil {
		log.Fatal(err)
	}
	db, err := sql.Open(driver, full)
	if err != nil {
		log.Fatal(err)
	}
	configurePool(db, driver)
	if err := db.Ping(); err != nil {
		log.Fatal("Cannot connect to DB:", err)
	}
	return db
}

func configurePool(db *sql.DB, driver string) {
	if d, err := session.ParseDialect(driver); err == nil && d == session.DialectSQLite {
		// sqlite serializes writers anyway
		db.SetMaxOpenConns(1)
		return
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
}
