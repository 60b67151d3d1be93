package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	migrate "github.com/rubenv/sql-migrate"

	"github.com/cashier-go/cfsign/server/config"
	_ "github.com/cashier-go/cfsign/server/store/sqlite3"
)

var _ URLStorer = (*sqlStore)(nil)

func connError(err error) error {
	return fmt.Errorf("unable to connect to database: %w", err)
}

//go:embed migrations/mysql/*.sql migrations/sqlite3/*.sql
var migrationFS embed.FS

// sqlStore is an sql-based URLStorer
type sqlStore struct {
	conn *sqlx.DB

	get         *sqlx.Stmt
	set         *sqlx.Stmt
	listAll     *sqlx.Stmt
	listCurrent *sqlx.Stmt
}

// newSQLStore returns a *sql.DB URLStorer.
func newSQLStore(c config.Database) (*sqlStore, error) {
	var driver string
	var dsn string
	switch c.Type {
	case "mysql":
		driver = "mysql"
		address := c.Address
		_, _, err := net.SplitHostPort(address)
		if err != nil {
			address += ":3306"
		}
		m := mysql.NewConfig()
		m.User = c.Username
		m.Passwd = c.Password
		m.Addr = address
		m.Net = "tcp"
		m.DBName = c.DBName
		if m.DBName == "" {
			m.DBName = "cfsign"
		}
		m.ParseTime = true
		m.Loc = time.UTC
		dsn = m.FormatDSN()
	case "sqlite":
		driver = "sqlite3"
		dsn = c.Filename
	default:
		return nil, fmt.Errorf("sqlStore: unsupported database type %q", c.Type)
	}

	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlStore: could not get a connection: %w", err)
	}
	if driver == "sqlite3" {
		// A single writer avoids SQLITE_BUSY, and keeps ":memory:" databases
		// on one connection.
		conn.SetMaxOpenConns(1)
	}
	if err = autoMigrate(driver, conn); err != nil {
		return nil, fmt.Errorf("sqlStore: could not update schema: %w", err)
	}

	db := &sqlStore{
		conn: conn,
	}

	if db.set, err = conn.Preparex("INSERT INTO issued_urls (id, path, resource, key_pair_id, policy, created_at, expires_at, message) VALUES (?, ?, ?, ?, ?, ?, ?, ?)"); err != nil {
		return nil, fmt.Errorf("sqlStore: prepare set: %w", err)
	}
	if db.get, err = conn.Preparex("SELECT * FROM issued_urls WHERE id = ?"); err != nil {
		return nil, fmt.Errorf("sqlStore: prepare get: %w", err)
	}
	if db.listAll, err = conn.Preparex("SELECT * FROM issued_urls ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("sqlStore: prepare listAll: %w", err)
	}
	if db.listCurrent, err = conn.Preparex("SELECT * FROM issued_urls WHERE expires_at >= ? ORDER BY created_at"); err != nil {
		return nil, fmt.Errorf("sqlStore: prepare listCurrent: %w", err)
	}
	return db, nil
}

func autoMigrate(driver string, conn *sqlx.DB) error {
	log.Print("Executing any pending schema migrations")
	migrate.SetTable("schema_migrations")
	srcs := &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrationFS,
		Root:       "migrations/" + driver,
	}
	n, err := migrate.Exec(conn.DB, driver, srcs, migrate.Up)
	log.Printf("Executed %d migrations", n)
	if err != nil {
		return fmt.Errorf("errors were found running migrations: %w", err)
	}
	return nil
}

// Get a single *URLRecord
func (db *sqlStore) Get(id string) (*URLRecord, error) {
	if err := db.conn.Ping(); err != nil {
		return nil, connError(err)
	}
	r := &URLRecord{}
	if err := db.get.Get(r, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return r, nil
}

// SetRecord records a *URLRecord
func (db *sqlStore) SetRecord(rec *URLRecord) error {
	if err := db.conn.Ping(); err != nil {
		return connError(err)
	}
	_, err := db.set.Exec(rec.ID, rec.Path, rec.Resource, rec.KeyPairID, rec.Policy, rec.CreatedAt.UTC(), rec.Expires.UTC(), rec.Message)
	return err
}

// List returns all recorded URLs.
// By default only unexpired URLs are returned.
func (db *sqlStore) List(includeExpired bool) ([]*URLRecord, error) {
	if err := db.conn.Ping(); err != nil {
		return nil, connError(err)
	}
	recs := []*URLRecord{}
	if includeExpired {
		if err := db.listAll.Select(&recs); err != nil {
			return nil, err
		}
	} else {
		if err := db.listCurrent.Select(&recs, time.Now().UTC()); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Close the connection to the database
func (db *sqlStore) Close() error {
	return db.conn.Close()
}
