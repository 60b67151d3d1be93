// Package sqlite3 registers the pure Go sqlite driver under the "sqlite3"
// name that sql-migrate and the store use, so no cgo is needed.
package sqlite3

import (
	"database/sql"

	"modernc.org/sqlite"
)

const sqlite3Driver = "sqlite3"

func init() {
	sql.Register(sqlite3Driver, &sqlite.Driver{})
}
