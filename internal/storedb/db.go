// Package storedb opens the sqlite database backing C4's durable write path.
package storedb

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open opens (creating if necessary) the sqlite database at path using the
// pure-Go modernc.org/sqlite driver, which needs no cgo toolchain — a good
// fit for an embedded desktop host.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening storage database: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite serializes writers; avoid cross-connection lock contention
	return db, nil
}
