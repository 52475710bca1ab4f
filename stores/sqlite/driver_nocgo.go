//go:build !cgo

package sqlite

import (
	_ "modernc.org/sqlite"
)

// Without cgo the pure Go driver stands in for go-sqlite3.
const driverName = "sqlite"
