//go:build sqlite_cgo

package vectorstore

import (
	_ "github.com/mattn/go-sqlite3" // CGO SQLite driver
)

const (
	// DriverName is the database/sql driver name for this build.
	DriverName = "sqlite3"

	// BuildMode identifies which SQLite driver is compiled in.
	BuildMode = "cgo"
)
