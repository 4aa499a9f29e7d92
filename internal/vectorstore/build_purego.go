//go:build !sqlite_cgo

package vectorstore

import (
	_ "modernc.org/sqlite" // Pure-Go SQLite driver
)

const (
	// DriverName is the database/sql driver name for this build.
	DriverName = "sqlite"

	// BuildMode identifies which SQLite driver is compiled in.
	BuildMode = "purego"
)
