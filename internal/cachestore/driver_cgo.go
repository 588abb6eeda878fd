//go:build sqlite_cgo

package cachestore

import (
	_ "github.com/mattn/go-sqlite3"
)

// driverName is the database/sql driver registered for this build.
// Building with -tags sqlite_cgo swaps in mattn/go-sqlite3 (cgo,
// linked against the system libsqlite3) in place of the pure-Go
// default, for deployments that already carry a cgo toolchain and
// want its more mature driver.
const driverName = "sqlite3"
