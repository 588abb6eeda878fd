//go:build !sqlite_cgo

package cachestore

import (
	_ "modernc.org/sqlite"
)

// driverName is the database/sql driver registered for this build.
// modernc.org/sqlite is pure Go, so this is the default: no cgo
// toolchain is required to build splaengine.
const driverName = "sqlite"
