//go:build cgo && sqlite3_cgo

package history

import (
	_ "github.com/mattn/go-sqlite3"
)

const driverName = "sqlite3"
