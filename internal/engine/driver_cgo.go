//go:build cgo

package engine

// Native SQLite: links the C library through cgo and registers driver "sqlite3".
import _ "github.com/mattn/go-sqlite3"
