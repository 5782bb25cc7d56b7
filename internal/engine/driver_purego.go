package engine

// Pure-Go SQLite: always available, registers driver "sqlite".
import _ "modernc.org/sqlite"
