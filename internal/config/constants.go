package config

const (
	// DefaultDatabasePath is the default path for the local SQLite database
	// (sessions, and books when BACKEND=local).
	DefaultDatabasePath = "./flashshelf.db"
)
