package archive

import (
	"database/sql"
	"fmt"
)

func connection(database string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", database+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)

	return db, nil
}
