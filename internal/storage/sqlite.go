package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	sqlRepository
}

// NewSQLiteRepository opens (creating if needed) the database file at
// dbPath and applies pending migrations.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	if err := RunMigrations("sqlite", dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection keeps writes serialized at the driver level too.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{sqlRepository{
		db: db,
		q: queries{
			insert: `INSERT INTO expenses (name, amount, category, event_name, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
			delete: `DELETE FROM expenses WHERE id = ?`,
			list:   `SELECT ` + expenseColumns + ` FROM expenses ORDER BY id DESC`,
			get:    `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ?`,
		},
	}}, nil
}
