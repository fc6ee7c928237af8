package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type PostgresRepository struct {
	sqlRepository
}

// NewPostgresRepository connects to dsn and applies pending migrations.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	if err := RunMigrations("postgres", dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresRepository{sqlRepository{
		db: db,
		q: queries{
			insert: `INSERT INTO expenses (name, amount, category, event_name, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			delete: `DELETE FROM expenses WHERE id = $1`,
			list:   `SELECT ` + expenseColumns + ` FROM expenses ORDER BY id DESC`,
			get:    `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1`,
		},
	}}, nil
}
