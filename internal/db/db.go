// internal/db/db.go
package db

import (
	"database/sql"
	"fmt"
	"os"

	appErrors "github.com/unclebandit/outreach-backend/internal/errors"

	_ "github.com/lib/pq"
)

// Connect opens the Postgres pool from DB_* environment variables and pings
// it. DATABASE_URL, when set, wins over the individual vars.
func Connect() (*sql.DB, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, appErrors.Wrap(err, "open postgres")
	}
	if err := conn.Ping(); err != nil {
		return nil, appErrors.Wrap(err, "ping postgres")
	}
	return conn, nil
}
