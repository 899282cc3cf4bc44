package postgres

import (
	"github.com/jmoiron/sqlx"

	_ "github.com/lib/pq"
)

// Open returns a sqlx handle over lib/pq, verifying the connection.
func Open(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
