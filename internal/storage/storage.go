package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	_ "embed"

	"github.com/mdmrafi/vartalap/internal/model"
)

//go:embed schema.sql
var schema string

// ErrNoRows is returned when a lookup matches nothing.
var ErrNoRows = sql.ErrNoRows

// Store is the durable message store. It is the single source of
// truth; presence and typing state never touch it.
type Store struct {
	db *sqlx.DB
	sb sq.StatementBuilderType
}

func New(db *sqlx.DB) *Store {
	sb := sq.StatementBuilder.PlaceholderFormat(sq.Question)
	if db.DriverName() == "postgres" {
		sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return &Store{db: db, sb: sb}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate applies the embedded schema. Statements are idempotent so
// re-running is safe.
func (s *Store) Migrate() error {
	for _, stmt := range strings.Split(schema, ";") {
		st := strings.TrimSpace(stmt)
		if st == "" {
			continue
		}
		if _, err := s.db.Exec(st); err != nil {
			return err
		}
	}
	return nil
}

type userRow struct {
	ID           string `db:"id"`
	Username     string `db:"username"`
	FullName     string `db:"full_name"`
	PasswordHash string `db:"password_hash"`
	LastSeen     int64  `db:"last_seen"`
	CreatedAt    int64  `db:"created_at"`
}

func (r userRow) toModel() *model.User {
	return &model.User{
		ID:       r.ID,
		Username: r.Username,
		FullName: r.FullName,
		LastSeen: time.UnixMilli(r.LastSeen).UTC(),
		Created:  time.UnixMilli(r.CreatedAt).UTC(),
	}
}

func (s *Store) CreateUser(ctx context.Context, id, username, fullName, passwordHash string, at time.Time) error {
	query, args, err := s.sb.Insert("users").
		Columns("id", "username", "full_name", "password_hash", "last_seen", "created_at").
		Values(id, username, fullName, passwordHash, at.UnixMilli(), at.UnixMilli()).
		ToSql()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, query, args...)
	return err
}

func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var row userRow
	query, args, err := s.sb.Select("id", "username", "full_name", "password_hash", "last_seen", "created_at").
		From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, err
	}
	return row.toModel(), nil
}

// GetUserByUsername also returns the password hash for login checks.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, string, error) {
	var row userRow
	query, args, err := s.sb.Select("id", "username", "full_name", "password_hash", "last_seen", "created_at").
		From("users").Where(sq.Eq{"username": username}).ToSql()
	if err != nil {
		return nil, "", err
	}
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return nil, "", err
	}
	return row.toModel(), row.PasswordHash, nil
}

func (s *Store) UserExists(ctx context.Context, id string) (bool, error) {
	var n int
	query, args, err := s.sb.Select("COUNT(1)").From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, err
	}
	if err := s.db.GetContext(ctx, &n, query, args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// TouchLastSeen updates a user's last-seen timestamp. Callers treat
// failures as best-effort.
func (s *Store) TouchLastSeen(ctx context.Context, id string, at time.Time) error {
	query, args, err := s.sb.Update("users").
		Set("last_seen", at.UnixMilli()).
		Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("no such user")
	}
	return nil
}
