package sqliterepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jrsteele09/go-elearning-portal/session"
	"github.com/jrsteele09/go-elearning-portal/session/sqliterepo/migrations"
	_ "modernc.org/sqlite"
)

// Repo keeps sealed sessions in a local SQLite database
type Repo struct {
	db *sql.DB
}

var _ session.Repo = (*Repo)(nil)

// New opens the database at dsn and applies pending migrations.
func New(dsn string) (*Repo, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	r := &Repo{db: db}
	if err := r.ApplyMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply session migrations: %w", err)
	}
	return r, nil
}

// ApplyMigrations applies the embedded schema migrations.
func (r *Repo) ApplyMigrations() error {
	driver, err := sqlite.WithInstance(r.db, &sqlite.Config{})
	if err != nil {
		return err
	}

	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithInstance("iofs", source, "", driver)
	if err != nil {
		return err
	}

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) Upsert(ctx context.Context, key string, sealed []byte, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("key is required")
	}

	now := session.NowTimeFunc().UTC()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (key, sealed, expires_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			sealed = excluded.sealed,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		key, sealed, expiresAt, now)
	return err
}

func (r *Repo) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		sealed    []byte
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT sealed, expires_at FROM sessions WHERE key = ?`, key,
	).Scan(&sealed, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid && session.NowTimeFunc().After(expiresAt.Time) {
		if err := r.Delete(ctx, key); err != nil {
			return nil, err
		}
		return nil, session.ErrNotFound
	}
	return sealed, nil
}

func (r *Repo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE key = ?`, key)
	return err
}
