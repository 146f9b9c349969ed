package recordstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const Schema = `
CREATE TABLE IF NOT EXISTS upload_records (
	id            uuid PRIMARY KEY,
	request_id    uuid NOT NULL,
	key           text NOT NULL,
	filename      text NOT NULL,
	path          text NOT NULL,
	relative_path text NOT NULL,
	size          bigint NOT NULL,
	content_type  text NOT NULL,
	created_at    timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS upload_records_request_id_idx ON upload_records (request_id);
CREATE INDEX IF NOT EXISTS upload_records_created_at_idx ON upload_records (created_at);
`

const recordColumns = `id::text, request_id::text, key, filename, path, relative_path, size, content_type, created_at`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// OpenPostgres connects through the pgx driver and checks the connection.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(20)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewPostgres(db), nil
}

func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *Postgres) Insert(ctx context.Context, records ...Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, r := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO upload_records(id, request_id, key, filename, path, relative_path, size, content_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`, r.ID, r.RequestID, r.Key, r.Filename, r.Path, r.RelativePath, r.Size, r.ContentType, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert record %s: %w", r.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Postgres) Get(ctx context.Context, id string) (Record, error) {
	var r Record
	err := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM upload_records
		WHERE id::text = $1
	`, id).Scan(&r.ID, &r.RequestID, &r.Key, &r.Filename, &r.Path, &r.RelativePath, &r.Size, &r.ContentType, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

func (s *Postgres) ListByRequest(ctx context.Context, requestID string) ([]Record, error) {
	return s.query(ctx, `
		SELECT `+recordColumns+`
		FROM upload_records
		WHERE request_id::text = $1
		ORDER BY key ASC
	`, requestID)
}

func (s *Postgres) ListExpired(ctx context.Context, before time.Time, limit int) ([]Record, error) {
	return s.query(ctx, `
		SELECT `+recordColumns+`
		FROM upload_records
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, before, limit)
}

func (s *Postgres) query(ctx context.Context, q string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Key, &r.Filename, &r.Path, &r.RelativePath, &r.Size, &r.ContentType, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM upload_records WHERE id::text = $1`, id)
	return err
}

func (s *Postgres) Close(context.Context) error {
	return s.db.Close()
}

// TryLock takes the session level advisory lock key on a dedicated
// connection. ok is false when another session holds the lock.
func (s *Postgres) TryLock(ctx context.Context, key int64) (unlock func(), ok bool, err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, false, err
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}
	return func() {
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		_ = conn.Close()
	}, true, nil
}
