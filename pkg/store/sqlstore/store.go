// Package sqlstore implements store.Admin on database/sql, backed by
// Postgres through pgx or by an embedded SQLite database.
package sqlstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/harunnryd/tarjama/pkg/store"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

type Options struct {
	Driver      string
	DSN         string
	AutoMigrate bool
}

type Store struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	var sqlDriver string
	switch opts.Driver {
	case DriverPostgres:
		sqlDriver = "pgx"
	case DriverSQLite:
		sqlDriver = "sqlite"
	default:
		return nil, fmt.Errorf("unsupported store driver %q", opts.Driver)
	}
	db, err := sql.Open(sqlDriver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db, dialect: opts.Driver, now: func() time.Time { return time.Now().UTC() }}
	if opts.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	raw, err := schemaFS.ReadFile("schema/" + s.dialect + ".sql")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// rebind rewrites $n placeholders for SQLite, which spells them ?n.
func (s *Store) rebind(query string) string {
	if s.dialect == DriverSQLite {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *Store) GetRoomConfig(ctx context.Context, name string) (store.RoomConfig, error) {
	var cfg store.RoomConfig
	err := s.queryRow(ctx, `
		SELECT id, livekit_room_name, title, mosque_id, transcription_language, translation_language
		FROM rooms
		WHERE livekit_room_name = $1
	`, name).Scan(&cfg.ID, &cfg.Name, &cfg.Title, &cfg.MosqueID, &cfg.SourceLanguage, &cfg.TargetLanguage)
	if errors.Is(err, sql.ErrNoRows) {
		return store.RoomConfig{}, store.ErrNotFound
	}
	if err != nil {
		return store.RoomConfig{}, fmt.Errorf("query room config: %w", err)
	}
	return cfg, nil
}

func (s *Store) UpsertRoomConfig(ctx context.Context, cfg store.RoomConfig) (store.RoomConfig, error) {
	err := s.queryRow(ctx, `
		INSERT INTO rooms (livekit_room_name, title, mosque_id, transcription_language, translation_language)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (livekit_room_name) DO UPDATE SET
			title = excluded.title,
			mosque_id = excluded.mosque_id,
			transcription_language = excluded.transcription_language,
			translation_language = excluded.translation_language
		RETURNING id
	`, cfg.Name, cfg.Title, cfg.MosqueID, cfg.SourceLanguage, cfg.TargetLanguage).Scan(&cfg.ID)
	if err != nil {
		return store.RoomConfig{}, fmt.Errorf("upsert room config: %w", err)
	}
	return cfg, nil
}

const sessionColumns = `id, room_id, mosque_id, status, logging_enabled, transcript_count, started_at, ended_at, updated_at`

func scanSession(row *sql.Row) (store.Session, error) {
	var sess store.Session
	var status string
	var endedAt sql.NullTime
	err := row.Scan(&sess.ID, &sess.RoomID, &sess.MosqueID, &status, &sess.LoggingEnabled,
		&sess.TranscriptCount, &sess.StartedAt, &endedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Session{}, store.ErrNotFound
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.Status = store.SessionStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		sess.EndedAt = &t
	}
	return sess, nil
}

func (s *Store) GetActiveSession(ctx context.Context, roomID int64) (store.Session, error) {
	return scanSession(s.queryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM room_sessions
		WHERE room_id = $1 AND status = 'active'
		ORDER BY started_at DESC
		LIMIT 1
	`, roomID))
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (store.Session, error) {
	return scanSession(s.queryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM room_sessions
		WHERE id = $1
	`, sessionID))
}

func (s *Store) CreateSession(ctx context.Context, roomID int64, mosqueID string) (store.Session, error) {
	now := s.now()
	sess := store.Session{
		ID:             uuid.NewString(),
		RoomID:         roomID,
		MosqueID:       mosqueID,
		Status:         store.SessionActive,
		LoggingEnabled: true,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	_, err := s.exec(ctx, `
		INSERT INTO room_sessions (id, room_id, mosque_id, status, logging_enabled, transcript_count, started_at, updated_at)
		VALUES ($1, $2, $3, 'active', $4, 0, $5, $6)
	`, sess.ID, roomID, mosqueID, true, now, now)
	if isUniqueViolation(err) {
		return store.Session{}, store.ErrSessionExists
	}
	if err != nil {
		return store.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *Store) CompleteSession(ctx context.Context, sessionID string) error {
	now := s.now()
	res, err := s.exec(ctx, `
		UPDATE room_sessions
		SET status = 'completed', ended_at = $1, updated_at = $2
		WHERE id = $3
	`, now, now, sessionID)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	return requireRow(res)
}

func (s *Store) InsertTranscript(ctx context.Context, t store.Transcript) error {
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	_, err := s.exec(ctx, `
		INSERT INTO transcripts (room_id, session_id, transcription_segment, translation_segment, timestamp)
		VALUES ($1, $2, $3, $4, $5)
	`, t.RoomID, t.SessionID, t.SourceText, t.TranslatedText, t.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}
	return nil
}

func (s *Store) IncrementTranscriptCount(ctx context.Context, sessionID string) error {
	res, err := s.exec(ctx, `
		UPDATE room_sessions
		SET transcript_count = transcript_count + 1, updated_at = $1
		WHERE id = $2
	`, s.now(), sessionID)
	if err != nil {
		return fmt.Errorf("increment transcript count: %w", err)
	}
	return requireRow(res)
}

func (s *Store) IsLoggingEnabled(ctx context.Context, roomID int64) (bool, error) {
	var enabled bool
	err := s.queryRow(ctx, `
		SELECT logging_enabled
		FROM room_sessions
		WHERE room_id = $1 AND status = 'active'
		LIMIT 1
	`, roomID).Scan(&enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query logging flag: %w", err)
	}
	return enabled, nil
}

func (s *Store) SetLoggingEnabled(ctx context.Context, roomID int64, enabled bool) error {
	res, err := s.exec(ctx, `
		UPDATE room_sessions
		SET logging_enabled = $1, updated_at = $2
		WHERE room_id = $3 AND status = 'active'
	`, enabled, s.now(), roomID)
	if err != nil {
		return fmt.Errorf("set logging flag: %w", err)
	}
	return requireRow(res)
}

func (s *Store) ListTranscripts(ctx context.Context, sessionID string, limit int) ([]store.Transcript, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, room_id, session_id, transcription_segment, translation_segment, timestamp
		FROM transcripts
		WHERE session_id = $1
		ORDER BY id ASC
		LIMIT $2
	`), sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var out []store.Transcript
	for rows.Next() {
		var t store.Transcript
		if err := rows.Scan(&t.ID, &t.RoomID, &t.SessionID, &t.SourceText, &t.TranslatedText, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ store.Admin = (*Store)(nil)
