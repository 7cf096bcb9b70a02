// Package history keeps the most recent summarization requests of each
// session.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	DefaultLimit = 10

	// PreviewLength is how many characters of the original text are kept.
	PreviewLength = 200
)

var ErrNoSession = errors.New("no session id")

// Entry is one recorded request.
type Entry struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"-"`
	Agent        string    `json:"agent"`
	OriginalText string    `json:"original_text"`
	Summary      string    `json:"summary"`
	InputTokens  int       `json:"input_tokens"`
	CreatedAt    time.Time `json:"timestamp"`
}

// Store records history per session. Every call names its session
// explicitly.
type Store interface {
	Append(ctx context.Context, e Entry) (Entry, error)
	List(ctx context.Context, sessionID string) ([]Entry, error)
	Clear(ctx context.Context, sessionID string) error
}

// Preview shortens text to PreviewLength characters followed by "...".
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength]) + "..."
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is a Store backed by a SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	limit  int
	logger *log.Logger
	now    func() time.Time
}

// Open opens or creates the database at path and applies pending
// migrations. Each session keeps at most limit entries.
func Open(ctx context.Context, path string, limit int, logger *log.Logger) (*SQLiteStore, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if logger == nil {
		logger = log.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db, path, logger); err != nil {
		db.Close()
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	return &SQLiteStore{db: db, limit: limit, logger: logger, now: time.Now}, nil
}

func migrateUp(db *sql.DB, path string, logger *log.Logger) error {
	dbInstance, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create DB instance: %w", err)
	}

	srcInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create source instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcInstance, "sqlite", dbInstance)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	migrateErr := m.Up()

	fields := []any{"path", path}
	version, dirty, versionErr := m.Version()
	if versionErr == nil {
		fields = append(fields, "version", version, "dirty", dirty)
	} else if !errors.Is(versionErr, migrate.ErrNilVersion) {
		logger.Warn("Failed to fetch migration version", "error", versionErr, "path", path)
	}

	if migrateErr != nil {
		if !errors.Is(migrateErr, migrate.ErrNoChange) {
			return fmt.Errorf("apply migrations: %w", migrateErr)
		}
		logger.Debug("No migrations to apply", fields...)
		return nil
	}
	logger.Info("History DB is migrated", fields...)
	return nil
}

// Append records e and drops the session's oldest entries beyond the limit.
// A missing ID or timestamp is filled in and the original text is shortened
// with Preview.
func (s *SQLiteStore) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.SessionID == "" {
		return Entry{}, ErrNoSession
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Millisecond)
	e.OriginalText = Preview(e.OriginalText)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO history (id, session_id, agent, original_text, summary, input_tokens, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SessionID, e.Agent, e.OriginalText, e.Summary, e.InputTokens, e.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		DELETE FROM history
		WHERE session_id = ?
		  AND seq NOT IN (
		    SELECT seq FROM history WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		  )`,
		e.SessionID, e.SessionID, s.limit,
	)
	if err != nil {
		return Entry{}, fmt.Errorf("trim session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		s.logger.Debug("Trimmed history", "session", e.SessionID, "removed", n)
	}
	return e, nil
}

// List returns the session's entries from oldest to newest.
func (s *SQLiteStore) List(ctx context.Context, sessionID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, agent, original_text, summary, input_tokens, created_at
		FROM history
		WHERE session_id = ?
		ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Agent, &e.OriginalText, &e.Summary, &e.InputTokens, &createdAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear removes every entry of the session.
func (s *SQLiteStore) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
