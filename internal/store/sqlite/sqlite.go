package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/driftchat/driftchat-client/internal/core"
	"github.com/driftchat/driftchat-client/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	id             TEXT PRIMARY KEY,
	partner_gender TEXT NOT NULL,
	distance_km    REAL NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	ended_at       TIMESTAMP NOT NULL,
	saved_at       TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS transcript_messages (
	transcript_id TEXT NOT NULL REFERENCES transcripts(id) ON DELETE CASCADE,
	seq           INTEGER NOT NULL,
	origin        TEXT NOT NULL,
	content       TEXT NOT NULL,
	thumbnail_url TEXT NOT NULL DEFAULT '',
	image_url     TEXT NOT NULL DEFAULT '',
	sent_at       TIMESTAMP NOT NULL,
	PRIMARY KEY (transcript_id, seq)
);
`

// New opens (and if needed creates) the archive database at dbPath.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTranscript archives one finished chat and its messages atomically.
func (s *SQLiteStore) SaveTranscript(ctx context.Context, t core.Transcript) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO transcripts (id, partner_gender, distance_km, started_at, ended_at, saved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, t.PartnerGender, t.DistanceKm, t.StartedAt, t.EndedAt, time.Now())
	if err != nil {
		return fmt.Errorf("insert transcript: %w", err)
	}

	for seq, msg := range t.Messages {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO transcript_messages (transcript_id, seq, origin, content, thumbnail_url, image_url, sent_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, seq, msg.Origin.String(), msg.Content, msg.ThumbnailURL, msg.ImageURL, msg.Timestamp)
		if err != nil {
			return fmt.Errorf("insert message %d: %w", seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListTranscripts returns archived chats, newest first.
func (s *SQLiteStore) ListTranscripts(ctx context.Context, limit int) ([]store.Archived, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, partner_gender, distance_km, started_at, ended_at, saved_at
		FROM transcripts
		ORDER BY saved_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transcripts: %w", err)
	}
	defer rows.Close()

	var out []store.Archived
	for rows.Next() {
		var a store.Archived
		if err := rows.Scan(&a.ID, &a.Transcript.PartnerGender, &a.Transcript.DistanceKm,
			&a.Transcript.StartedAt, &a.Transcript.EndedAt, &a.SavedAt); err != nil {
			return nil, fmt.Errorf("scan transcript: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcripts: %w", err)
	}

	for i := range out {
		msgs, err := s.messages(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Transcript.Messages = msgs
	}
	return out, nil
}

func (s *SQLiteStore) messages(ctx context.Context, transcriptID string) ([]core.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT origin, content, thumbnail_url, image_url, sent_at
		FROM transcript_messages
		WHERE transcript_id = ?
		ORDER BY seq
	`, transcriptID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var msgs []core.ChatMessage
	for rows.Next() {
		var (
			m      core.ChatMessage
			origin string
		)
		if err := rows.Scan(&origin, &m.Content, &m.ThumbnailURL, &m.ImageURL, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Origin = parseOrigin(origin)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func parseOrigin(s string) core.Origin {
	switch s {
	case core.OriginSelf.String():
		return core.OriginSelf
	case core.OriginPeer.String():
		return core.OriginPeer
	default:
		return core.OriginSystem
	}
}
