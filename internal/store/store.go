package store

import (
	"context"
	"time"

	"github.com/driftchat/driftchat-client/internal/core"
)

// Archived is a transcript as it sits in the archive, with its row identity.
type Archived struct {
	ID         string
	Transcript core.Transcript
	SavedAt    time.Time
}

// Store is the local transcript archive.
type Store interface {
	// SaveTranscript archives one finished chat.
	SaveTranscript(ctx context.Context, t core.Transcript) error
	// ListTranscripts returns archived chats, newest first.
	ListTranscripts(ctx context.Context, limit int) ([]Archived, error)
	Close() error
}
