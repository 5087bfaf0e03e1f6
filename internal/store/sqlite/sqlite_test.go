package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/driftchat/driftchat-client/internal/core"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := New(filepath.Join(t.TempDir(), "archive.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func sampleTranscript(started time.Time) core.Transcript {
	return core.Transcript{
		PartnerGender: "female",
		DistanceKm:    3.4,
		StartedAt:     started,
		EndedAt:       started.Add(5 * time.Minute),
		Messages: []core.ChatMessage{
			{Origin: core.OriginSystem, Content: "Matched with a female partner 3.4 km away.", Timestamp: started},
			{Origin: core.OriginPeer, Content: "hey", Timestamp: started.Add(time.Second)},
			{Origin: core.OriginSelf, Content: "hi!", Timestamp: started.Add(2 * time.Second)},
			{
				Origin:       core.OriginPeer,
				Content:      "[image]",
				Timestamp:    started.Add(3 * time.Second),
				ThumbnailURL: "http://localhost:5115/thumbs/img-1.jpg",
				ImageURL:     "http://localhost:5115/images/img-1.jpg",
			},
		},
	}
}

func TestSaveAndListTranscripts(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 8, 29, 21, 0, 0, 0, time.UTC)

	if err := st.SaveTranscript(ctx, sampleTranscript(started)); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	archived, err := st.ListTranscripts(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("got %d transcripts, want 1", len(archived))
	}

	got := archived[0]
	if got.ID == "" {
		t.Error("missing transcript id")
	}
	if got.Transcript.PartnerGender != "female" || got.Transcript.DistanceKm != 3.4 {
		t.Errorf("header = %+v", got.Transcript)
	}
	if len(got.Transcript.Messages) != 4 {
		t.Fatalf("got %d messages, want 4", len(got.Transcript.Messages))
	}
	if got.Transcript.Messages[1].Origin != core.OriginPeer || got.Transcript.Messages[1].Content != "hey" {
		t.Errorf("message order broken: %+v", got.Transcript.Messages[1])
	}
	if got.Transcript.Messages[2].Origin != core.OriginSelf {
		t.Errorf("origin = %v, want self", got.Transcript.Messages[2].Origin)
	}
	last := got.Transcript.Messages[3]
	if !last.IsImage() || last.ImageURL != "http://localhost:5115/images/img-1.jpg" {
		t.Errorf("image message = %+v", last)
	}
}

func TestListTranscripts_NewestFirst(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	older := sampleTranscript(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	newer := sampleTranscript(time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC))
	newer.PartnerGender = "male"

	if err := st.SaveTranscript(ctx, older); err != nil {
		t.Fatalf("save older: %v", err)
	}
	time.Sleep(5 * time.Millisecond) // distinct saved_at
	if err := st.SaveTranscript(ctx, newer); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	archived, err := st.ListTranscripts(ctx, 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("got %d transcripts, want 2", len(archived))
	}
	if archived[0].Transcript.PartnerGender != "male" {
		t.Error("newest transcript not first")
	}
}

func TestListTranscripts_Limit(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := st.SaveTranscript(ctx, sampleTranscript(time.Now())); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	archived, err := st.ListTranscripts(ctx, 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(archived) != 2 {
		t.Errorf("got %d transcripts, want limit of 2", len(archived))
	}
}

func TestListTranscripts_Empty(t *testing.T) {
	st := newTestStore(t)

	archived, err := st.ListTranscripts(context.Background(), 10)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(archived) != 0 {
		t.Errorf("got %d transcripts from an empty archive", len(archived))
	}
}
