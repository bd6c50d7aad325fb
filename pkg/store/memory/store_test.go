package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/harunnryd/tarjama/pkg/store"
)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()
	room, _ := s.UpsertRoomConfig(ctx, store.RoomConfig{Name: "masjid-1", MosqueID: "m-1", SourceLanguage: "ar", TargetLanguage: "en"})

	if _, err := s.GetActiveSession(ctx, room.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	sess, err := s.CreateSession(ctx, room.ID, room.MosqueID)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !sess.LoggingEnabled || sess.TranscriptCount != 0 || sess.Status != store.SessionActive {
		t.Fatalf("unexpected new session %+v", sess)
	}
	if _, err := s.CreateSession(ctx, room.ID, room.MosqueID); !errors.Is(err, store.ErrSessionExists) {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}

	if err := s.IncrementTranscriptCount(ctx, sess.ID); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := s.SetLoggingEnabled(ctx, room.ID, false); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if on, _ := s.IsLoggingEnabled(ctx, room.ID); on {
		t.Fatalf("expected logging disabled")
	}
	if err := s.CompleteSession(ctx, sess.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := s.GetSession(ctx, sess.ID)
	if got.Status != store.SessionCompleted || got.EndedAt == nil || got.TranscriptCount != 1 {
		t.Fatalf("unexpected completed session %+v", got)
	}
	if on, _ := s.IsLoggingEnabled(ctx, room.ID); on {
		t.Fatalf("no active session means logging off")
	}
}

func TestListTranscriptsLimit(t *testing.T) {
	ctx := context.Background()
	s := New()
	for _, text := range []string{"one", "two", "three"} {
		_ = s.InsertTranscript(ctx, store.Transcript{SessionID: "s1", SourceText: text})
	}
	_ = s.InsertTranscript(ctx, store.Transcript{SessionID: "s2", SourceText: "other"})
	got, _ := s.ListTranscripts(ctx, "s1", 2)
	if len(got) != 2 || got[0].SourceText != "one" || got[1].SourceText != "two" {
		t.Fatalf("unexpected transcripts %+v", got)
	}
}
