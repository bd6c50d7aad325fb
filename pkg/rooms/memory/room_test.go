package memory

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/harunnryd/tarjama/pkg/room"
)

func TestRemoteParticipantsWhileEventsBackedUp(t *testing.T) {
	rm := New("masjid-1", "agent")
	for i := 0; i < cap(rm.events); i++ {
		rm.Join(room.Participant{Identity: "p" + strconv.Itoa(i)})
	}

	blocked := make(chan struct{})
	go func() {
		defer close(blocked)
		rm.Join(room.Participant{Identity: "late"})
	}()

	listed := make(chan int, 1)
	go func() { listed <- len(rm.RemoteParticipants()) }()
	select {
	case n := <-listed:
		if n < cap(rm.events) {
			t.Fatalf("expected at least %d participants, got %d", cap(rm.events), n)
		}
	case <-time.After(time.Second):
		t.Fatalf("participant listing blocked behind a full event buffer")
	}

	rm.Close()
	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatalf("close did not release the pending emit")
	}
	for range rm.Events() {
	}
}

func TestClosedRoomRejectsCaptionsAndDropsEvents(t *testing.T) {
	rm := New("masjid-1", "")
	if rm.LocalIdentity() != "agent" {
		t.Fatalf("unexpected default identity %q", rm.LocalIdentity())
	}
	rm.Close()
	rm.Close()
	rm.Join(room.Participant{Identity: "imam"})
	if _, ok := <-rm.Events(); ok {
		t.Fatalf("expected closed event channel")
	}
	err := rm.PublishCaption(context.Background(), room.Caption{TrackID: "TR_1"})
	if !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}
