package translation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harunnryd/tarjama/pkg/llm"
	"github.com/harunnryd/tarjama/pkg/providers/mock"
	"github.com/harunnryd/tarjama/pkg/room"
)

type capturePublisher struct {
	mu       sync.Mutex
	captions []room.Caption
	err      error
}

func (p *capturePublisher) LocalIdentity() string { return "agent-1" }

func (p *capturePublisher) PublishCaption(ctx context.Context, caption room.Caption) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captions = append(p.captions, caption)
	return p.err
}

func TestRollingWindowResetsAfterCeiling(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "ok"})
	tc := New(Config{SourceLanguage: "ar", TargetLanguage: "en"}, adapter, &capturePublisher{}, nil)

	for i := 1; i <= 9; i++ {
		tc.Translate(context.Background(), "sentence", "TR_1")
		if got := len(tc.Messages()); got != i+1 {
			t.Fatalf("call %d: expected %d messages, got %d", i, i+1, got)
		}
	}
	tc.Translate(context.Background(), "tenth sentence", "TR_1")
	if got := len(tc.Messages()); got != 1 {
		t.Fatalf("expected reset to system only, got %d messages", got)
	}
	calls := adapter.Calls()
	last := calls[len(calls)-1].Messages
	if len(last) != 2 || last[1].Content != "tenth sentence" {
		t.Fatalf("reset call should be system+current, got %+v", last)
	}
	if len(calls[8].Messages) != 10 {
		t.Fatalf("ninth call should carry the full window, got %d", len(calls[8].Messages))
	}

	tc.Translate(context.Background(), "fresh", "TR_1")
	msgs := tc.Messages()
	if len(msgs) != 2 || msgs[1].Content != "fresh" {
		t.Fatalf("expected fresh window after reset, got %+v", msgs)
	}
	for _, m := range msgs {
		if m.Role == llm.RoleAssistant {
			t.Fatalf("assistant replies must not enter the window")
		}
	}
}

func TestStatelessModeLeavesWindowUntouched(t *testing.T) {
	adapter := mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "ok"})
	tc := New(Config{Mode: ModeStateless}, adapter, nil, nil)
	for i := 0; i < 3; i++ {
		tc.Translate(context.Background(), "text", "TR_1")
	}
	if got := len(tc.Messages()); got != 1 {
		t.Fatalf("expected system message only, got %d", got)
	}
	for _, call := range adapter.Calls() {
		if len(call.Messages) != 2 {
			t.Fatalf("stateless request should be system+current, got %d", len(call.Messages))
		}
	}
}

func TestTranslatePassthroughOnFailure(t *testing.T) {
	cases := []struct {
		name string
		cfg  mock.LLMConfig
	}{
		{name: "stream error", cfg: mock.LLMConfig{StreamErr: errors.New("provider down")}},
		{name: "chunk error", cfg: mock.LLMConfig{StreamChunks: []string{"Peace"}, ChunkErr: errors.New("reset")}},
		{name: "empty result", cfg: mock.LLMConfig{StreamChunks: []string{"  "}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pub := &capturePublisher{}
			ctx := New(Config{}, mock.NewLLMAdapter(tc.cfg), pub, nil)
			in := "السلام عليكم ورحمة الله."
			if got := ctx.Translate(context.Background(), in, "TR_1"); got != in {
				t.Fatalf("expected passthrough, got %q", got)
			}
			if len(pub.captions) != 1 || pub.captions[0].Segments[0].Text != in {
				t.Fatalf("passthrough must still publish, got %+v", pub.captions)
			}
		})
	}
}

type slowAdapter struct{}

func (slowAdapter) Name() string { return "slow" }

func (slowAdapter) Stream(ctx context.Context, input llm.Context) (<-chan llm.Chunk, error) {
	return make(chan llm.Chunk), nil
}

func TestTranslateTimesOut(t *testing.T) {
	tc := New(Config{Timeout: 20 * time.Millisecond}, slowAdapter{}, nil, nil)
	if got := tc.Translate(context.Background(), "hello there", "TR_1"); got != "hello there" {
		t.Fatalf("expected passthrough after timeout, got %q", got)
	}
}

func TestCaptionShape(t *testing.T) {
	pub := &capturePublisher{}
	adapter := mock.NewLLMAdapter(mock.LLMConfig{StreamChunks: []string{" Peace be upon you", " and God's mercy. "}})
	tc := New(Config{SourceLanguage: "ar", TargetLanguage: "en"}, adapter, pub, nil)

	got := tc.Translate(context.Background(), "السلام عليكم ورحمة الله.", "TR_audio")
	if got != "Peace be upon you and God's mercy." {
		t.Fatalf("unexpected translation %q", got)
	}
	if len(pub.captions) != 1 {
		t.Fatalf("expected one caption, got %d", len(pub.captions))
	}
	c := pub.captions[0]
	if c.SpeakerIdentity != "agent-1" || c.TrackID != "TR_audio" || len(c.Segments) != 1 {
		t.Fatalf("unexpected caption %+v", c)
	}
	seg := c.Segments[0]
	if !strings.HasPrefix(seg.ID, "SG_") || seg.Language != "en" || !seg.Final || seg.StartTime != 0 || seg.EndTime != 0 {
		t.Fatalf("unexpected segment %+v", seg)
	}
}

func TestPublishErrorIsSwallowed(t *testing.T) {
	pub := &capturePublisher{err: errors.New("room gone")}
	tc := New(Config{}, mock.NewLLMAdapter(mock.LLMConfig{ResponseText: "hi"}), pub, nil)
	if got := tc.Translate(context.Background(), "مرحبا بكم جميعا", "TR_1"); got != "hi" {
		t.Fatalf("unexpected result %q", got)
	}
}

func TestSystemPromptNamesLanguages(t *testing.T) {
	prompt := SystemPrompt(DefaultPrompt, "ar", "en")
	if !strings.Contains(prompt, "Arabic text to English") {
		t.Fatalf("unexpected prompt %q", prompt)
	}
}
