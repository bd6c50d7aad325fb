package mock

import (
	"context"
	"sync"

	"github.com/harunnryd/tarjama/pkg/llm"
)

type LLMConfig struct {
	ResponseText string
	StreamChunks []string
	// Respond, when set, computes the reply from the request.
	Respond   func(input llm.Context) (string, error)
	StreamErr error
	// ChunkErr is delivered after the chunks to simulate a broken stream.
	ChunkErr error
}

type LLMAdapter struct {
	cfg   LLMConfig
	mu    sync.Mutex
	calls []llm.Context
}

func NewLLMAdapter(cfg LLMConfig) *LLMAdapter {
	if cfg.ResponseText == "" {
		cfg.ResponseText = "mock response"
	}
	return &LLMAdapter{cfg: cfg}
}

func (a *LLMAdapter) Name() string { return "mock_llm" }

func (a *LLMAdapter) Stream(ctx context.Context, input llm.Context) (<-chan llm.Chunk, error) {
	snapshot := llm.Context{Messages: append([]llm.Message(nil), input.Messages...)}
	a.mu.Lock()
	a.calls = append(a.calls, snapshot)
	a.mu.Unlock()

	if a.cfg.StreamErr != nil {
		return nil, a.cfg.StreamErr
	}
	chunks := a.cfg.StreamChunks
	if a.cfg.Respond != nil {
		text, err := a.cfg.Respond(snapshot)
		if err != nil {
			return nil, err
		}
		chunks = []string{text}
	} else if len(chunks) == 0 {
		chunks = []string{a.cfg.ResponseText}
	}
	out := make(chan llm.Chunk, len(chunks)+1)
	for _, c := range chunks {
		out <- llm.Chunk{Text: c}
	}
	if a.cfg.ChunkErr != nil {
		out <- llm.Chunk{Err: a.cfg.ChunkErr}
	}
	close(out)
	return out, nil
}

// Calls returns every request the adapter has seen.
func (a *LLMAdapter) Calls() []llm.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Context(nil), a.calls...)
}

var _ llm.Adapter = (*LLMAdapter)(nil)
