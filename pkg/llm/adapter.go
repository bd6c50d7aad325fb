package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Context struct {
	Messages []Message
}

// Chunk is one incremental piece of a streamed completion. A chunk with Err
// set is the last one on the channel.
type Chunk struct {
	Text string
	Err  error
}

type Adapter interface {
	Name() string
	// Stream starts a chat completion. The channel is closed when the
	// completion ends or ctx is cancelled.
	Stream(ctx context.Context, input Context) (<-chan Chunk, error)
}

// Collect drains a completion stream into one string, stopping at the first error.
func Collect(ctx context.Context, chunks <-chan Chunk) (string, error) {
	var out []byte
	for {
		select {
		case <-ctx.Done():
			return string(out), ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				return string(out), nil
			}
			if c.Err != nil {
				return string(out), c.Err
			}
			out = append(out, c.Text...)
		}
	}
}
