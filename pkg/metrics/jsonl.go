package metrics

import (
	"context"
	"io"
	"log/slog"
	"maps"
	"slices"
)

// JSONLObserver writes one JSON object per event:
// {"time":...,"level":"INFO","msg":"metric","name":...,"at":...,"value":...,"tags":{...}}.
type JSONLObserver struct {
	logger *slog.Logger
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	return &JSONLObserver{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

func (o *JSONLObserver) Record(ev Event) {
	tags := make([]any, 0, len(ev.Tags))
	for _, k := range slices.Sorted(maps.Keys(ev.Tags)) {
		tags = append(tags, slog.String(k, ev.Tags[k]))
	}
	o.logger.LogAttrs(context.Background(), slog.LevelInfo, "metric",
		slog.String("name", ev.Name),
		slog.Time("at", ev.Time),
		slog.Float64("value", ev.Value),
		slog.Group("tags", tags...),
	)
}
