package eventbus

import (
	"context"

	"github.com/linggen/linggen-agent/pkg/models"
)

// NopSink discards all events silently. Useful for tests that don't care
// about progress streaming.
type NopSink struct{}

func (NopSink) Emit(ctx context.Context, e models.Event) {}

// CallbackSink wraps a function as a Sink, for tests that want to assert
// on emitted events inline.
type CallbackSink struct {
	Fn func(ctx context.Context, e models.Event)
}

func (s CallbackSink) Emit(ctx context.Context, e models.Event) {
	if s.Fn != nil {
		s.Fn(ctx, e)
	}
}

// MultiSink fans out to multiple sinks, nil entries filtered.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	filtered := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	return &MultiSink{sinks: filtered}
}

func (m *MultiSink) Emit(ctx context.Context, e models.Event) {
	for _, s := range m.sinks {
		s.Emit(ctx, e)
	}
}
