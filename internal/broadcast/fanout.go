package broadcast

import (
	"context"
	"sync"

	"github.com/elliotnash/piopener/internal/door"
)

// Sink consumes published door states.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// HandleState is called with each state the sink observes. States
	// published while it runs are coalesced to the latest.
	HandleState(ctx context.Context, s door.State) error
}

// Source provides state subscriptions. *door.Controller satisfies it.
type Source interface {
	Subscribe() *door.Subscription
}

// Logger is the door package's logger, so one *logging.Logger serves the
// controller and its sinks.
type Logger = door.Logger

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}

// Fanout forwards the state feed to a set of sinks.
type Fanout struct {
	source Source
	sinks  []Sink
	logger Logger
}

// NewFanout creates a Fanout. A nil logger discards output.
func NewFanout(source Source, logger Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Fanout{source: source, sinks: sinks, logger: logger}
}

// Len returns the number of sinks.
func (f *Fanout) Len() int {
	return len(f.sinks)
}

// Run drives every sink until ctx is cancelled. Each sink first receives the
// current state.
func (f *Fanout) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, sink := range f.sinks {
		wg.Add(1)
		go func(sink Sink) {
			defer wg.Done()
			f.drive(ctx, sink)
		}(sink)
	}
	wg.Wait()
}

func (f *Fanout) drive(ctx context.Context, sink Sink) {
	sub := f.source.Subscribe()
	f.logger.Info("state sink started", "sink", sink.Name())

	for {
		s, err := sub.Next(ctx)
		if err != nil {
			f.logger.Debug("state sink stopped", "sink", sink.Name())
			return
		}
		if err := sink.HandleState(ctx, s); err != nil {
			f.logger.Warn("state sink failed",
				"sink", sink.Name(),
				"status", s.Status,
				"error", err,
			)
		}
	}
}
