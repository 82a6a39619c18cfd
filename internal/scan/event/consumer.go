package event

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

type Handler interface {
	Handle(ctx context.Context, event entity.RunFailedEvent) error
}

type ConsumerConfig struct {
	Workers     int
	MaxRetries  int
	BaseBackoff time.Duration
	// DedupSize caps how many recent event IDs are remembered.
	DedupSize int
}

const defaultDedupSize = 1024

// FailureConsumer drains the bus and hands each failed run to a Handler,
// retrying with exponential backoff. An EventID seen among the last DedupSize
// events is skipped.
type FailureConsumer struct {
	bus         *Bus
	handler     Handler
	workers     int
	maxRetries  int
	baseBackoff time.Duration
	seen        *recentIDs
	wg          sync.WaitGroup
}

func NewFailureConsumer(bus *Bus, handler Handler, cfg ConsumerConfig) *FailureConsumer {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseBackoff := cfg.BaseBackoff
	if baseBackoff <= 0 {
		baseBackoff = 100 * time.Millisecond
	}

	dedupSize := cfg.DedupSize
	if dedupSize < 1 {
		dedupSize = defaultDedupSize
	}

	return &FailureConsumer{
		bus:         bus,
		handler:     handler,
		workers:     workers,
		maxRetries:  maxRetries,
		baseBackoff: baseBackoff,
		seen:        newRecentIDs(dedupSize),
	}
}

func (c *FailureConsumer) Start() {
	for i := 0; i < c.workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Stop closes the bus and waits for queued events to drain.
func (c *FailureConsumer) Stop(ctx context.Context) error {
	if c.bus != nil {
		c.bus.Close()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *FailureConsumer) worker() {
	defer c.wg.Done()

	for event := range c.bus.Subscribe() {
		c.processEvent(event)
	}
}

func (c *FailureConsumer) processEvent(event entity.RunFailedEvent) {
	if c.handler == nil {
		return
	}

	if event.EventID != "" {
		if !c.seen.add(event.EventID) {
			slog.Info("skip duplicate failed run event", "event_id", event.EventID, "run_id", event.RunID)
			return
		}
	}

	backoff := c.baseBackoff
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := c.handler.Handle(context.Background(), event)
		if err == nil {
			return
		}

		if attempt == c.maxRetries {
			slog.Error("failed to report run failure after retries", "event_id", event.EventID, "run_id", event.RunID, "error", err)
			return
		}

		if !sleepBackoff(backoff) {
			return
		}
		backoff *= 2
	}
}

// recentIDs remembers the last size IDs in insertion order.
type recentIDs struct {
	mu    sync.Mutex
	ids   map[string]struct{}
	order []string
	size  int
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{ids: make(map[string]struct{}, size), size: size}
}

// add records id and reports whether it was not already present.
func (r *recentIDs) add(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.ids[id]; ok {
		return false
	}

	if len(r.order) >= r.size {
		delete(r.ids, r.order[0])
		r.order = r.order[1:]
	}

	r.ids[id] = struct{}{}
	r.order = append(r.order, id)
	return true
}

func (r *recentIDs) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.ids)
}

func sleepBackoff(d time.Duration) bool {
	if d <= 0 {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	<-timer.C
	return true
}

// maxStderr caps how much analyzer stderr goes into a single log record.
const maxStderr = 4096

// FailureReporter writes the operator diagnostics of a failed run to the log.
type FailureReporter struct {
	Logger *slog.Logger
}

func (r FailureReporter) Handle(ctx context.Context, event entity.RunFailedEvent) error {
	if event.EventID == "" {
		return errors.New("missing event id")
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	stderr := event.Stderr
	if len(stderr) > maxStderr {
		stderr = stderr[:maxStderr] + "...(truncated)"
	}

	logger.WarnContext(ctx, "analysis run failed",
		"event_id", event.EventID,
		"run_id", event.RunID,
		"outcome", event.Outcome,
		"file_name", event.FileName,
		"exit_code", event.ExitCode,
		"stderr", stderr,
		"cause", event.Cause,
	)
	return nil
}
