package event

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shandysiswandi/scriptscan/internal/scan/entity"
)

type handlerFunc func(ctx context.Context, event entity.RunFailedEvent) error

func (h handlerFunc) Handle(ctx context.Context, event entity.RunFailedEvent) error {
	return h(ctx, event)
}

func TestFailureConsumerRetriesAndIdempotent(t *testing.T) {
	bus := NewBus(10)

	var attempts int32
	done := make(chan struct{})
	handler := handlerFunc(func(ctx context.Context, event entity.RunFailedEvent) error {
		n := atomic.AddInt32(&attempts, 1)
		if n < 3 {
			return errors.New("temporary failure")
		}
		select {
		case <-done:
		default:
			close(done)
		}
		return nil
	})

	consumer := NewFailureConsumer(bus, handler, ConsumerConfig{
		Workers:     1,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
	})
	consumer.Start()

	event := entity.RunFailedEvent{EventID: "evt-1", RunID: "run-1", Outcome: entity.OutcomeInvocationFailed}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	if err := bus.Publish(context.Background(), event); err != nil {
		t.Fatalf("publish duplicate: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for handler")
	}

	if err := consumer.Stop(context.Background()); err != nil {
		t.Fatalf("stop consumer: %v", err)
	}

	if got := atomic.LoadInt32(&attempts); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	bus := NewBus(1)
	bus.Close()
	bus.Close()

	err := bus.Publish(context.Background(), entity.RunFailedEvent{EventID: "evt"})
	if !errors.Is(err, ErrBusClosed) {
		t.Fatalf("Publish() err = %v, want ErrBusClosed", err)
	}
}

func TestBusPublishRespectsContext(t *testing.T) {
	bus := NewBus(1)
	if err := bus.Publish(context.Background(), entity.RunFailedEvent{EventID: "a"}); err != nil {
		t.Fatalf("first publish: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := bus.Publish(ctx, entity.RunFailedEvent{EventID: "b"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Publish() err = %v, want context.Canceled", err)
	}
}

func TestFailureReporter(t *testing.T) {
	var buf bytes.Buffer
	reporter := FailureReporter{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	if err := reporter.Handle(context.Background(), entity.RunFailedEvent{}); err == nil {
		t.Fatal("Handle() expected error for missing event id")
	}

	err := reporter.Handle(context.Background(), entity.RunFailedEvent{
		EventID:  "evt-9",
		RunID:    "run-9",
		Outcome:  entity.OutcomeInvocationFailed,
		ExitCode: 3,
		Stderr:   strings.Repeat("x", maxStderr+10),
	})
	if err != nil {
		t.Fatalf("Handle() err = %v", err)
	}

	out := buf.String()
	for _, want := range []string{`"run_id":"run-9"`, `"exit_code":3`, `"outcome":"INVOCATION_FAILED"`, "(truncated)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("log output missing %s: %s", want, out)
		}
	}
}

func TestFailureConsumerDedupIsBounded(t *testing.T) {
	var handled []string
	handler := handlerFunc(func(ctx context.Context, event entity.RunFailedEvent) error {
		handled = append(handled, event.EventID)
		return nil
	})

	consumer := NewFailureConsumer(NewBus(1), handler, ConsumerConfig{DedupSize: 2})

	for _, id := range []string{"a", "b", "b", "c", "a"} {
		consumer.processEvent(entity.RunFailedEvent{EventID: id})
	}

	want := []string{"a", "b", "c", "a"}
	if len(handled) != len(want) {
		t.Fatalf("handled = %v, want %v", handled, want)
	}
	for i := range want {
		if handled[i] != want[i] {
			t.Fatalf("handled = %v, want %v", handled, want)
		}
	}
	if got := consumer.seen.len(); got != 2 {
		t.Fatalf("remembered %d ids, want 2", got)
	}
}
