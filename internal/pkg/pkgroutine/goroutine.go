package pkgroutine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// DefaultMaxGoroutine is used when NewManager receives a non-positive limit.
const DefaultMaxGoroutine int = 10

// ErrPanic is returned by Run when the function panicked.
var ErrPanic = errors.New("panic occurred in goroutine")

// Manager runs functions in goroutines with a configurable concurrency limit.
//
// Callers of Run block until their function finishes, while the limit caps how
// many functions execute at the same time across all callers.
type Manager struct {
	mu   sync.Mutex
	errs []error
	wg   *sync.WaitGroup
	sema chan struct{}
}

// NewManager creates a new Manager with the provided maximum concurrency.
func NewManager(maxGoroutine int) *Manager {
	if maxGoroutine < 1 {
		maxGoroutine = DefaultMaxGoroutine
	}

	return &Manager{
		wg:   &sync.WaitGroup{},
		sema: make(chan struct{}, maxGoroutine), // Semaphore to limit goroutines
	}
}

// Run waits for a free slot, executes f in a managed goroutine and returns its error.
//
// If ctx is done before a slot frees up, f is not run and ctx.Err() is returned.
// f receives ctx and is expected to honor its cancellation.
func (g *Manager) Run(ctx context.Context, f func(ctx context.Context) error) error {
	select {
	case g.sema <- struct{}{}: // Acquire a semaphore slot
	case <-ctx.Done():
		slog.WarnContext(ctx, "goroutine canceled before start", "because", ctx.Err())
		return ctx.Err()
	}

	done := make(chan error, 1)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			<-g.sema // Release semaphore slot

			if rvr := recover(); rvr != nil {
				stack := debug.Stack()
				slog.ErrorContext(ctx, "panic occurred in goroutine", "stack", string(stack))

				err := fmt.Errorf("%w: %v", ErrPanic, rvr)
				g.mu.Lock()
				g.errs = append(g.errs, err)
				g.mu.Unlock()
				done <- err
			}
		}()

		done <- f(ctx)
	}()

	return <-done
}

// InFlight returns the number of functions currently holding a slot.
func (g *Manager) InFlight() int {
	return len(g.sema)
}

// Wait blocks until all running goroutines finish and returns any recorded panics.
func (g *Manager) Wait() error {
	g.wg.Wait()

	g.mu.Lock()
	defer g.mu.Unlock()

	return errors.Join(g.errs...)
}
