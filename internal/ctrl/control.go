// Package ctrl runs synchronous administrative commands: it builds their
// command records and waits for their completion, either by polling the
// interrupt check routine or by blocking on an interrupt-driven signal.
package ctrl

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ehrlich-b/go-hcd/internal/constants"
	"github.com/ehrlich-b/go-hcd/internal/logging"
)

// ErrTimeout is returned when a command does not complete before its deadline.
var ErrTimeout = errors.New("synchronous command timed out")

// Result is the status the controller reported for a synchronous command.
type Result struct {
	Code uint16
	Info uint32
}

// Pending tracks one synchronous command from issue to completion.
type Pending struct {
	once   sync.Once
	done   chan struct{}
	mu     sync.Mutex
	result Result
	err    error
}

// NewPending returns an incomplete Pending.
func NewPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

// Complete records the result. Only the first call has an effect.
func (p *Pending) Complete(r Result, err error) {
	p.once.Do(func() {
		p.mu.Lock()
		p.result = r
		p.err = err
		p.mu.Unlock()
		close(p.done)
	})
}

// Done reports whether the command has completed.
func (p *Pending) Done() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the recorded result. Only valid once Done is true.
func (p *Pending) Result() (Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result, p.err
}

// Wait blocks until the command completes, ctx ends or timeout elapses.
func (p *Pending) Wait(ctx context.Context, timeout time.Duration) (Result, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-p.done:
		return p.Result()
	case <-timer.C:
		return Result{}, ErrTimeout
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Waiter polls for completion while interrupts are disabled.
type Waiter struct {
	Timeout  time.Duration
	Interval time.Duration
	Logger   *logging.Logger
}

// NewWaiter returns a waiter with the default admin timeout and poll interval.
func NewWaiter(logger *logging.Logger) *Waiter {
	return &Waiter{
		Timeout:  constants.AdminTimeout,
		Interval: constants.PollInterval,
		Logger:   logger,
	}
}

// Poll calls check until it returns true, the deadline passes or ctx ends.
// check runs the controller's interrupt routine itself and reports whether
// the awaited command has completed.
func (w *Waiter) Poll(ctx context.Context, check func() bool) error {
	deadline := time.Now().Add(w.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	polls := 0
	for {
		polls++
		if check() {
			if w.Logger != nil {
				w.Logger.Debug("poll complete", "polls", polls)
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			if w.Logger != nil {
				w.Logger.Warn("poll deadline exceeded", "polls", polls, "timeout", w.Timeout)
			}
			return ErrTimeout
		}
		time.Sleep(w.Interval)
	}
}
