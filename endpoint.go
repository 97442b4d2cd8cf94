package hcd

import (
	"context"
	"errors"
	"time"

	"github.com/rs/xid"

	"github.com/ehrlich-b/go-hcd/internal/sched"
)

// Endpoint kinds
type EndpointKind = sched.Kind

const (
	EndpointControl  = sched.Control
	EndpointBulk     = sched.Bulk
	EndpointPeriodic = sched.Periodic
)

// EndpointState is the lifecycle state of an endpoint.
type EndpointState = sched.State

const (
	EndpointUnlinked        = sched.StateUnlinked
	EndpointOperational     = sched.StateOperational
	EndpointDeleteRequested = sched.StateDeleteRequested
)

// EndpointConfig describes an endpoint to open.
type EndpointConfig = sched.EndpointConfig

// EndpointInfo is a point-in-time view of an endpoint.
type EndpointInfo = sched.Info

// Transfer completion codes reported in TransferError.
const (
	TransferOK    = sched.CodeOK
	TransferCRC   = sched.CodeCRC
	TransferStall = sched.CodeStall
)

// Endpoint is an open endpoint in the controller's schedule.
type Endpoint struct {
	c *Controller
	h sched.Handle
}

// Transfer is one unit of endpoint work. Done is called exactly once, with
// a nil error on success, ErrCancelled when the transfer was cancelled or
// its endpoint destroyed, or an I/O error carrying the descriptor code.
type Transfer struct {
	Segments []Segment
	Done     func(t *Transfer, err error)

	st   sched.Transfer
	done chan struct{}
	err  error
}

// ID returns the transfer id, assigned on submit.
func (t *Transfer) ID() xid.ID { return t.st.ID }

// Wait blocks until the transfer finishes or ctx ends.
func (t *Transfer) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transfer) finished() bool {
	if t.done == nil {
		return false
	}
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Transfer) bytes() uint64 {
	var n uint64
	for _, s := range t.Segments {
		n += uint64(s.Len)
	}
	return n
}

// OpenEndpoint allocates an endpoint. It is linked into the schedule when
// the first transfer is submitted.
func (c *Controller) OpenEndpoint(cfg EndpointConfig) (*Endpoint, error) {
	if c.sched == nil {
		return nil, NewControllerError("open endpoint", c.id, ErrCodeMisconfigured, "hardware has no endpoint schedule")
	}
	h, err := c.sched.Open(cfg)
	if err != nil {
		return nil, c.schedError("open endpoint", err)
	}
	c.logger.WithEndpoint(h.String()).Debug("endpoint opened", "kind", cfg.Kind, "interval", cfg.Interval)
	return &Endpoint{c: c, h: h}, nil
}

// String returns the endpoint handle.
func (ep *Endpoint) String() string { return ep.h.String() }

// Info returns the endpoint state. A destroyed endpoint yields ErrNotFound.
func (ep *Endpoint) Info() (EndpointInfo, error) {
	info, err := ep.c.sched.Info(ep.h)
	if err != nil {
		return info, ep.c.schedError("endpoint info", err)
	}
	return info, nil
}

// Submit queues t. Transfers on one endpoint complete in submission order.
func (ep *Endpoint) Submit(t *Transfer) error {
	if t == nil || t.Done == nil {
		return NewControllerError("submit transfer", ep.c.id, ErrCodeInvalidParameters, "transfer needs a Done callback")
	}
	if ep.c.State() != StateRunning {
		return NewControllerError("submit transfer", ep.c.id, ErrCodeStopped, "controller not running")
	}
	if t.done != nil && !t.finished() {
		return NewControllerError("submit transfer", ep.c.id, ErrCodeBusy, "transfer already queued")
	}

	t.st = sched.Transfer{ID: t.st.ID, Segments: t.Segments, Owner: t}
	t.done = make(chan struct{})
	t.err = nil
	if err := ep.c.sched.Submit(ep.h, &t.st); err != nil {
		t.done = nil
		return ep.c.schedError("submit transfer", err)
	}
	return nil
}

// CancelTransfer cancels t and waits until the schedule has given back
// its descriptors. ErrCancelTimeout is returned when that takes longer
// than the cancel timeout; t still completes later.
func (c *Controller) CancelTransfer(ctx context.Context, t *Transfer) error {
	if err := c.CancelTransferAsync(t); err != nil {
		return err
	}
	return c.waitUntil(ctx, "cancel transfer", t.finished)
}

// CancelTransferAsync starts cancellation of t and returns. t.Done reports
// the outcome once the endpoint's teardown epoch has passed.
func (c *Controller) CancelTransferAsync(t *Transfer) error {
	if c.sched == nil {
		return NewControllerError("cancel transfer", c.id, ErrCodeMisconfigured, "hardware has no endpoint schedule")
	}
	if err := c.sched.CancelTransfer(&t.st); err != nil {
		return c.schedError("cancel transfer", err)
	}
	return nil
}

// Close destroys the endpoint and waits until the controller can no longer
// reference it. Queued transfers complete with ErrCancelled.
func (ep *Endpoint) Close(ctx context.Context) error {
	freed, err := ep.CloseAsync()
	if err != nil || freed {
		return err
	}
	return ep.c.waitUntil(ctx, "close endpoint", func() bool {
		_, err := ep.c.sched.Info(ep.h)
		return errors.Is(err, sched.ErrStaleEndpoint)
	})
}

// CloseAsync requests destruction and reports whether the endpoint was
// freed at once. Otherwise it is freed by a later drain.
func (ep *Endpoint) CloseAsync() (bool, error) {
	freed, err := ep.c.sched.Close(ep.h)
	if err != nil {
		return false, ep.c.schedError("close endpoint", err)
	}
	ep.c.logger.WithEndpoint(ep.h.String()).Debug("endpoint close requested", "freed", freed)
	return freed, nil
}

// waitUntil drains the schedule every poll interval until cond holds.
func (c *Controller) waitUntil(ctx context.Context, op string, cond func() bool) error {
	c.reapTransfers()
	if cond() {
		return nil
	}

	timer := time.NewTimer(c.params.CancelTimeout.Std())
	defer timer.Stop()
	ticker := time.NewTicker(c.params.PollInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			e := NewControllerError(op, c.id, ErrCodeCancelled, "")
			e.Inner = ctx.Err()
			return e
		case <-timer.C:
			c.logger.Warn("cancellation did not finish in time", "op", op, "timeout", c.params.CancelTimeout.Std())
			return NewControllerError(op, c.id, ErrCodeCancelTimeout, "")
		case <-ticker.C:
			c.reapTransfers()
			if cond() {
				return nil
			}
		}
	}
}

// reapTransfers completes every transfer the schedule has finished.
func (c *Controller) reapTransfers() {
	if c.sched == nil {
		return
	}
	c.reapMu.Lock()
	defer c.reapMu.Unlock()

	for _, st := range c.sched.Drain() {
		t, ok := st.Owner.(*Transfer)
		if !ok {
			continue
		}
		switch {
		case st.Cancelled:
			t.err = NewControllerError("transfer", c.id, ErrCodeCancelled, "")
		case st.Code != sched.CodeOK:
			e := NewStatusError("transfer", c.id, ErrCodeIOError, uint16(st.Code))
			e.Msg = "transfer descriptor error"
			t.err = e
		}
		c.observer.ObserveTransfer(t.bytes(), st.Cancelled, t.err == nil)
		close(t.done)
		t.Done(t, t.err)
	}
}

func (c *Controller) schedError(op string, err error) error {
	var code ErrorCode
	switch {
	case errors.Is(err, sched.ErrStaleEndpoint),
		errors.Is(err, sched.ErrNotQueued),
		errors.Is(err, sched.ErrTransferFinished):
		code = ErrCodeNotFound
	case errors.Is(err, sched.ErrEndpointClosing), errors.Is(err, sched.ErrTransferQueued):
		code = ErrCodeBusy
	case errors.Is(err, sched.ErrNoDescriptors):
		code = ErrCodeInsufficientMemory
	default:
		code = ErrCodeInvalidParameters
	}
	e := NewControllerError(op, c.id, code, err.Error())
	e.Inner = err
	return e
}
