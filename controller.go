// Package hcd implements the command lifecycle of a host controller: it
// queues caller requests by priority, encodes them into the controller's
// command area, rings the doorbell and reconciles completions delivered by
// interrupt back to the caller.
package hcd

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/ehrlich-b/go-hcd/internal/ctrl"
	"github.com/ehrlich-b/go-hcd/internal/demux"
	"github.com/ehrlich-b/go-hcd/internal/desc"
	"github.com/ehrlich-b/go-hcd/internal/dma"
	"github.com/ehrlich-b/go-hcd/internal/eventlog"
	"github.com/ehrlich-b/go-hcd/internal/hw"
	"github.com/ehrlich-b/go-hcd/internal/interfaces"
	"github.com/ehrlich-b/go-hcd/internal/logging"
	"github.com/ehrlich-b/go-hcd/internal/queue"
	"github.com/ehrlich-b/go-hcd/internal/sched"
	"github.com/ehrlich-b/go-hcd/internal/slot"
)

// maxStatusPerInterrupt bounds how many statuses one Interrupt call consumes.
const maxStatusPerInterrupt = 256

// State represents the lifecycle state of a controller
type State string

const (
	// StateCreated: constructed, Start not yet called
	StateCreated State = "created"
	// StateRunning: accepting requests
	StateRunning State = "running"
	// StateDisabled: a fatal condition was reported; only quiesce commands run
	StateDisabled State = "disabled"
	// StateStopped: closed
	StateStopped State = "stopped"
)

// Mode is how completions are collected.
type Mode int

const (
	// ModePollingDuringInit: interrupts are off and synchronous commands
	// call the interrupt routine themselves.
	ModePollingDuringInit Mode = iota
	// ModeInterrupting: completions arrive through Interrupt.
	ModeInterrupting
)

func (m Mode) String() string {
	if m == ModeInterrupting {
		return "interrupting"
	}
	return "polling"
}

// Options contains additional options for controller creation
type Options struct {
	// Logger for controller events (if nil, the package default is used)
	Logger *zerolog.Logger

	// Observer for metrics collection, in addition to the built-in Metrics
	Observer Observer

	// OnEvent is called for every asynchronous controller event, outside
	// the controller lock.
	OnEvent func(Event)
}

type targetKey struct{ bus, target uint8 }

type finished struct {
	req  *Request
	comp Completion
}

// Controller owns one controller's slot table, command area and
// submission queue. mu guards all three plus the lock flags; the endpoint
// schedule has its own lock.
type Controller struct {
	id       int
	irqLine  int
	params   Params
	hw       interfaces.Hardware
	logger   *logging.Logger
	metrics  *Metrics
	observer Observer
	events   *eventlog.Ring
	waiter   *ctrl.Waiter
	onEvent  func(Event)

	mu      sync.Mutex
	slots   *slot.Table[*command]
	queue   *queue.Queue[*command]
	area    *dma.Area
	targets map[targetKey]bool
	buses   map[uint8]bool
	state   State
	mode    Mode
	batch   []*command
	offsets []uint32

	sched  *sched.Schedule
	reapMu sync.Mutex

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an unregistered controller with handle 0. Use a Registry to
// run several controllers on shared interrupt lines.
func New(h Hardware, params Params, opts *Options) (*Controller, error) {
	return newController(0, h, params, opts)
}

func newController(id int, h Hardware, params Params, opts *Options) (*Controller, error) {
	if h == nil {
		return nil, NewError("create", ErrCodeInvalidParameters, "nil hardware")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &Options{}
	}

	base := logging.Default()
	if opts.Logger != nil {
		base = logging.Wrap(*opts.Logger)
	}
	logger := base.WithController(id)

	area, err := dma.NewArea(h.CommandArea(), params.MaxSegments, params.Alignment)
	if err != nil {
		e := NewControllerError("create", id, ErrCodeMisconfigured, err.Error())
		e.Inner = err
		return nil, e
	}

	metrics := NewMetrics()
	c := &Controller{
		id:       id,
		irqLine:  params.IRQLine,
		params:   params,
		hw:       h,
		logger:   logger,
		metrics:  metrics,
		observer: MultiObserver(NewMetricsObserver(metrics), opts.Observer),
		events:   eventlog.New(params.EventRingSize),
		waiter: &ctrl.Waiter{
			Timeout:  params.AdminTimeout.Std(),
			Interval: params.PollInterval.Std(),
			Logger:   logger,
		},
		onEvent: opts.OnEvent,
		slots:   slot.New[*command](params.Slots),
		queue:   queue.New[*command](),
		area:    area,
		targets: make(map[targetKey]bool),
		buses:   make(map[uint8]bool),
		state:   StateCreated,
		mode:    ModePollingDuringInit,
	}

	if sh, ok := h.(interfaces.ScheduleHardware); ok {
		c.sched = sched.New(sched.Config{
			Endpoints:   params.Endpoints,
			Descriptors: params.Descriptors,
			Frame:       sh.Frame,
			Logger:      logger,
		})
		sh.AttachSchedule(c.sched)
	}

	logger.Debug("controller created", "slots", params.Slots, "area", area.Capacity(), "schedule", c.sched != nil)
	return c, nil
}

// Start initializes the configured services with interrupts off, then
// switches to interrupt mode and starts the watchdog.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateCreated {
		c.mu.Unlock()
		return NewControllerError("start", c.id, ErrCodeInvalidParameters, fmt.Sprintf("controller is %s", c.state))
	}
	c.state = StateRunning
	c.mode = ModePollingDuringInit
	c.mu.Unlock()

	c.hw.EnableInterrupts(false)
	for _, svc := range c.params.Services {
		if _, err := c.Exec(ctx, ctrl.ServiceInit(svc)); err != nil {
			c.logger.Error("service init failed", "service", svc, "error", err)
			return WrapError("start", err)
		}
	}

	c.mu.Lock()
	c.mode = ModeInterrupting
	c.mu.Unlock()
	c.hw.EnableInterrupts(true)

	if iv := c.params.WatchdogInterval.Std(); iv > 0 {
		wctx, cancel := context.WithCancel(context.Background())
		c.cancel = cancel
		c.wg.Add(1)
		go c.watchdog(wctx, iv)
	}

	c.logger.Info("controller started", "services", len(c.params.Services), "irq", c.irqLine)
	return nil
}

// Close stops the watchdog, resets the hardware and fails every queued or
// outstanding request with ErrStopped.
func (c *Controller) Close() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()

	c.hw.EnableInterrupts(false)

	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopped
	err := c.hw.Reset()
	fin := c.failOutstandingLocked(nil, "close", ErrCodeStopped)
	for _, cmd := range c.queue.Flush() {
		fin = c.failLocked(fin, cmd, NewControllerError("close", c.id, ErrCodeStopped, ""))
	}
	c.mu.Unlock()

	c.finish(fin)
	c.metrics.Stop()
	c.logger.Info("controller stopped")
	if err != nil {
		return WrapError("close", err)
	}
	return nil
}

// Submit queues r and issues as much of the queue as the controller can
// take. r.Done is called exactly once, possibly before Submit returns. A
// request refused by Submit is never passed to Done.
func (c *Controller) Submit(r *Request) error {
	return c.SubmitBatch(r)
}

// SubmitBatch queues every request before issuing any of them, so the batch
// reaches the hardware in priority order rather than arrival order. The
// batch is accepted or refused as a whole.
func (c *Controller) SubmitBatch(reqs ...*Request) error {
	cmds := make([]desc.Command, len(reqs))
	for i, r := range reqs {
		cmd, err := c.prepare(r)
		if err != nil {
			return err
		}
		cmds[i] = cmd
	}

	c.mu.Lock()
	switch c.state {
	case StateDisabled:
		c.mu.Unlock()
		return NewControllerError("submit", c.id, ErrCodeDisabled, "")
	case StateRunning:
	default:
		c.mu.Unlock()
		return NewControllerError("submit", c.id, ErrCodeStopped, fmt.Sprintf("controller is %s", c.state))
	}

	now := time.Now()
	for i, r := range reqs {
		r.submitted = now
		r.requeues = 0
		c.queue.Enqueue(&command{req: r, cmd: cmds[i], prio: r.Priority, slot: -1}, r.Priority)
	}
	c.metrics.Submitted.Add(uint64(len(reqs)))
	fin := c.drainReady(nil)
	c.mu.Unlock()

	c.finish(fin)
	return nil
}

// prepare validates r and builds its command record.
func (c *Controller) prepare(r *Request) (desc.Command, error) {
	if r == nil || r.Done == nil {
		return desc.Command{}, NewControllerError("submit", c.id, ErrCodeInvalidParameters, "request needs a Done callback")
	}
	cmd, err := r.command()
	if err == nil {
		err = desc.Validate(&cmd, c.params.MaxSegments)
	}
	if err != nil {
		e := NewControllerError("submit", c.id, ErrCodeInvalidParameters, err.Error())
		e.Inner = err
		return desc.Command{}, e
	}
	if r.ID.IsNil() {
		r.ID = xid.New()
	}
	return cmd, nil
}

// Cancel removes r from the submission queue and completes it with
// ErrCancelled. A request already handed to the hardware cannot be
// cancelled and yields ErrNotFound.
func (c *Controller) Cancel(r *Request) error {
	c.mu.Lock()
	cmd, ok := c.queue.Remove(func(x *command) bool { return x.req == r })
	c.mu.Unlock()
	if !ok {
		return NewControllerError("cancel", c.id, ErrCodeNotFound, "request is not queued")
	}

	c.metrics.Cancelled.Add(1)
	c.finish([]finished{{req: cmd.req, comp: Completion{Err: NewControllerError("cancel", c.id, ErrCodeCancelled, "")}}})
	return nil
}

// locked reports whether cmd addresses a locked bus or target. Driver
// commands are never held back. Caller holds mu.
func (c *Controller) locked(cmd *command) bool {
	if cmd.internal() || cmd.cmd.Service == desc.ServiceAdmin {
		return false
	}
	return c.buses[cmd.cmd.Bus] || c.targets[targetKey{cmd.cmd.Bus, cmd.cmd.Target}]
}

// drainReady moves queued commands into slots and the command area until
// the queue is empty or a resource runs out, then rings the doorbell once
// for the batch. Entries for locked targets are passed over. Caller holds mu.
func (c *Controller) drainReady(fin []finished) []finished {
	if c.queue.Len() == 0 || c.state == StateStopped || c.state == StateCreated {
		return fin
	}
	if c.hw.Busy() {
		return fin
	}

	c.area.BeginBatch()
	c.batch = c.batch[:0]
	c.offsets = c.offsets[:0]
	now := time.Now()

	c.queue.Drain(func(cmd *command, _ uint8) queue.Verdict {
		if c.state == StateDisabled && !(cmd.internal() && ctrl.Quiesce(&cmd.cmd)) {
			return queue.Skip
		}
		if c.locked(cmd) {
			return queue.Skip
		}

		kind := slot.Caller
		if cmd.internal() {
			kind = slot.Internal
		}
		idx, err := c.slots.Acquire(kind, cmd.cmd.Service, cmd)
		if err != nil {
			return queue.Stop
		}

		cmd.cmd.Token = demux.TokenOf(idx)
		off, _, err := c.area.Encode(&cmd.cmd)
		if err != nil {
			c.slots.Release(idx)
			if errors.Is(err, dma.ErrAreaFull) {
				return queue.Stop
			}
			fin = c.failLocked(fin, cmd, NewControllerError("encode", c.id, ErrCodeInvalidParameters, err.Error()))
			return queue.Issued
		}

		cmd.slot = idx
		cmd.issued = now
		c.batch = append(c.batch, cmd)
		c.offsets = append(c.offsets, uint32(off))
		return queue.Issued
	})

	if len(c.offsets) == 0 {
		return fin
	}

	hw.Wmb()
	if err := c.hw.Doorbell(c.offsets); err != nil {
		c.logger.Error("doorbell rejected", "records", len(c.offsets), "error", err)
		for _, cmd := range c.batch {
			c.slots.Release(cmd.slot)
			cmd.slot = -1
			e := NewControllerError("doorbell", c.id, ErrCodeIOError, err.Error())
			e.Inner = err
			fin = c.failLocked(fin, cmd, e)
		}
		return fin
	}

	c.observer.ObserveDoorbell(len(c.offsets))
	c.observer.ObserveQueueDepth(uint32(c.queue.Len()))
	return fin
}

// Interrupt services the controller's interrupt line. It reports false
// when the controller had nothing pending, leaving all state untouched.
func (c *Controller) Interrupt() bool {
	var (
		fin     []finished
		events  []Event
		handled bool
		reap    bool
	)

	c.mu.Lock()
	for i := 0; i < maxStatusPerInterrupt; i++ {
		st := c.hw.ReadStatus()
		if !st.Pending() {
			break
		}
		handled = true
		c.hw.Ack(st)
		hw.Mb()

		if st.Flags&interfaces.StatusFatal != 0 {
			fin = c.disableLocked(fin)
		}
		if st.Flags&(interfaces.StatusDoneQueue|interfaces.StatusFrame) != 0 {
			reap = true
		}
		if st.Flags&interfaces.StatusCommand != 0 {
			fin, events = c.completeLocked(st, fin, events)
		}
	}
	if !handled {
		c.mu.Unlock()
		c.observer.ObserveCompletion(demux.Spurious)
		return false
	}
	fin = c.drainReady(fin)
	c.mu.Unlock()

	c.finish(fin)
	if c.onEvent != nil {
		for _, ev := range events {
			c.onEvent(ev)
		}
	}
	if reap {
		c.reapTransfers()
	}
	return true
}

func (c *Controller) slotKind(i int) (slot.Kind, bool) {
	e, ok := c.slots.Lookup(i)
	return e.Kind, ok
}

// completeLocked handles one command status. Caller holds mu.
func (c *Controller) completeLocked(st interfaces.Status, fin []finished, events []Event) ([]finished, []Event) {
	comp := demux.Classify(st, c.slotKind)
	c.observer.ObserveCompletion(comp.Kind)

	switch comp.Kind {
	case demux.AsyncEvent:
		ev, _ := c.events.Store(eventlog.SourceAsync, st.Code, statusData(st))
		events = append(events, ev)
		c.logger.Info("controller event", "code", st.Code, "info", st.Info, "count", ev.Count)

	case demux.UnknownService:
		c.driverEventLocked(DriverEventUnknownService, st)
		c.logger.Warn("command for uninitialized service", "service", st.Info, "status", st.Code)

	case demux.Invalid:
		c.driverEventLocked(DriverEventInvalidToken, st)
		c.logger.Warn("completion token out of range, dropped", "token", st.Token)

	case demux.Stale:
		c.driverEventLocked(DriverEventStale, st)
		c.logger.WithSlot(comp.Slot).Debug("stale completion", "status", st.Code)

	case demux.Internal:
		e := c.slots.Release(comp.Slot)
		cmd := e.Value
		cmd.slot = -1
		out := demux.Evaluate(e.Service, true, st.Code)
		if out.Action == demux.RetryInternal && c.state == StateDisabled && !ctrl.Quiesce(&cmd.cmd) {
			cmd.pending.Complete(ctrl.Result{Code: st.Code, Info: st.Info},
				NewSlotError("exec", c.id, comp.Slot, ErrCodeDisabled, "busy after fatal error"))
			break
		}
		if out.Action == demux.RetryInternal && cmd.retries < c.params.InternalRetries {
			cmd.retries++
			c.queue.Enqueue(cmd, 0)
			c.observer.ObserveRequeue(true)
			c.logger.Debug("internal command busy, retrying", "op", desc.OpName(cmd.cmd.Opcode), "retry", cmd.retries)
			break
		}
		c.events.Store(eventlog.SourceSync, uint16(cmd.cmd.Opcode), statusData(st))
		cmd.pending.Complete(ctrl.Result{Code: st.Code, Info: st.Info},
			resultError("exec", c.id, comp.Slot, e.Service, st.Code))

	case demux.CallerRequest:
		e := c.slots.Release(comp.Slot)
		cmd := e.Value
		cmd.slot = -1
		out := demux.Evaluate(e.Service, false, st.Code)
		if out.Action == demux.Requeue && c.state == StateDisabled {
			fin = append(fin, finished{req: cmd.req, comp: Completion{
				Status: st.Code,
				Info:   st.Info,
				Err:    NewSlotError("complete", c.id, comp.Slot, ErrCodeDisabled, "busy after fatal error"),
			}})
			break
		}
		if out.Action == demux.Requeue {
			cmd.req.requeues++
			c.queue.Enqueue(cmd, cmd.prio)
			c.observer.ObserveRequeue(false)
			break
		}
		fin = append(fin, finished{req: cmd.req, comp: Completion{
			Status: st.Code,
			Info:   st.Info,
			Err:    resultError("complete", c.id, comp.Slot, e.Service, st.Code),
		}})
	}
	return fin, events
}

// disableLocked takes the controller out of service after a fatal error.
// Queued caller requests fail; queued quiesce commands stay. Caller holds mu.
func (c *Controller) disableLocked(fin []finished) []finished {
	if c.state == StateDisabled || c.state == StateStopped {
		return fin
	}
	c.state = StateDisabled
	c.driverEventLocked(DriverEventFatal, interfaces.Status{})
	c.logger.Error("fatal controller error, controller disabled", "outstanding", c.slots.Used(), "queued", c.queue.Len())

	for _, cmd := range c.queue.Flush() {
		if cmd.internal() && ctrl.Quiesce(&cmd.cmd) {
			c.queue.Enqueue(cmd, cmd.prio)
			continue
		}
		fin = c.failLocked(fin, cmd, NewControllerError("disable", c.id, ErrCodeDisabled, ""))
	}
	return fin
}

// failLocked completes cmd with err: internal commands through their
// pending result, caller requests through fin. Caller holds mu.
func (c *Controller) failLocked(fin []finished, cmd *command, err error) []finished {
	if cmd.internal() {
		cmd.pending.Complete(ctrl.Result{}, err)
		return fin
	}
	return append(fin, finished{req: cmd.req, comp: Completion{Err: err}})
}

// failOutstandingLocked force-releases every occupied slot. Caller holds mu.
func (c *Controller) failOutstandingLocked(fin []finished, op string, code ErrorCode) []finished {
	var occupied []int
	c.slots.Each(func(i int, _ slot.Entry[*command]) { occupied = append(occupied, i) })
	for _, i := range occupied {
		cmd := c.slots.Release(i).Value
		cmd.slot = -1
		fin = c.failLocked(fin, cmd, NewSlotError(op, c.id, i, code, ""))
	}
	return fin
}

// finish delivers completions. Never called with mu held.
func (c *Controller) finish(fin []finished) {
	for _, f := range fin {
		r := f.req
		var latency uint64
		if !r.submitted.IsZero() {
			latency = uint64(time.Since(r.submitted))
		}
		c.observer.ObserveCommand(uint64(r.Length), latency, f.comp.Err == nil)
		if f.comp.Err != nil {
			c.logger.WithRequest(r.ID.String(), desc.OpName(r.Opcode)).Debug("request failed", "error", f.comp.Err)
		}
		r.Done(r, f.comp)
	}
}

// Exec runs an administrative command and waits for its result. During
// Start it polls the interrupt routine itself; afterwards it waits for the
// interrupt path. On a disabled controller only quiesce commands run.
func (c *Controller) Exec(ctx context.Context, cmd AdminCommand) (AdminResult, error) {
	cmd.Flags |= desc.FlagInternal
	if err := desc.Validate(&cmd, c.params.MaxSegments); err != nil {
		e := NewControllerError("exec", c.id, ErrCodeInvalidParameters, err.Error())
		e.Inner = err
		return AdminResult{}, e
	}

	p := ctrl.NewPending()
	ic := &command{pending: p, cmd: cmd, prio: c.params.AdminPriority, slot: -1}

	c.mu.Lock()
	switch {
	case c.state == StateStopped || c.state == StateCreated:
		c.mu.Unlock()
		return AdminResult{}, NewControllerError("exec", c.id, ErrCodeStopped, fmt.Sprintf("controller is %s", c.state))
	case c.state == StateDisabled && !ctrl.Quiesce(&cmd):
		c.mu.Unlock()
		return AdminResult{}, NewControllerError("exec", c.id, ErrCodeDisabled, desc.OpName(cmd.Opcode)+" not allowed")
	}
	c.queue.Enqueue(ic, ic.prio)
	fin := c.drainReady(nil)
	polling := c.mode == ModePollingDuringInit
	c.mu.Unlock()
	c.finish(fin)

	if polling {
		if err := c.waiter.Poll(ctx, func() bool {
			c.Interrupt()
			return p.Done()
		}); err != nil {
			return c.abandon(ic, err)
		}
		return p.Result()
	}

	res, err := p.Wait(ctx, c.params.AdminTimeout.Std())
	if err != nil && !p.Done() {
		return c.abandon(ic, err)
	}
	return res, err
}

// abandon gives up on a synchronous command: it leaves the queue, or its
// slot is force-released and the hardware busy state cleared. A late
// completion for the slot is then reported as stale.
func (c *Controller) abandon(ic *command, cause error) (AdminResult, error) {
	code := ErrCodeTimeout
	if errors.Is(cause, context.Canceled) {
		code = ErrCodeCancelled
	}
	e := NewControllerError("exec", c.id, code, desc.OpName(ic.cmd.Opcode))
	e.Inner = cause

	c.mu.Lock()
	if ic.pending.Done() {
		c.mu.Unlock()
		return ic.pending.Result()
	}
	if _, ok := c.queue.Remove(func(x *command) bool { return x == ic }); !ok && ic.slot >= 0 {
		if en, _ := c.slots.Lookup(ic.slot); en.Value == ic {
			e.Slot = ic.slot
			c.slots.Release(ic.slot)
			c.hw.ClearBusy()
			c.driverEventLocked(DriverEventTimeout, interfaces.Status{Token: demux.TokenOf(ic.slot)})
		}
		ic.slot = -1
	}
	ic.pending.Complete(ctrl.Result{}, e)
	fin := c.drainReady(nil)
	c.mu.Unlock()

	c.finish(fin)
	c.logger.WithError(cause).Warn("synchronous command abandoned", "op", desc.OpName(ic.cmd.Opcode))
	return AdminResult{}, e
}

// CheckTimeouts force-releases every slot issued longer than the hardware
// timeout before now. Callers get an I/O error wrapping ErrTimeout. It
// returns the number of slots released.
func (c *Controller) CheckTimeouts(now time.Time) int {
	timeout := c.params.HardwareTimeout.Std()

	c.mu.Lock()
	var expired []int
	c.slots.Each(func(i int, e slot.Entry[*command]) {
		if now.Sub(e.Value.issued) > timeout {
			expired = append(expired, i)
		}
	})

	var fin []finished
	for _, i := range expired {
		cmd := c.slots.Release(i).Value
		cmd.slot = -1
		c.driverEventLocked(DriverEventTimeout, interfaces.Status{Token: demux.TokenOf(i)})
		e := NewSlotError("watchdog", c.id, i, ErrCodeIOError, "hardware timeout")
		e.Inner = ErrTimeout
		fin = c.failLocked(fin, cmd, e)
		c.logger.WithSlot(i).Warn("hardware timeout, slot released", "op", desc.OpName(cmd.cmd.Opcode))
	}
	if len(expired) > 0 {
		c.hw.ClearBusy()
		c.metrics.Timeouts.Add(uint64(len(expired)))
	}
	fin = c.drainReady(fin)
	c.mu.Unlock()

	c.finish(fin)
	return len(expired)
}

func (c *Controller) watchdog(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			c.CheckTimeouts(now)
			c.reapTransfers()
		}
	}
}

// Reset quiesces the hardware and fails every outstanding command with an
// I/O error. Queued requests stay queued and are issued afterwards.
func (c *Controller) Reset() error {
	c.mu.Lock()
	err := c.hw.Reset()
	fin := c.failOutstandingLocked(nil, "reset", ErrCodeIOError)
	c.driverEventLocked(DriverEventReset, interfaces.Status{})
	fin = c.drainReady(fin)
	c.mu.Unlock()

	c.finish(fin)
	c.logger.Warn("controller reset", "failed", len(fin))
	if err != nil {
		return WrapError("reset", err)
	}
	return nil
}

// LockTarget holds back requests for one target. They stay queued in order
// while requests behind them are issued.
func (c *Controller) LockTarget(bus, target uint8) {
	c.mu.Lock()
	c.targets[targetKey{bus, target}] = true
	c.mu.Unlock()
}

// UnlockTarget releases a target lock and issues what it held back.
func (c *Controller) UnlockTarget(bus, target uint8) {
	c.mu.Lock()
	delete(c.targets, targetKey{bus, target})
	fin := c.drainReady(nil)
	c.mu.Unlock()
	c.finish(fin)
}

// LockBus holds back requests for every target on a bus.
func (c *Controller) LockBus(bus uint8) {
	c.mu.Lock()
	c.buses[bus] = true
	c.mu.Unlock()
}

// UnlockBus releases a bus lock.
func (c *Controller) UnlockBus(bus uint8) {
	c.mu.Lock()
	delete(c.buses, bus)
	fin := c.drainReady(nil)
	c.mu.Unlock()
	c.finish(fin)
}

// statusData packs a status into an event payload.
func statusData(st interfaces.Status) []byte {
	var b [eventlog.DataSize]byte
	binary.LittleEndian.PutUint16(b[0:2], st.Token)
	binary.LittleEndian.PutUint16(b[2:4], st.Code)
	binary.LittleEndian.PutUint32(b[4:8], st.Info)
	return b[:]
}

// driverEventLocked records driver bookkeeping. Caller holds mu.
func (c *Controller) driverEventLocked(index uint16, st interfaces.Status) {
	c.events.Store(eventlog.SourceDriver, index, statusData(st))
}

// ID returns the controller handle.
func (c *Controller) ID() int { return c.id }

// IRQLine returns the interrupt line the controller is registered on.
func (c *Controller) IRQLine() int { return c.irqLine }

// Metrics returns the controller's built-in metrics.
func (c *Controller) Metrics() *Metrics { return c.metrics }

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns how completions are collected.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ControllerInfo is a point-in-time view of a controller.
type ControllerInfo struct {
	ID              int    `json:"id"`
	IRQLine         int    `json:"irq_line"`
	State           State  `json:"state"`
	Mode            string `json:"mode"`
	Slots           int    `json:"slots"`
	SlotsUsed       int    `json:"slots_used"`
	Queued          int    `json:"queued"`
	AreaBytes       int    `json:"area_bytes"`
	Events          int    `json:"events"`
	Endpoints       int    `json:"endpoints"`
	Descriptors     int    `json:"descriptors"`
	PendingTeardown int    `json:"pending_teardown"`
}

// Info returns occupancy counts.
func (c *Controller) Info() ControllerInfo {
	c.mu.Lock()
	info := ControllerInfo{
		ID:        c.id,
		IRQLine:   c.irqLine,
		State:     c.state,
		Mode:      c.mode.String(),
		Slots:     c.slots.Len(),
		SlotsUsed: c.slots.Used(),
		Queued:    c.queue.Len(),
		AreaBytes: c.area.Capacity(),
		Events:    c.events.Len(),
	}
	c.mu.Unlock()

	if c.sched != nil {
		info.Endpoints = c.sched.Endpoints()
		info.Descriptors = c.sched.Descriptors()
		info.PendingTeardown = c.sched.PendingTeardown()
	}
	return info
}

// ReadEvent reads the event at h and returns the handle of the next one.
// A handle the ring has overwritten resumes at the oldest event.
func (c *Controller) ReadEvent(h EventHandle) (Event, EventHandle, bool) {
	return c.events.Read(h)
}

// ReadEventForConsumer returns the oldest event consumer has not seen.
func (c *Controller) ReadEventForConsumer(consumer int) (Event, bool, error) {
	return c.events.ReadForConsumer(consumer)
}

// Events returns every stored event, oldest first.
func (c *Controller) Events() []Event {
	return c.events.Snapshot()
}

// LogEvent stores an event from a caller-defined source.
func (c *Controller) LogEvent(src EventSource, index uint16, data []byte) (Event, bool) {
	return c.events.Store(src, index, data)
}

// ClearEvents empties the event ring. Sequence numbers keep increasing.
func (c *Controller) ClearEvents() {
	c.events.Clear()
}
