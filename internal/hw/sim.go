// Package hw contains a simulated command controller. It implements the
// register surface the controller core drives, executes posted commands
// against media and walks an endpoint schedule frame by frame.
package hw

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ehrlich-b/go-hcd/internal/constants"
	"github.com/ehrlich-b/go-hcd/internal/desc"
	"github.com/ehrlich-b/go-hcd/internal/dma"
	"github.com/ehrlich-b/go-hcd/internal/interfaces"
	"github.com/ehrlich-b/go-hcd/internal/logging"
)

var (
	ErrBusy    = errors.New("doorbell rung while the previous batch is pending")
	ErrOffset  = errors.New("posted offset outside the command area")
	ErrStopped = errors.New("simulator stopped")
)

// BlockSize is the sector size of the cache service.
const BlockSize = 512

// Config configures a simulator.
type Config struct {
	AreaSize    int
	MaxSegments int
	Alignment   int

	// Media backs the cache service. Nil media reads zeros.
	Media interfaces.Media
	// Targets is the number of host drives the cache service exposes.
	Targets int
	// Bus resolves scatter-gather addresses.
	Bus *Bus

	// Auto runs posted commands and frames on background goroutines and
	// raises IRQ. Otherwise the test drives the simulator by hand.
	Auto          bool
	FrameInterval time.Duration
	IRQ           func()

	Logger *logging.Logger
}

// Sim is a simulated controller.
type Sim struct {
	cfg  Config
	mem  *dma.Memory
	area []byte

	mu       sync.Mutex
	busy     bool
	posted   []desc.Command
	inflight map[uint16]desc.Command
	fifo     []interfaces.Status
	sticky   interfaces.StatusFlags
	irqOn    bool
	services map[uint8]bool
	busyNext int
	failNext uint16
	doorbell uint64

	frame atomic.Uint64
	sched interfaces.ScheduleMemory

	kick   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var (
	_ interfaces.Hardware         = (*Sim)(nil)
	_ interfaces.ScheduleHardware = (*Sim)(nil)
)

// NewSim maps the command area and returns a stopped simulator.
func NewSim(cfg Config) (*Sim, error) {
	if cfg.AreaSize <= 0 {
		cfg.AreaSize = constants.DefaultAreaSize
	}
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = constants.DefaultMaxSegments
	}
	if cfg.Alignment <= 0 {
		cfg.Alignment = constants.DefaultAlignment
	}
	if cfg.Targets <= 0 {
		cfg.Targets = 1
	}
	if cfg.Bus == nil {
		cfg.Bus = NewBus()
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Nop()
	}

	mem, err := dma.Map(cfg.AreaSize)
	if err != nil {
		return nil, err
	}
	return &Sim{
		cfg:      cfg,
		mem:      mem,
		area:     mem.Bytes()[:cfg.AreaSize],
		inflight: make(map[uint16]desc.Command),
		services: make(map[uint8]bool),
		kick:     make(chan struct{}, 1),
	}, nil
}

// Bus returns the bus scatter-gather addresses are resolved through.
func (s *Sim) Bus() *Bus { return s.cfg.Bus }

// Start launches the command and frame workers in auto mode.
func (s *Sim) Start(ctx context.Context) {
	if !s.cfg.Auto {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.commandLoop(ctx)
	go s.frameLoop(ctx)
}

// Close stops the workers and unmaps the command area.
func (s *Sim) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	return s.mem.Close()
}

func (s *Sim) commandLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.kick:
		}
		cmds := s.Consume()
		for i := range cmds {
			s.Execute(&cmds[i])
		}
		if len(cmds) > 0 {
			s.raise()
		}
	}
}

func (s *Sim) frameLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.AdvanceFrame()
		}
	}
}

// raise calls the IRQ callback if interrupts are enabled and something is pending.
func (s *Sim) raise() {
	s.mu.Lock()
	fire := s.irqOn && s.cfg.IRQ != nil && (len(s.fifo) > 0 || s.sticky != 0)
	s.mu.Unlock()
	if fire {
		s.cfg.IRQ()
	}
}

// Register surface

func (s *Sim) CommandArea() []byte { return s.area }

func (s *Sim) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Doorbell decodes the posted records immediately; the area may be reused
// as soon as the controller has taken them.
func (s *Sim) Doorbell(offsets []uint32) error {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return ErrBusy
	}
	for _, off := range offsets {
		if int(off) >= len(s.area) {
			s.mu.Unlock()
			return fmt.Errorf("%w: %d", ErrOffset, off)
		}
		var c desc.Command
		if _, err := desc.Unmarshal(s.area[off:], &c, s.cfg.MaxSegments); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("bad record at offset %d: %w", off, err)
		}
		s.posted = append(s.posted, c)
	}
	s.busy = len(s.posted) > 0
	s.doorbell++
	s.mu.Unlock()

	if s.cfg.Auto {
		select {
		case s.kick <- struct{}{}:
		default:
		}
	}
	return nil
}

func (s *Sim) ReadStatus() interfaces.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := interfaces.Status{Flags: s.sticky}
	if len(s.fifo) > 0 {
		head := s.fifo[0]
		st.Flags |= interfaces.StatusCommand
		st.Token = head.Token
		st.Code = head.Code
		st.Info = head.Info
	}
	return st
}

func (s *Sim) Ack(st interfaces.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.Flags&interfaces.StatusCommand != 0 && len(s.fifo) > 0 && s.fifo[0].Token == st.Token {
		s.fifo = s.fifo[1:]
	}
	s.sticky &^= st.Flags &^ interfaces.StatusCommand
}

func (s *Sim) EnableInterrupts(on bool) {
	s.mu.Lock()
	s.irqOn = on
	s.mu.Unlock()
	if on {
		s.raise()
	}
}

func (s *Sim) ClearBusy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.posted = nil
}

func (s *Sim) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	s.posted = nil
	s.fifo = nil
	s.sticky = 0
	s.busyNext = 0
	s.failNext = 0
	clear(s.inflight)
	s.cfg.Logger.Debug("controller reset")
	return nil
}

func (s *Sim) Frame() uint64 { return s.frame.Load() }

func (s *Sim) AttachSchedule(mem interfaces.ScheduleMemory) {
	s.mu.Lock()
	s.sched = mem
	s.mu.Unlock()
}

// Manual controls

// Posted returns the records of the pending doorbell batch.
func (s *Sim) Posted() []desc.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]desc.Command(nil), s.posted...)
}

// Consume takes the pending batch, frees the doorbell semaphore and
// returns the commands now in flight.
func (s *Sim) Consume() []desc.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	cmds := s.posted
	s.posted = nil
	s.busy = false
	for _, c := range cmds {
		s.inflight[c.Token] = c
	}
	return cmds
}

// Inflight returns the number of consumed commands without a completion.
func (s *Sim) Inflight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Doorbells returns how often the doorbell was rung.
func (s *Sim) Doorbells() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doorbell
}

// Complete reports a completion for token.
func (s *Sim) Complete(token, code uint16, info uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, token)
	s.fifo = append(s.fifo, interfaces.Status{Token: token, Code: code, Info: info})
}

// Drop forgets an in-flight command so it never completes.
func (s *Sim) Drop(token uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, token)
}

// PostEvent reports an asynchronous controller event.
func (s *Sim) PostEvent(code uint16, info uint32) {
	s.Inject(interfaces.Status{Token: constants.TokenAsyncEvent, Code: code, Info: info})
}

// Inject queues a raw command status, valid or not.
func (s *Sim) Inject(st interfaces.Status) {
	s.mu.Lock()
	s.fifo = append(s.fifo, interfaces.Status{Token: st.Token, Code: st.Code, Info: st.Info})
	s.mu.Unlock()
	s.raise()
}

// SetFatal raises the unrecoverable error condition.
func (s *Sim) SetFatal() {
	s.mu.Lock()
	s.sticky |= interfaces.StatusFatal
	s.mu.Unlock()
	s.raise()
}

// BusyNext makes the next n executed commands complete with StatusBusy.
func (s *Sim) BusyNext(n int) {
	s.mu.Lock()
	s.busyNext = n
	s.mu.Unlock()
}

// FailNext makes the next executed command complete with code.
func (s *Sim) FailNext(code uint16) {
	s.mu.Lock()
	s.failNext = code
	s.mu.Unlock()
}

// InitService marks a service initialized without a command.
func (s *Sim) InitService(service uint8) {
	s.mu.Lock()
	s.services[service] = true
	s.mu.Unlock()
}
