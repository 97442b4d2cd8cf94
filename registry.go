package hcd

import (
	"sync"

	"github.com/ehrlich-b/go-hcd/internal/logging"
)

// Registry holds controllers under stable integer handles and dispatches
// interrupt lines to every controller registered on them. A handle is not
// reused while its controller is registered.
type Registry struct {
	mu       sync.RWMutex
	ctrls    []*Controller
	lines    map[int][]int
	nextLine int
	logger   *logging.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		lines:    make(map[int][]int),
		nextLine: 1 << 16,
		logger:   logging.Default(),
	}
}

// Add creates a controller and registers it on params.IRQLine. A negative
// line gives the controller a private line of its own.
func (r *Registry) Add(h Hardware, params Params, opts *Options) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := len(r.ctrls)
	for i, c := range r.ctrls {
		if c == nil {
			id = i
			break
		}
	}
	if params.IRQLine < 0 {
		params.IRQLine = r.nextLine
		r.nextLine++
	}

	c, err := newController(id, h, params, opts)
	if err != nil {
		return nil, err
	}
	if id == len(r.ctrls) {
		r.ctrls = append(r.ctrls, c)
	} else {
		r.ctrls[id] = c
	}
	r.lines[c.irqLine] = append(r.lines[c.irqLine], id)
	r.logger.Debug("controller registered", "ctrl", id, "irq", c.irqLine, "sharing", len(r.lines[c.irqLine])-1)
	return c, nil
}

// Get returns the controller with handle id.
func (r *Registry) Get(id int) (*Controller, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.ctrls) || r.ctrls[id] == nil {
		return nil, false
	}
	return r.ctrls[id], true
}

// Controllers returns every registered controller in handle order.
func (r *Registry) Controllers() []*Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Controller, 0, len(r.ctrls))
	for _, c := range r.ctrls {
		if c != nil {
			out = append(out, c)
		}
	}
	return out
}

// Remove unregisters the controller with handle id. It does not close it.
func (r *Registry) Remove(id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.ctrls) || r.ctrls[id] == nil {
		return NewControllerError("remove", id, ErrCodeNotFound, "no such controller")
	}
	line := r.ctrls[id].irqLine
	ids := r.lines[line]
	for i, x := range ids {
		if x == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.lines, line)
	} else {
		r.lines[line] = ids
	}
	r.ctrls[id] = nil
	return nil
}

// HandleIRQ runs the interrupt routine of every controller on line and
// reports whether any of them claimed the interrupt.
func (r *Registry) HandleIRQ(line int) bool {
	r.mu.RLock()
	ids := r.lines[line]
	ctrls := make([]*Controller, 0, len(ids))
	for _, id := range ids {
		ctrls = append(ctrls, r.ctrls[id])
	}
	r.mu.RUnlock()

	claimed := false
	for _, c := range ctrls {
		if c.Interrupt() {
			claimed = true
		}
	}
	return claimed
}

// Close closes and unregisters every controller. The first error is returned.
func (r *Registry) Close() error {
	var first error
	for _, c := range r.Controllers() {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		r.Remove(c.id)
	}
	return first
}
