package hcd

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ehrlich-b/go-hcd/internal/constants"
	"github.com/ehrlich-b/go-hcd/internal/desc"
)

// Duration is a time.Duration that reads and writes as "100ms" in YAML.
type Duration time.Duration

// UnmarshalYAML accepts a Go duration string or a bare integer of nanoseconds.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		var ns int64
		if nerr := node.Decode(&ns); nerr != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		v = time.Duration(ns)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Params contains parameters for creating a controller
type Params struct {
	// Command path sizing
	Slots       int `yaml:"slots"`        // Concurrently outstanding commands (default: 32)
	AreaSize    int `yaml:"area_bytes"`   // DMA command area size in bytes (default: 4KB)
	MaxSegments int `yaml:"max_segments"` // Scatter-gather entries per command (default: 32)
	Alignment   int `yaml:"alignment"`    // Record alignment in bytes (default: 8)

	EventRingSize int `yaml:"event_ring_size"` // Events kept before the oldest is overwritten

	// Priorities
	AdminPriority   uint8 `yaml:"admin_priority"`   // Queue priority of Exec commands
	InternalRetries int   `yaml:"internal_retries"` // Busy re-issues of a driver command

	// Timeouts
	AdminTimeout     Duration `yaml:"admin_timeout"`
	CancelTimeout    Duration `yaml:"cancel_timeout"`
	HardwareTimeout  Duration `yaml:"hardware_timeout"`
	PollInterval     Duration `yaml:"poll_interval"`
	WatchdogInterval Duration `yaml:"watchdog_interval"` // 0 disables the watchdog goroutine

	// Interrupt line shared with other controllers (-1 for a private line)
	IRQLine int `yaml:"irq_line"`

	// Services initialized by Start while interrupts are still off
	Services []uint8 `yaml:"services"`

	// Schedule sizing, used when the hardware chases an endpoint schedule
	Endpoints   int `yaml:"endpoints"`
	Descriptors int `yaml:"descriptors"`
}

// DefaultParams returns default controller parameters
func DefaultParams() Params {
	return Params{
		Slots:         constants.DefaultSlots,
		AreaSize:      constants.DefaultAreaSize,
		MaxSegments:   constants.DefaultMaxSegments,
		Alignment:     constants.DefaultAlignment,
		EventRingSize: constants.DefaultEventRingSize,

		AdminPriority:   0,
		InternalRetries: constants.DefaultInternalRetries,

		AdminTimeout:     Duration(constants.AdminTimeout),
		CancelTimeout:    Duration(constants.CancelTimeout),
		HardwareTimeout:  Duration(constants.HardwareTimeout),
		PollInterval:     Duration(constants.PollInterval),
		WatchdogInterval: Duration(constants.WatchdogInterval),

		IRQLine:  constants.AutoAssignIRQLine,
		Services: []uint8{desc.ServiceCache, desc.ServiceRaw, desc.ServiceAdmin},

		Endpoints:   constants.MaxEndpoints,
		Descriptors: constants.MaxTransferDescriptors,
	}
}

// ParseParams reads YAML over the defaults. Keys that are absent keep
// their default value.
func ParseParams(data []byte) (Params, error) {
	p := DefaultParams()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Params{}, WrapError("parse params", err)
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// LoadParams reads a YAML parameter file.
func LoadParams(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Params{}, WrapError("load params", err)
	}
	return ParseParams(data)
}

// Validate checks the parameters. An area that cannot hold one maximal
// command record is a configuration error.
func (p Params) Validate() error {
	switch {
	case p.Slots <= 0 || p.Slots > 0xffff-constants.TokenSlotBase:
		return NewError("validate", ErrCodeInvalidParameters, fmt.Sprintf("slots %d out of range", p.Slots))
	case p.MaxSegments <= 0:
		return NewError("validate", ErrCodeInvalidParameters, "max_segments must be positive")
	case p.Alignment <= 0 || p.Alignment&(p.Alignment-1) != 0:
		return NewError("validate", ErrCodeInvalidParameters, fmt.Sprintf("alignment %d is not a power of two", p.Alignment))
	case p.EventRingSize <= 0:
		return NewError("validate", ErrCodeInvalidParameters, "event_ring_size must be positive")
	case p.InternalRetries < 0:
		return NewError("validate", ErrCodeInvalidParameters, "internal_retries must not be negative")
	case p.AdminTimeout <= 0 || p.CancelTimeout <= 0 || p.HardwareTimeout <= 0 || p.PollInterval <= 0:
		return NewError("validate", ErrCodeInvalidParameters, "timeouts must be positive")
	}
	if need := desc.MaxRecordLen(p.MaxSegments, p.Alignment); p.AreaSize < need {
		return NewError("validate", ErrCodeMisconfigured,
			fmt.Sprintf("command area of %d bytes cannot hold a %d byte record", p.AreaSize, need))
	}
	return nil
}
