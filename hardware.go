package hcd

import (
	"github.com/ehrlich-b/go-hcd/internal/eventlog"
	"github.com/ehrlich-b/go-hcd/internal/interfaces"
)

// Hardware is the register surface a Controller drives.
type Hardware = interfaces.Hardware

// ScheduleHardware is implemented by hardware that also walks an endpoint
// schedule. Controllers on such hardware accept endpoints.
type ScheduleHardware = interfaces.ScheduleHardware

// HardwareStatus is one read of the interrupt status.
type HardwareStatus = interfaces.Status

// Interrupt causes
const (
	StatusCommand   = interfaces.StatusCommand
	StatusDoneQueue = interfaces.StatusDoneQueue
	StatusFrame     = interfaces.StatusFrame
	StatusFatal     = interfaces.StatusFatal
)

// Event ring types
type (
	Event       = eventlog.Event
	EventHandle = eventlog.Handle
	EventSource = eventlog.Source
)

const (
	EventStart        = eventlog.Start
	SourceAsync       = eventlog.SourceAsync
	SourceDriver      = eventlog.SourceDriver
	SourceTest        = eventlog.SourceTest
	SourceSync        = eventlog.SourceSync
	MaxEventConsumers = eventlog.MaxConsumers
)

// Driver event indices stored with SourceDriver.
const (
	DriverEventStale          uint16 = 1 // completion for an empty slot
	DriverEventUnknownService uint16 = 2 // command for an uninitialized service
	DriverEventTimeout        uint16 = 3 // slot force-released by the watchdog
	DriverEventReset          uint16 = 4 // controller reset
	DriverEventFatal          uint16 = 5 // controller disabled
	DriverEventInvalidToken   uint16 = 6 // token outside the slot range
)
