// Package interfaces declares the contracts between the controller core and
// the hardware or media it drives.
package interfaces

// StatusFlags report which interrupt causes are pending.
type StatusFlags uint32

const (
	// StatusCommand: Token, Code and Info describe one command completion.
	StatusCommand StatusFlags = 1 << iota
	// StatusDoneQueue: the controller wrote retired transfer descriptors to the done queue.
	StatusDoneQueue
	// StatusFrame: the frame counter advanced.
	StatusFrame
	// StatusFatal: unrecoverable controller error.
	StatusFatal
)

// Status is one coherent read of the controller's interrupt status.
// A zero Flags value means the controller did not raise the interrupt.
type Status struct {
	Flags StatusFlags
	Token uint16
	Code  uint16
	Info  uint32
}

// Pending reports whether the controller has anything to report.
func (s Status) Pending() bool { return s.Flags != 0 }

// Hardware is the register-level surface of a command controller.
type Hardware interface {
	// CommandArea returns the memory shared with the controller for posting
	// command records. Its length is the area capacity.
	CommandArea() []byte

	// Busy reports whether the controller has not yet taken the previous
	// doorbell batch. The area must not be rewritten while it is busy.
	Busy() bool

	// Doorbell posts the records at the given area offsets.
	Doorbell(offsets []uint32) error

	// ReadStatus reads the interrupt status without side effects.
	ReadStatus() Status

	// Ack acknowledges the causes in s. A command completion is consumed.
	Ack(s Status)

	// EnableInterrupts turns interrupt delivery on or off.
	EnableInterrupts(on bool)

	// ClearBusy forces the doorbell semaphore free after a lost command.
	ClearBusy()

	// Reset quiesces the controller, discarding every outstanding command.
	Reset() error
}

// ScheduleHardware is implemented by controllers that also chase an
// endpoint schedule in host memory.
type ScheduleHardware interface {
	// Frame returns the current frame number. It only increases.
	Frame() uint64

	// AttachSchedule hands the controller the schedule it walks.
	AttachSchedule(mem ScheduleMemory)
}

// ScheduleMemory is the hardware-visible part of an endpoint schedule.
// Descriptor references are arena indices; zero is the null reference.
type ScheduleMemory interface {
	// ControlHead and BulkHead return the first endpoint of each async list.
	ControlHead() uint32
	BulkHead() uint32

	// PeriodicHead returns the first endpoint of a periodic branch.
	PeriodicHead(branch int) uint32

	// NextEndpoint returns the hardware next pointer of ed.
	NextEndpoint(ed uint32) uint32

	// Skipped reports whether the controller must pass over ed.
	Skipped(ed uint32) bool

	// Queue returns ed's transfer queue head and tail. head == tail means empty.
	Queue(ed uint32) (head, tail uint32)

	// Retire advances ed's head past its current head descriptor, records
	// the completion code and links the descriptor onto the done queue.
	// It reports false when the queue is empty.
	Retire(ed uint32, code uint8) bool
}
