package constants

import "time"

// Default configuration constants
const (
	// DefaultSlots is the default number of concurrently outstanding commands
	DefaultSlots = 32

	// DefaultMaxSegments is the default maximum scatter-gather entries per command
	DefaultMaxSegments = 32

	// DefaultAlignment is the alignment every encoded command record is rounded up to
	DefaultAlignment = 8

	// DefaultAreaSize is the default size of the DMA command area in bytes (4KB)
	DefaultAreaSize = 4096

	// DefaultEventRingSize is the number of entries kept in the async event ring
	DefaultEventRingSize = 100

	// DefaultInternalRetries bounds how often a busy internal command is re-issued
	DefaultInternalRetries = 3

	// AutoAssignIRQLine lets the registry pick a private interrupt line
	AutoAssignIRQLine = -1
)

// Hardware completion tokens. Slot indices are offset by TokenSlotBase so the
// two low tokens stay free for sentinels.
const (
	// TokenAsyncEvent marks an asynchronous controller event
	TokenAsyncEvent = 0

	// TokenUnknownService marks a completion for a service that was never initialized
	TokenUnknownService = 1

	// TokenSlotBase is the token of slot 0
	TokenSlotBase = 2
)

// Timing constants for the command lifecycle
const (
	// AdminTimeout bounds a synchronous administrative command
	AdminTimeout = 2 * time.Second

	// CancelTimeout bounds synchronous cancellation of a transfer or endpoint
	CancelTimeout = 100 * time.Millisecond

	// HardwareTimeout is how long a slot may stay occupied before the watchdog fails it
	HardwareTimeout = 30 * time.Second

	// PollInterval is the sleep between status checks while polling
	PollInterval = 100 * time.Microsecond

	// WatchdogInterval is the period of the background teardown/timeout timer
	WatchdogInterval = 10 * time.Millisecond
)

// Schedule constants
const (
	// PeriodicBranches is the number of interrupt schedule branches (one per frame mod 32)
	PeriodicBranches = 32

	// MaxEndpoints bounds the endpoint descriptor arena
	MaxEndpoints = 256

	// MaxTransferDescriptors bounds the transfer descriptor arena
	MaxTransferDescriptors = 4096

	// TeardownBatches is the number of pending teardown epochs tracked before merging
	TeardownBatches = 4
)
