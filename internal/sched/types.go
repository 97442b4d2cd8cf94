// Package sched maintains the endpoint schedule a host controller walks in
// host memory: endpoint descriptors chained into control, bulk and periodic
// lists, each owning a queue of transfer descriptors that ends in a dummy.
//
// Removal is deferred. An endpoint that may still be referenced by the
// controller is skipped, unlinked and parked on a teardown batch keyed by
// the frame it was unlinked in. Drain finishes the removal once the frame
// counter has moved past that epoch.
package sched

import (
	"errors"
	"fmt"

	"github.com/rs/xid"

	"github.com/ehrlich-b/go-hcd/internal/desc"
)

var (
	ErrStaleEndpoint    = errors.New("endpoint handle is stale")
	ErrEndpointClosing  = errors.New("endpoint is being destroyed")
	ErrNoDescriptors    = errors.New("descriptor arena exhausted")
	ErrInvalidInterval  = errors.New("periodic interval must be between 1 and 32")
	ErrNoSegments       = errors.New("transfer has no segments")
	ErrNotQueued        = errors.New("transfer is not queued on an endpoint")
	ErrTransferFinished = errors.New("transfer already finished")
	ErrTransferQueued   = errors.New("transfer is already queued")
)

// State is the lifecycle state of an endpoint.
type State uint8

const (
	StateNew State = iota
	StateUnlinked
	StateOperational
	StateDeleteRequested
	StateDeleted
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateUnlinked:
		return "UNLINKED"
	case StateOperational:
		return "OPERATIONAL"
	case StateDeleteRequested:
		return "DELETE_REQUESTED"
	case StateDeleted:
		return "DELETED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Kind selects the list an endpoint is linked into.
type Kind uint8

const (
	Control Kind = iota
	Bulk
	Periodic
)

func (k Kind) String() string {
	switch k {
	case Control:
		return "control"
	case Bulk:
		return "bulk"
	case Periodic:
		return "periodic"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Transfer descriptor completion codes.
const (
	CodeOK          uint8 = 0x0
	CodeCRC         uint8 = 0x1
	CodeStall       uint8 = 0x4
	CodeNotAccessed uint8 = 0xf
)

// Handle names an endpoint. The generation makes handles of reclaimed
// endpoints detectably stale.
type Handle struct {
	Index uint32
	Gen   uint32
}

func (h Handle) String() string { return fmt.Sprintf("ed%d.%d", h.Index, h.Gen) }

// EndpointConfig describes an endpoint to open.
type EndpointConfig struct {
	Kind     Kind
	Interval int // frames between visits, periodic only, rounded down to a power of two
	Load     int // bandwidth units charged to each branch, periodic only
}

// Transfer is one unit of caller work queued on an endpoint. Each segment
// becomes one transfer descriptor.
type Transfer struct {
	ID       xid.ID
	Segments []desc.Segment
	Owner    any

	// Set when the transfer finishes.
	Code      uint8
	Cancelled bool

	ep       Handle
	pending  int
	cancel   bool
	finished bool
}

// Endpoint returns the endpoint the transfer was submitted to.
func (t *Transfer) Endpoint() Handle { return t.ep }

// Finished reports whether the transfer completed or was cancelled.
func (t *Transfer) Finished() bool { return t.finished }

// Info is a point-in-time view of an endpoint.
type Info struct {
	Handle   Handle
	State    State
	Kind     Kind
	Interval int
	Branch   int
	Queued   int // transfer descriptors between head and tail
}
