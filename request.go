package hcd

import (
	"time"

	"github.com/rs/xid"

	"github.com/ehrlich-b/go-hcd/internal/ctrl"
	"github.com/ehrlich-b/go-hcd/internal/demux"
	"github.com/ehrlich-b/go-hcd/internal/desc"
)

// Segment is one scatter-gather element: a bus address and a length.
type Segment = desc.Segment

// Services
const (
	ServiceCache = desc.ServiceCache
	ServiceRaw   = desc.ServiceRaw
	ServiceAdmin = desc.ServiceAdmin
)

// Opcodes
const (
	OpRead   = desc.OpRead
	OpWrite  = desc.OpWrite
	OpInfo   = desc.OpInfo
	OpFlush  = desc.OpFlush
	OpRawCDB = desc.OpRawCDB
)

// Data directions
const (
	DirNone   = desc.DirNone
	DirToHW   = desc.DirToHW
	DirFromHW = desc.DirFromHW
)

// Completion is handed to a request's Done callback.
type Completion struct {
	// Status and Info are what the controller reported. Both are zero when
	// the request never reached the controller.
	Status uint16
	Info   uint32
	// Err is nil on success.
	Err error
}

// Request is one caller I/O request. The controller owns it from Submit
// until Done is called, exactly once.
type Request struct {
	// ID identifies the request in logs. Submit assigns one if it is nil.
	ID xid.ID

	Service   uint8
	Opcode    uint8
	Direction uint8
	FUA       bool

	Bus    uint8
	Target uint8
	LUN    uint8

	// CDB is passed through for OpRawCDB. At most 16 bytes.
	CDB []byte

	LBA      uint64
	Length   uint32
	Segments []Segment

	// Priority orders the submission queue, 0 first. Requests with equal
	// priority are issued in submission order.
	Priority uint8

	Done func(r *Request, c Completion)

	submitted time.Time
	requeues  int
}

// Requeues returns how often the controller reported busy for r.
func (r *Request) Requeues() int { return r.requeues }

func (r *Request) command() (desc.Command, error) {
	c := desc.Command{
		Opcode:    r.Opcode,
		Service:   r.Service,
		Direction: r.Direction,
		Bus:       r.Bus,
		Target:    r.Target,
		LUN:       r.LUN,
		Length:    r.Length,
		LBA:       r.LBA,
		Segments:  r.Segments,
	}
	if r.FUA {
		c.Flags |= desc.FlagFUA
	}
	if len(r.CDB) > desc.CDBSize {
		return c, desc.ErrCDBTooLong
	}
	c.CDBLen = uint8(copy(c.CDB[:], r.CDB))
	return c, nil
}

// AdminCommand is a driver-issued command run synchronously by Exec.
type AdminCommand = desc.Command

// AdminResult is what the controller reported for an AdminCommand.
type AdminResult = ctrl.Result

// Administrative command builders
func AdminServiceInit(service uint8) AdminCommand { return ctrl.ServiceInit(service) }
func AdminServiceInfo(service uint8) AdminCommand { return ctrl.ServiceInfo(service) }
func AdminUnmount(target uint8) AdminCommand      { return ctrl.Unmount(target) }
func AdminFlush(target uint8) AdminCommand        { return ctrl.FlushDrive(target) }
func AdminResetBus(bus uint8) AdminCommand        { return ctrl.ResetBus(bus) }
func AdminPowerDown() AdminCommand                { return ctrl.PowerDown() }
func AdminClearEvents() AdminCommand              { return ctrl.ClearEvents() }

// command is a queue and slot entry: a caller request or an admin command.
type command struct {
	req     *Request
	pending *ctrl.Pending
	cmd     desc.Command
	prio    uint8
	retries int
	issued  time.Time
	slot    int
}

func (c *command) internal() bool { return c.req == nil }

// resultError maps a finished outcome to the error the caller sees.
func resultError(op string, ctrlID, slot int, service uint8, status uint16) error {
	if status == desc.StatusBusy {
		e := NewStatusError(op, ctrlID, ErrCodeBusy, status)
		e.Slot = slot
		return e
	}
	out := demux.Evaluate(service, false, status)
	var code ErrorCode
	switch out.Result {
	case demux.ResultOK:
		return nil
	case demux.ResultOffline:
		code = ErrCodeDeviceOffline
	case demux.ResultCheckCondition:
		code = ErrCodeCheckCondition
	case demux.ResultTimeout:
		code = ErrCodeTimeout
	default:
		code = ErrCodeIOError
	}
	e := NewStatusError(op, ctrlID, code, status)
	e.Slot = slot
	return e
}
