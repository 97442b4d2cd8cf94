package desc

import "fmt"

// Segment is one scatter-gather element handed to the controller.
type Segment struct {
	Addr uint64 // host physical address
	Len  uint32 // length in bytes, never zero (zero terminates the list)
}

// Command is the decoded form of one command record in the DMA area.
//
// Wire layout (little endian):
//
//	off  size  field
//	0    2     token
//	2    1     opcode
//	3    1     service
//	4    1     direction
//	5    1     flags
//	6    1     bus
//	7    1     target
//	8    1     lun
//	9    1     cdb length
//	10   2     segment count
//	12   4     total byte length
//	16   8     lba
//	24   16    cdb
//	40   12*n  segments, followed by a zero sentinel when n < max
type Command struct {
	Token     uint16
	Opcode    uint8
	Service   uint8
	Direction uint8
	Flags     uint8
	Bus       uint8
	Target    uint8
	LUN       uint8
	CDBLen    uint8
	Length    uint32
	LBA       uint64
	CDB       [CDBSize]byte
	Segments  []Segment
}

// Internal reports whether the command was issued by the driver itself.
func (c *Command) Internal() bool {
	return c.Flags&FlagInternal != 0
}

// SegmentBytes returns the sum of all segment lengths.
func (c *Command) SegmentBytes() uint64 {
	var total uint64
	for _, s := range c.Segments {
		total += uint64(s.Len)
	}
	return total
}

// String returns a short description for logs.
func (c *Command) String() string {
	return fmt.Sprintf("token=%d op=%s svc=%#x dev=%d:%d:%d len=%d sg=%d",
		c.Token, OpName(c.Opcode), c.Service, c.Bus, c.Target, c.LUN, c.Length, len(c.Segments))
}

// OpName returns a printable opcode name.
func OpName(op uint8) string {
	switch op {
	case OpInit:
		return "INIT"
	case OpRead:
		return "READ"
	case OpWrite:
		return "WRITE"
	case OpInfo:
		return "INFO"
	case OpFlush:
		return "FLUSH"
	case OpRawCDB:
		return "RAW"
	case OpUnmount:
		return "UNMOUNT"
	case OpReset:
		return "RESET"
	case OpPowerDown:
		return "POWERDOWN"
	case OpClearEvent:
		return "CLEAREVENT"
	default:
		return fmt.Sprintf("OP_%d", op)
	}
}
