// Package desc defines the hardware-visible command record layout and its codec
package desc

// Services a command can be addressed to. The controller firmware runs one
// command processor per service and rejects commands for services that were
// never initialized.
const (
	ServiceCache uint8 = 0x01 // host drive (block) service
	ServiceRaw   uint8 = 0x03 // SCSI pass-through service
	ServiceAdmin uint8 = 0x0b // controller management service
)

// Opcodes
const (
	OpInit       uint8 = 0x00 // initialize a service
	OpRead       uint8 = 0x01
	OpWrite      uint8 = 0x02
	OpInfo       uint8 = 0x03 // query service information
	OpFlush      uint8 = 0x04
	OpRawCDB     uint8 = 0x05 // execute the embedded CDB
	OpUnmount    uint8 = 0x06 // quiesce a host drive
	OpReset      uint8 = 0x07 // reset a bus
	OpPowerDown  uint8 = 0x08 // power down ports before removal
	OpClearEvent uint8 = 0x09 // clear the controller event log
)

// Data directions
const (
	DirNone    uint8 = 0
	DirToHW    uint8 = 1 // host memory is read by the controller
	DirFromHW  uint8 = 2 // host memory is written by the controller
	DirUnknown uint8 = 3
)

// Record flags
const (
	FlagInternal uint8 = 1 << 0 // issued by the driver itself
	FlagFUA      uint8 = 1 << 1 // force unit access
)

// Controller status codes reported with every completion
const (
	StatusOK           uint16 = 1
	StatusGenErr       uint16 = 6
	StatusBusy         uint16 = 7
	StatusCacheUnknown uint16 = 12 // cache service: host drive not present
	StatusRawSCSI      uint16 = 12 // raw service: target returned a SCSI status in Info
	StatusTimeout      uint16 = 0x0e
	StatusRawIllegal   uint16 = 0xff
)

// Layout constants
const (
	HeaderSize  = 24 // fixed header preceding the CDB
	CDBSize     = 16 // command descriptor block
	SegmentSize = 12 // address u64 + length u32
	FixedSize   = HeaderSize + CDBSize
)
