package desc

import (
	"encoding/binary"
	"errors"
)

var (
	ErrInsufficientData = errors.New("insufficient data for command record")
	ErrTooManySegments  = errors.New("scatter-gather list exceeds segment limit")
	ErrLengthMismatch   = errors.New("scatter-gather total does not match request length")
	ErrZeroSegment      = errors.New("zero-length scatter-gather segment")
	ErrCDBTooLong       = errors.New("cdb longer than 16 bytes")
	ErrMissingSentinel  = errors.New("scatter-gather list not terminated")
)

// RecordLen returns the unpadded encoded size of a command with nseg
// segments. A zero sentinel segment is included when nseg < maxSeg.
func RecordLen(nseg, maxSeg int) int {
	n := FixedSize + nseg*SegmentSize
	if nseg < maxSeg {
		n += SegmentSize
	}
	return n
}

// MaxRecordLen returns the padded size of the largest record the controller accepts.
func MaxRecordLen(maxSeg, align int) int {
	return Align(RecordLen(maxSeg, maxSeg), align)
}

// Align rounds n up to a multiple of a. a must be a power of two.
func Align(n, a int) int {
	if a <= 1 {
		return n
	}
	return (n + a - 1) &^ (a - 1)
}

// Validate checks the invariants the controller relies on: the segment list
// fits, no segment is empty and the segments cover exactly Length bytes.
func Validate(c *Command, maxSeg int) error {
	if len(c.Segments) > maxSeg {
		return ErrTooManySegments
	}
	if c.CDBLen > CDBSize {
		return ErrCDBTooLong
	}
	for _, s := range c.Segments {
		if s.Len == 0 {
			return ErrZeroSegment
		}
	}
	if c.SegmentBytes() != uint64(c.Length) {
		return ErrLengthMismatch
	}
	return nil
}

// MarshalTo encodes c into buf and returns the number of bytes written
// (unpadded). Nothing is written unless the whole record fits.
func MarshalTo(buf []byte, c *Command, maxSeg int) (int, error) {
	if err := Validate(c, maxSeg); err != nil {
		return 0, err
	}
	n := RecordLen(len(c.Segments), maxSeg)
	if len(buf) < n {
		return 0, ErrInsufficientData
	}

	binary.LittleEndian.PutUint16(buf[0:2], c.Token)
	buf[2] = c.Opcode
	buf[3] = c.Service
	buf[4] = c.Direction
	buf[5] = c.Flags
	buf[6] = c.Bus
	buf[7] = c.Target
	buf[8] = c.LUN
	buf[9] = c.CDBLen
	binary.LittleEndian.PutUint16(buf[10:12], uint16(len(c.Segments)))
	binary.LittleEndian.PutUint32(buf[12:16], c.Length)
	binary.LittleEndian.PutUint64(buf[16:24], c.LBA)
	copy(buf[HeaderSize:FixedSize], c.CDB[:])

	off := FixedSize
	for _, s := range c.Segments {
		binary.LittleEndian.PutUint64(buf[off:off+8], s.Addr)
		binary.LittleEndian.PutUint32(buf[off+8:off+12], s.Len)
		off += SegmentSize
	}
	if len(c.Segments) < maxSeg {
		clear(buf[off : off+SegmentSize])
	}

	return n, nil
}

// Unmarshal decodes one record from data and returns its unpadded length.
func Unmarshal(data []byte, c *Command, maxSeg int) (int, error) {
	if len(data) < FixedSize {
		return 0, ErrInsufficientData
	}

	c.Token = binary.LittleEndian.Uint16(data[0:2])
	c.Opcode = data[2]
	c.Service = data[3]
	c.Direction = data[4]
	c.Flags = data[5]
	c.Bus = data[6]
	c.Target = data[7]
	c.LUN = data[8]
	c.CDBLen = data[9]
	nseg := int(binary.LittleEndian.Uint16(data[10:12]))
	c.Length = binary.LittleEndian.Uint32(data[12:16])
	c.LBA = binary.LittleEndian.Uint64(data[16:24])
	copy(c.CDB[:], data[HeaderSize:FixedSize])

	if nseg > maxSeg {
		return 0, ErrTooManySegments
	}
	n := RecordLen(nseg, maxSeg)
	if len(data) < n {
		return 0, ErrInsufficientData
	}

	c.Segments = make([]Segment, nseg)
	off := FixedSize
	for i := range c.Segments {
		c.Segments[i].Addr = binary.LittleEndian.Uint64(data[off : off+8])
		c.Segments[i].Len = binary.LittleEndian.Uint32(data[off+8 : off+12])
		off += SegmentSize
	}
	if nseg < maxSeg && binary.LittleEndian.Uint32(data[off+8:off+12]) != 0 {
		return 0, ErrMissingSentinel
	}

	return n, nil
}
