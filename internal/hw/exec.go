package hw

import (
	"github.com/ehrlich-b/go-hcd/internal/constants"
	"github.com/ehrlich-b/go-hcd/internal/desc"
	"github.com/ehrlich-b/go-hcd/internal/interfaces"
)

// SCSI values the raw service understands.
const (
	scsiTestUnitReady = 0x00
	scsiInquiry       = 0x12
	scsiCheckCond     = 0x02
)

var inquiryData = []byte("\x00\x00\x05\x02\x1f\x00\x00\x00GO-HCD  SIM DISK        0001")

// Execute runs c to completion and reports its status.
func (s *Sim) Execute(c *desc.Command) {
	code, info := s.run(c)
	s.Complete(c.Token, code, info)
}

func (s *Sim) run(c *desc.Command) (uint16, uint32) {
	s.mu.Lock()
	if s.busyNext > 0 {
		s.busyNext--
		s.mu.Unlock()
		return desc.StatusBusy, 0
	}
	if s.failNext != 0 {
		code := s.failNext
		s.failNext = 0
		s.mu.Unlock()
		return code, 0
	}
	if c.Opcode == desc.OpInit {
		s.services[c.Service] = true
		s.mu.Unlock()
		return desc.StatusOK, 0
	}
	if !s.services[c.Service] {
		s.fifo = append(s.fifo, interfaces.Status{
			Token: constants.TokenUnknownService,
			Code:  desc.StatusGenErr,
			Info:  uint32(c.Service),
		})
		s.mu.Unlock()
		return desc.StatusGenErr, 0
	}
	s.mu.Unlock()

	switch c.Service {
	case desc.ServiceCache:
		return s.runCache(c)
	case desc.ServiceRaw:
		return s.runRaw(c)
	case desc.ServiceAdmin:
		return s.runAdmin(c)
	default:
		return desc.StatusGenErr, 0
	}
}

func (s *Sim) runCache(c *desc.Command) (uint16, uint32) {
	if int(c.Target) >= s.cfg.Targets {
		return desc.StatusCacheUnknown, 0
	}
	media := s.cfg.Media

	switch c.Opcode {
	case desc.OpRead:
		off := int64(c.LBA) * BlockSize
		err := s.eachSegment(c, func(buf []byte) error {
			if media == nil {
				clear(buf)
			} else if _, err := media.ReadAt(buf, off); err != nil {
				return err
			}
			off += int64(len(buf))
			return nil
		})
		if err != nil {
			s.cfg.Logger.Debug("read failed", "token", c.Token, "error", err)
			return desc.StatusGenErr, 0
		}
		return desc.StatusOK, c.Length
	case desc.OpWrite:
		off := int64(c.LBA) * BlockSize
		err := s.eachSegment(c, func(buf []byte) error {
			if media != nil {
				if _, err := media.WriteAt(buf, off); err != nil {
					return err
				}
			}
			off += int64(len(buf))
			return nil
		})
		if err != nil {
			s.cfg.Logger.Debug("write failed", "token", c.Token, "error", err)
			return desc.StatusGenErr, 0
		}
		if c.Flags&desc.FlagFUA != 0 && media != nil {
			if err := media.Flush(); err != nil {
				return desc.StatusGenErr, 0
			}
		}
		return desc.StatusOK, c.Length
	case desc.OpFlush:
		if media != nil {
			if err := media.Flush(); err != nil {
				return desc.StatusGenErr, 0
			}
		}
		return desc.StatusOK, 0
	case desc.OpInfo:
		if media == nil {
			return desc.StatusOK, 0
		}
		return desc.StatusOK, uint32(media.Size() / BlockSize)
	case desc.OpUnmount:
		return desc.StatusOK, 0
	default:
		return desc.StatusGenErr, 0
	}
}

func (s *Sim) runRaw(c *desc.Command) (uint16, uint32) {
	if int(c.Target) >= s.cfg.Targets {
		return desc.StatusTimeout, 0
	}
	switch c.Opcode {
	case desc.OpReset:
		return desc.StatusOK, 0
	case desc.OpRawCDB:
		if c.CDBLen == 0 {
			return desc.StatusRawIllegal, 0
		}
		switch c.CDB[0] {
		case scsiTestUnitReady:
			return desc.StatusOK, 0
		case scsiInquiry:
			src := inquiryData
			err := s.eachSegment(c, func(buf []byte) error {
				n := copy(buf, src)
				clear(buf[n:])
				src = src[n:]
				return nil
			})
			if err != nil {
				return desc.StatusGenErr, 0
			}
			return desc.StatusOK, uint32(len(inquiryData))
		default:
			return desc.StatusRawSCSI, scsiCheckCond
		}
	default:
		return desc.StatusRawIllegal, 0
	}
}

func (s *Sim) runAdmin(c *desc.Command) (uint16, uint32) {
	switch c.Opcode {
	case desc.OpPowerDown, desc.OpClearEvent:
		return desc.StatusOK, 0
	case desc.OpInfo:
		s.mu.Lock()
		n := len(s.services)
		s.mu.Unlock()
		return desc.StatusOK, uint32(n)
	default:
		return desc.StatusGenErr, 0
	}
}

func (s *Sim) eachSegment(c *desc.Command, fn func(buf []byte) error) error {
	for _, seg := range c.Segments {
		buf, err := s.cfg.Bus.Slice(seg.Addr, seg.Len)
		if err != nil {
			return err
		}
		if err := fn(buf); err != nil {
			return err
		}
	}
	return nil
}

// Schedule walking

const (
	tdOK          = 0
	maxWalkLength = 1024
)

// Walk visits this frame's periodic branch and both async lists and
// retires one descriptor from every endpoint that is not skipped.
func (s *Sim) Walk() int {
	s.mu.Lock()
	mem := s.sched
	s.mu.Unlock()
	if mem == nil {
		return 0
	}

	retired := 0
	visit := func(head uint32) {
		steps := 0
		for ed := head; ed != 0 && steps < maxWalkLength; ed = mem.NextEndpoint(ed) {
			steps++
			if mem.Skipped(ed) {
				continue
			}
			if mem.Retire(ed, tdOK) {
				retired++
			}
		}
	}
	visit(mem.PeriodicHead(int(s.frame.Load() % constants.PeriodicBranches)))
	visit(mem.ControlHead())
	visit(mem.BulkHead())

	if retired > 0 {
		s.mu.Lock()
		s.sticky |= interfaces.StatusDoneQueue
		s.mu.Unlock()
	}
	return retired
}

// RetireHead completes the descriptor at ed's head with code, as the
// controller does for the descriptor it is working on when a frame ends.
func (s *Sim) RetireHead(ed uint32, code uint8) bool {
	s.mu.Lock()
	mem := s.sched
	s.mu.Unlock()
	if mem == nil || !mem.Retire(ed, code) {
		return false
	}
	s.mu.Lock()
	s.sticky |= interfaces.StatusDoneQueue
	s.mu.Unlock()
	return true
}

// EndFrame advances the frame counter and reports the frame interrupt.
func (s *Sim) EndFrame() {
	s.frame.Add(1)
	s.mu.Lock()
	s.sticky |= interfaces.StatusFrame
	s.mu.Unlock()
	s.raise()
}

// AdvanceFrame walks the schedule once and ends the frame.
func (s *Sim) AdvanceFrame() {
	s.Walk()
	s.EndFrame()
}
