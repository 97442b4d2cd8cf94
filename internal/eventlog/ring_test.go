package eventlog

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Ring", func() {
	var (
		ring  *Ring
		clock time.Time
		x     = []byte{0xaa}
		y     = []byte{0xbb}
	)

	BeforeEach(func() {
		ring = New(4)
		clock = time.Unix(1000, 0)
		ring.now = func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		}
	})

	It("should ignore source zero", func() {
		_, ok := ring.Store(0, 1, x)
		Expect(ok).To(BeFalse())
		Expect(ring.Len()).To(Equal(0))
	})

	It("should coalesce an identical event", func() {
		first, _ := ring.Store(SourceAsync, 7, x)
		second, _ := ring.Store(SourceAsync, 7, x)

		Expect(ring.Len()).To(Equal(1))
		Expect(second.Seq).To(Equal(first.Seq))
		Expect(second.Count).To(Equal(uint32(2)))
		Expect(second.First).To(Equal(first.First))
		Expect(second.Last.After(second.First)).To(BeTrue())
	})

	It("should keep the coalesced count when a different event follows", func() {
		ring.Store(SourceAsync, 7, x)
		ring.Store(SourceAsync, 7, x)
		ring.Store(SourceDriver, 7, x)

		events := ring.Snapshot()
		Expect(events).To(HaveLen(2))
		Expect(events[0].Count).To(Equal(uint32(2)))
		Expect(events[1].Count).To(Equal(uint32(1)))
	})

	It("should hold two entries after three identical events and one different", func() {
		for i := 0; i < 3; i++ {
			ring.Store(SourceAsync, 7, x)
		}
		ring.Store(SourceAsync, 7, y)

		events := ring.Snapshot()
		Expect(events).To(HaveLen(2))
		Expect(events[0].Count).To(Equal(uint32(3)))
		Expect(events[0].Data[0]).To(Equal(byte(0xaa)))
		Expect(events[1].Count).To(Equal(uint32(1)))
		Expect(events[1].Data[0]).To(Equal(byte(0xbb)))
	})

	It("should not coalesce with an older, non-adjacent event", func() {
		ring.Store(SourceAsync, 1, x)
		ring.Store(SourceAsync, 2, x)
		ring.Store(SourceAsync, 1, x)
		Expect(ring.Len()).To(Equal(3))
	})

	It("should overwrite the oldest entry when full", func() {
		for i := uint16(1); i <= 6; i++ {
			ring.Store(SourceDriver, i, nil)
		}

		events := ring.Snapshot()
		Expect(events).To(HaveLen(4))
		Expect(events[0].Index).To(Equal(uint16(3)))
		Expect(events[3].Index).To(Equal(uint16(6)))
	})

	Context("when reading with a handle", func() {
		It("should walk from oldest to newest", func() {
			for i := uint16(1); i <= 3; i++ {
				ring.Store(SourceDriver, i, nil)
			}

			var indexes []uint16
			h := Start
			for {
				e, next, ok := ring.Read(h)
				if !ok {
					break
				}
				indexes = append(indexes, e.Index)
				h = next
			}
			Expect(indexes).To(Equal([]uint16{1, 2, 3}))
		})

		It("should report end on an empty ring", func() {
			_, _, ok := ring.Read(Start)
			Expect(ok).To(BeFalse())
		})

		It("should resynchronize to the oldest entry after the writer wraps", func() {
			ring.Store(SourceDriver, 1, nil)
			e, h, ok := ring.Read(Start)
			Expect(ok).To(BeTrue())
			Expect(e.Index).To(Equal(uint16(1)))

			for i := uint16(2); i <= 9; i++ {
				ring.Store(SourceDriver, i, nil)
			}

			e, _, ok = ring.Read(h)
			Expect(ok).To(BeTrue())
			Expect(e.Index).To(Equal(uint16(6)))
		})

		It("should pick up events stored after it caught up", func() {
			ring.Store(SourceDriver, 1, nil)
			_, h, _ := ring.Read(Start)
			_, h, ok := ring.Read(h)
			Expect(ok).To(BeFalse())

			ring.Store(SourceDriver, 2, nil)
			e, _, ok := ring.Read(h)
			Expect(ok).To(BeTrue())
			Expect(e.Index).To(Equal(uint16(2)))
		})
	})

	Context("when reading per consumer", func() {
		It("should deliver every event exactly once to each consumer", func() {
			ring.Store(SourceAsync, 1, nil)
			ring.Store(SourceAsync, 2, nil)

			for _, consumer := range []int{0, 5} {
				e, ok, err := ring.ReadForConsumer(consumer)
				Expect(err).ToNot(HaveOccurred())
				Expect(ok).To(BeTrue())
				Expect(e.Index).To(Equal(uint16(1)))

				e, ok, _ = ring.ReadForConsumer(consumer)
				Expect(ok).To(BeTrue())
				Expect(e.Index).To(Equal(uint16(2)))

				_, ok, _ = ring.ReadForConsumer(consumer)
				Expect(ok).To(BeFalse())
			}

			ring.Store(SourceAsync, 3, nil)
			e, ok, _ := ring.ReadForConsumer(0)
			Expect(ok).To(BeTrue())
			Expect(e.Index).To(Equal(uint16(3)))
		})

		It("should reject an invalid consumer", func() {
			_, _, err := ring.ReadForConsumer(MaxConsumers)
			Expect(err).To(MatchError(ErrConsumer))
			_, _, err = ring.ReadForConsumer(-1)
			Expect(err).To(MatchError(ErrConsumer))
		})
	})

	It("should clear without reusing sequence numbers", func() {
		first, _ := ring.Store(SourceTest, 1, nil)
		ring.Clear()
		Expect(ring.Len()).To(Equal(0))

		second, _ := ring.Store(SourceTest, 1, nil)
		Expect(second.Seq).To(BeNumerically(">", first.Seq))
		Expect(second.Count).To(Equal(uint32(1)))
	})
})
