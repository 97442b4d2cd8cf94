package demux

import (
	"testing"

	"github.com/ehrlich-b/go-hcd/internal/desc"
	"github.com/ehrlich-b/go-hcd/internal/interfaces"
	"github.com/ehrlich-b/go-hcd/internal/slot"
)

func TestClassify(t *testing.T) {
	occupants := []slot.Kind{slot.Caller, slot.Internal, slot.Empty}
	lookup := func(i int) (slot.Kind, bool) {
		if i < 0 || i >= len(occupants) {
			return slot.Empty, false
		}
		return occupants[i], true
	}
	cmd := interfaces.StatusCommand

	tests := []struct {
		name string
		st   interfaces.Status
		kind Kind
		slot int
	}{
		{"nothing pending", interfaces.Status{}, Spurious, -1},
		{"frame only", interfaces.Status{Flags: interfaces.StatusFrame, Token: 2}, Spurious, -1},
		{"async event", interfaces.Status{Flags: cmd, Token: 0, Code: 5}, AsyncEvent, -1},
		{"unknown service", interfaces.Status{Flags: cmd, Token: 1}, UnknownService, -1},
		{"caller", interfaces.Status{Flags: cmd, Token: 2}, CallerRequest, 0},
		{"internal", interfaces.Status{Flags: cmd, Token: 3}, Internal, 1},
		{"stale", interfaces.Status{Flags: cmd, Token: 4}, Stale, 2},
		{"out of range", interfaces.Status{Flags: cmd, Token: 5}, Invalid, -1},
		{"far out of range", interfaces.Status{Flags: cmd, Token: 0xffff}, Invalid, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.st, lookup)
			if c.Kind != tt.kind {
				t.Errorf("Kind = %s, want %s", c.Kind, tt.kind)
			}
			if c.Slot != tt.slot {
				t.Errorf("Slot = %d, want %d", c.Slot, tt.slot)
			}
		})
	}
}

func TestTokenRoundTrip(t *testing.T) {
	for i := 0; i < 64; i++ {
		got, ok := SlotOf(TokenOf(i))
		if !ok || got != i {
			t.Fatalf("SlotOf(TokenOf(%d)) = %d, %v", i, got, ok)
		}
	}
	if _, ok := SlotOf(0); ok {
		t.Error("token 0 is a sentinel")
	}
	if _, ok := SlotOf(1); ok {
		t.Error("token 1 is a sentinel")
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		service  uint8
		internal bool
		code     uint16
		want     Outcome
	}{
		{"cache ok", desc.ServiceCache, false, desc.StatusOK, Outcome{Done, ResultOK}},
		{"cache busy requeues", desc.ServiceCache, false, desc.StatusBusy, Outcome{Requeue, ResultOK}},
		{"cache drive missing", desc.ServiceCache, false, desc.StatusCacheUnknown, Outcome{Done, ResultOffline}},
		{"cache generic error", desc.ServiceCache, false, desc.StatusGenErr, Outcome{Done, ResultIOError}},
		{"cache timeout", desc.ServiceCache, false, desc.StatusTimeout, Outcome{Done, ResultTimeout}},
		{"raw ok", desc.ServiceRaw, false, desc.StatusOK, Outcome{Done, ResultOK}},
		{"raw busy requeues", desc.ServiceRaw, false, desc.StatusBusy, Outcome{Requeue, ResultOK}},
		{"raw scsi status", desc.ServiceRaw, false, desc.StatusRawSCSI, Outcome{Done, ResultCheckCondition}},
		{"raw illegal", desc.ServiceRaw, false, desc.StatusRawIllegal, Outcome{Done, ResultIOError}},
		{"internal busy retries", desc.ServiceCache, true, desc.StatusBusy, Outcome{RetryInternal, ResultOK}},
		{"admin busy retries", desc.ServiceAdmin, true, desc.StatusBusy, Outcome{RetryInternal, ResultOK}},
		{"admin code 12 is an error", desc.ServiceAdmin, true, 12, Outcome{Done, ResultIOError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.service, tt.internal, tt.code)
			if got != tt.want {
				t.Errorf("Evaluate() = {%s %s}, want {%s %s}", got.Action, got.Result, tt.want.Action, tt.want.Result)
			}
		})
	}
}
