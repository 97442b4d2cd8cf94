// Package demux decodes controller completions into a closed set of kinds
// and maps caller completions to an outcome per service.
package demux

import (
	"fmt"

	"github.com/ehrlich-b/go-hcd/internal/constants"
	"github.com/ehrlich-b/go-hcd/internal/interfaces"
	"github.com/ehrlich-b/go-hcd/internal/slot"
)

// Kind classifies one completion.
type Kind int

const (
	Spurious       Kind = iota // nothing pending
	AsyncEvent                 // controller-originated event, no slot
	UnknownService             // command for an uninitialized service
	Invalid                    // token outside the slot range
	Stale                      // token names an empty slot
	Internal                   // slot held by a driver-issued command
	CallerRequest              // slot held by a caller's request
)

func (k Kind) String() string {
	switch k {
	case Spurious:
		return "spurious"
	case AsyncEvent:
		return "async-event"
	case UnknownService:
		return "unknown-service"
	case Invalid:
		return "invalid"
	case Stale:
		return "stale"
	case Internal:
		return "internal"
	case CallerRequest:
		return "caller"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Completion is a decoded command completion. Slot is valid for Stale,
// Internal and CallerRequest.
type Completion struct {
	Kind   Kind
	Slot   int
	Status interfaces.Status
}

// SlotOf converts a token to a slot index. ok is false for sentinel tokens.
func SlotOf(token uint16) (int, bool) {
	if token < constants.TokenSlotBase {
		return -1, false
	}
	return int(token) - constants.TokenSlotBase, true
}

// TokenOf converts a slot index to the token posted to hardware.
func TokenOf(slot int) uint16 {
	return uint16(slot + constants.TokenSlotBase)
}

// Classify decodes the command part of st. lookup reports the occupant kind
// of a slot index and false if the index is out of range.
func Classify(st interfaces.Status, lookup func(int) (slot.Kind, bool)) Completion {
	c := Completion{Kind: Spurious, Slot: -1, Status: st}
	if st.Flags&interfaces.StatusCommand == 0 {
		return c
	}

	switch st.Token {
	case constants.TokenAsyncEvent:
		c.Kind = AsyncEvent
		return c
	case constants.TokenUnknownService:
		c.Kind = UnknownService
		return c
	}

	idx, _ := SlotOf(st.Token)
	kind, ok := lookup(idx)
	if !ok {
		c.Kind = Invalid
		return c
	}
	c.Slot = idx
	switch kind {
	case slot.Empty:
		c.Kind = Stale
	case slot.Internal:
		c.Kind = Internal
	default:
		c.Kind = CallerRequest
	}
	return c
}
