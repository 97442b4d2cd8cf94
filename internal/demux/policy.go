package demux

import (
	"fmt"

	"github.com/ehrlich-b/go-hcd/internal/desc"
)

// Action is what the controller does with a finished caller request.
type Action int

const (
	// Done hands the result to the caller now.
	Done Action = iota
	// Requeue puts the request back on the queue at its original priority.
	Requeue
	// RetryInternal re-issues a driver-internal command at top priority.
	RetryInternal
)

func (a Action) String() string {
	switch a {
	case Done:
		return "done"
	case Requeue:
		return "requeue"
	case RetryInternal:
		return "retry-internal"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Result is the caller-visible result attached to a Done outcome.
type Result int

const (
	ResultOK Result = iota
	ResultIOError
	ResultOffline        // cache service: drive not present
	ResultCheckCondition // raw service: target returned a SCSI status
	ResultTimeout        // controller timed the command out
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultIOError:
		return "io-error"
	case ResultOffline:
		return "offline"
	case ResultCheckCondition:
		return "check-condition"
	case ResultTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Outcome of one caller completion.
type Outcome struct {
	Action Action
	Result Result
}

// Evaluate maps a completion status to an outcome. Busy always goes back to
// the queue: internal commands at top priority, caller requests at their
// own priority. Every other status finishes the request.
func Evaluate(service uint8, internal bool, code uint16) Outcome {
	if code == desc.StatusBusy {
		if internal {
			return Outcome{Action: RetryInternal}
		}
		return Outcome{Action: Requeue}
	}
	if code == desc.StatusOK {
		return Outcome{Action: Done, Result: ResultOK}
	}
	if code == desc.StatusTimeout {
		return Outcome{Action: Done, Result: ResultTimeout}
	}

	switch service {
	case desc.ServiceCache:
		if code == desc.StatusCacheUnknown {
			return Outcome{Action: Done, Result: ResultOffline}
		}
	case desc.ServiceRaw:
		if code == desc.StatusRawSCSI {
			return Outcome{Action: Done, Result: ResultCheckCondition}
		}
	}
	return Outcome{Action: Done, Result: ResultIOError}
}
