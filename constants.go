package hcd

import "github.com/ehrlich-b/go-hcd/internal/constants"

// Re-export constants for public API
const (
	DefaultSlots           = constants.DefaultSlots
	DefaultMaxSegments     = constants.DefaultMaxSegments
	DefaultAlignment       = constants.DefaultAlignment
	DefaultAreaSize        = constants.DefaultAreaSize
	DefaultEventRingSize   = constants.DefaultEventRingSize
	DefaultInternalRetries = constants.DefaultInternalRetries
	AutoAssignIRQLine      = constants.AutoAssignIRQLine
	PeriodicBranches       = constants.PeriodicBranches
)
