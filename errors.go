package hcd

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Error is a structured controller error carrying the operation, the
// controller and slot it concerns and the hardware status if there was one.
type Error struct {
	Op         string        // Operation that failed (e.g., "submit", "exec")
	Controller int           // Controller handle (-1 if not applicable)
	Slot       int           // Command slot (-1 if not applicable)
	Code       ErrorCode     // High-level error category
	Status     uint16        // Controller status code (0 if not applicable)
	Errno      syscall.Errno // errno (0 if not applicable)
	Msg        string        // Human-readable message
	Inner      error         // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, "op="+e.Op)
	}
	if e.Controller >= 0 {
		parts = append(parts, fmt.Sprintf("ctrl=%d", e.Controller))
	}
	if e.Slot >= 0 {
		parts = append(parts, fmt.Sprintf("slot=%d", e.Slot))
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%#x", e.Status))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("hcd: %s (%s)", msg, strings.Join(parts, ", "))
	}
	return "hcd: " + msg
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is matches sentinel errors and other structured errors by code
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if he, ok := target.(HCDError); ok {
		return e.Code == ErrorCode(he)
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories
type ErrorCode string

const (
	ErrCodeInvalidParameters  ErrorCode = "invalid parameters"
	ErrCodeInsufficientMemory ErrorCode = "insufficient memory"
	ErrCodeMisconfigured      ErrorCode = "misconfigured"
	ErrCodeIOError            ErrorCode = "I/O error"
	ErrCodeTimeout            ErrorCode = "timeout"
	ErrCodeCancelTimeout      ErrorCode = "cancellation timed out"
	ErrCodeCancelled          ErrorCode = "cancelled"
	ErrCodeDisabled           ErrorCode = "controller disabled"
	ErrCodeDeviceOffline      ErrorCode = "device offline"
	ErrCodeCheckCondition     ErrorCode = "check condition"
	ErrCodeBusy               ErrorCode = "busy"
	ErrCodeNotFound           ErrorCode = "not found"
	ErrCodeStopped            ErrorCode = "stopped"
)

// HCDError is a sentinel error comparable with errors.Is against any
// structured Error of the same code.
type HCDError string

func (e HCDError) Error() string {
	return "hcd: " + string(e)
}

// Sentinel errors
const (
	ErrInvalidParameters  HCDError = HCDError(ErrCodeInvalidParameters)
	ErrInsufficientMemory HCDError = HCDError(ErrCodeInsufficientMemory)
	ErrMisconfigured      HCDError = HCDError(ErrCodeMisconfigured)
	ErrIO                 HCDError = HCDError(ErrCodeIOError)
	ErrTimeout            HCDError = HCDError(ErrCodeTimeout)
	ErrCancelTimeout      HCDError = HCDError(ErrCodeCancelTimeout)
	ErrCancelled          HCDError = HCDError(ErrCodeCancelled)
	ErrDisabled           HCDError = HCDError(ErrCodeDisabled)
	ErrDeviceOffline      HCDError = HCDError(ErrCodeDeviceOffline)
	ErrCheckCondition     HCDError = HCDError(ErrCodeCheckCondition)
	ErrQueueFull          HCDError = HCDError(ErrCodeBusy)
	ErrNotFound           HCDError = HCDError(ErrCodeNotFound)
	ErrStopped            HCDError = HCDError(ErrCodeStopped)
)

// Error constructors

// NewError creates a new structured error
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{
		Op:         op,
		Controller: -1,
		Slot:       -1,
		Code:       code,
		Msg:        msg,
	}
}

// NewControllerError creates an error for one controller
func NewControllerError(op string, ctrl int, code ErrorCode, msg string) *Error {
	e := NewError(op, code, msg)
	e.Controller = ctrl
	return e
}

// NewSlotError creates an error for one command slot
func NewSlotError(op string, ctrl, slot int, code ErrorCode, msg string) *Error {
	e := NewControllerError(op, ctrl, code, msg)
	e.Slot = slot
	return e
}

// NewStatusError creates an error carrying the controller status code
func NewStatusError(op string, ctrl int, code ErrorCode, status uint16) *Error {
	e := NewControllerError(op, ctrl, code, "")
	e.Status = status
	return e
}

// WrapError wraps an existing error with controller context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	var he *Error
	if errors.As(inner, &he) {
		return &Error{
			Op:         op,
			Controller: he.Controller,
			Slot:       he.Slot,
			Code:       he.Code,
			Status:     he.Status,
			Errno:      he.Errno,
			Msg:        he.Msg,
			Inner:      he.Inner,
		}
	}

	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:         op,
			Controller: -1,
			Slot:       -1,
			Code:       mapErrnoToCode(errno),
			Errno:      errno,
			Msg:        inner.Error(),
			Inner:      inner,
		}
	}

	return &Error{
		Op:         op,
		Controller: -1,
		Slot:       -1,
		Code:       ErrCodeIOError,
		Msg:        inner.Error(),
		Inner:      inner,
	}
}

// mapErrnoToCode maps errno values from the mapping layer to error codes
func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.ENOENT, syscall.ENODEV:
		return ErrCodeNotFound
	case syscall.EBUSY, syscall.EAGAIN:
		return ErrCodeBusy
	case syscall.EINVAL, syscall.E2BIG:
		return ErrCodeInvalidParameters
	case syscall.ENOMEM, syscall.ENOSPC:
		return ErrCodeInsufficientMemory
	case syscall.ETIMEDOUT:
		return ErrCodeTimeout
	case syscall.ECANCELED:
		return ErrCodeCancelled
	default:
		return ErrCodeIOError
	}
}

// IsCode checks if an error matches a specific error code
func IsCode(err error, code ErrorCode) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Code == code
	}
	return false
}

// IsStatus checks if an error carries a specific controller status code
func IsStatus(err error, status uint16) bool {
	var he *Error
	if errors.As(err, &he) {
		return he.Status == status
	}
	return false
}
