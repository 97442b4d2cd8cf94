package ctrl

import "github.com/ehrlich-b/go-hcd/internal/desc"

// ServiceInit initializes a controller service. The controller answers
// commands for an uninitialized service with the unknown-service token.
func ServiceInit(service uint8) desc.Command {
	return desc.Command{Opcode: desc.OpInit, Service: service, Flags: desc.FlagInternal}
}

// ServiceInfo queries a service. Info of the result carries the answer.
func ServiceInfo(service uint8) desc.Command {
	return desc.Command{Opcode: desc.OpInfo, Service: service, Flags: desc.FlagInternal}
}

// Unmount quiesces one host drive before removal.
func Unmount(target uint8) desc.Command {
	return desc.Command{Opcode: desc.OpUnmount, Service: desc.ServiceCache, Target: target, Flags: desc.FlagInternal}
}

// FlushDrive flushes the controller cache for one host drive.
func FlushDrive(target uint8) desc.Command {
	return desc.Command{Opcode: desc.OpFlush, Service: desc.ServiceCache, Target: target, Flags: desc.FlagInternal}
}

// ResetBus resets one raw bus.
func ResetBus(bus uint8) desc.Command {
	return desc.Command{Opcode: desc.OpReset, Service: desc.ServiceRaw, Bus: bus, Flags: desc.FlagInternal}
}

// PowerDown powers down every port before the controller is removed.
func PowerDown() desc.Command {
	return desc.Command{Opcode: desc.OpPowerDown, Service: desc.ServiceAdmin, Flags: desc.FlagInternal}
}

// ClearEvents clears the controller's own event log.
func ClearEvents() desc.Command {
	return desc.Command{Opcode: desc.OpClearEvent, Service: desc.ServiceAdmin, Flags: desc.FlagInternal}
}

// Quiesce reports whether c may still be issued to a disabled controller:
// only commands that flush, unmount or power down are allowed.
func Quiesce(c *desc.Command) bool {
	switch c.Opcode {
	case desc.OpFlush, desc.OpUnmount, desc.OpPowerDown:
		return true
	default:
		return false
	}
}
