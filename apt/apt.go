// Package apt implements the Application Programming Table: the stable,
// versioned capability surface the bootloader exposes to the resident
// firmware, and the panic path firmware uses to hand control back to the
// bootloader when it cannot continue.
package apt

import (
	"context"
	"fmt"

	"openenterprise/basicloader/version"
)

// Type classifies who detected the condition a panic reports.
type Type uint8

const (
	TypeException  Type = 0 // a CPU fault (bus error, hard fault) trapped the processor
	TypeBootloader Type = 1 // the bootloader itself detected the condition
	TypeFirmware   Type = 2 // resident firmware called into the panic entry explicitly
)

func (t Type) String() string {
	switch t {
	case TypeException:
		return "EXCEPTION"
	case TypeBootloader:
		return "BOOTLOADER"
	case TypeFirmware:
		return "FIRMWARE"
	default:
		return "UNKNOWN"
	}
}

// Reason narrows why a panic occurred.
type Reason uint8

const (
	ReasonFWReturn Reason = 0 // firmware's entry point returned instead of running forever
	ReasonCRC      Reason = 1 // a firmware or update CRC check failed
	ReasonFlash    Reason = 2 // a flash program/erase operation failed
	ReasonUpdate   Reason = 3 // the update applier reported a non-OK status
)

func (r Reason) String() string {
	switch r {
	case ReasonFWReturn:
		return "FWRETURN"
	case ReasonCRC:
		return "CRC"
	case ReasonFlash:
		return "FLASH"
	case ReasonUpdate:
		return "UPDATE"
	default:
		return "UNKNOWN"
	}
}

// Info is the immutable record a panic carries: it must never require an
// allocation to construct, since it may be built from a faulted firmware
// state that cannot be trusted to have a working heap.
type Info struct {
	Type   Type
	Reason Reason
	Addr   uint32
}

func (i Info) String() string {
	return fmt.Sprintf("panic type=%s reason=%s addr=%#x", i.Type, i.Reason, i.Addr)
}

// Signaller reports a panic to the outside world before the system
// resets. It must not itself be able to fail in a way that prevents the
// reset from happening: implementations should treat their own errors as
// best-effort.
type Signaller interface {
	Signal(ctx context.Context, info Info)
}

// Panic reports info through sig and returns. Callers must not resume
// normal operation afterward; in firmware this is followed by a system
// reset, which Panic itself does not perform since that action is
// necessarily board-specific.
func Panic(ctx context.Context, sig Signaller, info Info) {
	if sig != nil {
		sig.Signal(ctx, info)
	}
}

// Table is the versioned capability set handed to resident firmware.
// Fields are append-only: Version is bumped whenever a field is added,
// and no field is ever removed or reordered, so firmware built against an
// older Version still sees a compatible prefix of the table.
type Table struct {
	Version uint32
	Panic   func(ctx context.Context, reason Reason, addr uint32)
	// Update stages addr (and, if non-nil, a SHA-256 of the update for
	// transport auditing) as the update the bootloader should apply on
	// next boot, performing the full validation and dry run before
	// committing to EEPROM.
	Update func(ctx context.Context, addr uint32, hash *[8]uint32) (Code, error)
	CRC32  func(buf []byte) uint32
	// WriteFlash programs src at dst, erasing the destination pages
	// first when erase is set. A nil src with erase set performs an
	// erase-only operation covering one page at dst.
	WriteFlash func(dst uint32, src []byte, erase bool) error
	SHA256     func(data []byte) [8]uint32
}

// Code mirrors update.Code without importing the update package, so that
// apt has no dependency on the applier's internals, only on the stable
// integer contract the table exposes to firmware.
type Code int

// NewTable builds a Table stamped with the current APT version.
func NewTable(panicFn func(ctx context.Context, reason Reason, addr uint32), updateFn func(ctx context.Context, addr uint32, hash *[8]uint32) (Code, error), crc32Fn func([]byte) uint32, writeFlashFn func(uint32, []byte, bool) error, sha256Fn func([]byte) [8]uint32) Table {
	return Table{
		Version:    version.APTVersion,
		Panic:      panicFn,
		Update:     updateFn,
		CRC32:      crc32Fn,
		WriteFlash: writeFlashFn,
		SHA256:     sha256Fn,
	}
}
