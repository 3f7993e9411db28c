package boot

import (
	"log/slog"

	"openenterprise/basicloader/apt"
	"openenterprise/basicloader/eeprom"
	"openenterprise/basicloader/flashsink"
	"openenterprise/basicloader/update"
)

// HWIDPolicy decides whether a staged update's target hardware id is
// acceptable to install on this device. The default, AcceptAnyHWID,
// installs regardless of the id; a board can opt into stricter
// checking.
type HWIDPolicy func(hwid [6]byte) bool

// AcceptAnyHWID is the default HWIDPolicy: it accepts every hardware
// id.
func AcceptAnyHWID([6]byte) bool { return true }

// Target is the host glue the boot protocol runs against: the flash
// region (spanning both the resident firmware and any staged update
// above it), a scratch region for the delta applier, the EEPROM staging
// store, and the panic signalling and hardware-id policy hooks.
type Target struct {
	Flash     *flashsink.Sink
	FlashBase uint32
	FlashSize uint32

	FWBase uint32

	Scratch     *flashsink.Sink
	ScratchBase uint32
	ScratchSize uint32

	PageSize int

	EEPROM     eeprom.Store
	Signaller  apt.Signaller
	HWIDPolicy HWIDPolicy

	Logger *slog.Logger
}

func (t *Target) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *Target) flashTop() uint32 {
	return t.FlashBase + t.FlashSize
}

// updateTarget adapts Target into the update package's host-glue
// contract: the firmware destination (which the delta path also reads as
// its reference image) plus the decompression scratch region.
func (t *Target) updateTarget() *update.Target {
	return &update.Target{
		FW:          t.Flash,
		FWBase:      t.FWBase,
		FWMax:       t.flashTop() - t.FWBase,
		Scratch:     t.Scratch,
		ScratchBase: t.ScratchBase,
		ScratchSize: t.ScratchSize,
		PageSize:    t.PageSize,
	}
}

func (t *Target) hwidPolicy() HWIDPolicy {
	if t.HWIDPolicy != nil {
		return t.HWIDPolicy
	}
	return AcceptAnyHWID
}
