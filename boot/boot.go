// Package boot implements the five-step power-on sequence: read staging
// configuration, apply a committed update if one is staged, verify the
// resident firmware, clear staging, and hand control (via a Result
// instead of an actual branch, since this runs on the host) to the
// firmware entry point along with the Application Programming Table.
package boot

import (
	"context"
	"fmt"

	"openenterprise/basicloader/apt"
	"openenterprise/basicloader/crc32x"
	"openenterprise/basicloader/eeprom"
	"openenterprise/basicloader/header"
	"openenterprise/basicloader/sha256x"
	"openenterprise/basicloader/update"
)

// Result is what, on real hardware, would instead be an unconditional
// jump to fwh.entrypoint: the entry point to branch to, the APT to pass
// as its argument, and, if the sequence terminated in a panic instead,
// which one.
type Result struct {
	Entrypoint    uint32
	Table         apt.Table
	UpdateApplied bool
	// InstalledBytes is the size of the firmware image an applied update
	// installed, zero when nothing was applied.
	InstalledBytes uint32
	Panicked       bool
	PanicInfo      *apt.Info
}

// Run executes the power-on sequence against t and returns the outcome.
// It never itself performs the final jump or system reset (both are
// necessarily board-specific); callers on real hardware branch to
// Result.Entrypoint, and callers on the emulator/host variant report a
// firmware entry point that returns via FirmwareReturned.
func Run(ctx context.Context, t *Target) (Result, error) {
	logger := t.logger()
	logger.Info("boot:start")

	cfg, err := t.EEPROM.ReadConfig()
	if err != nil {
		return Result{}, fmt.Errorf("boot: read config: %w", err)
	}

	var updateApplied bool
	var installedBytes uint32
	if addr, staged := cfg.Staged(); staged {
		logger.Info("boot:update-check", "addr", addr)
		hdr, payload, err := CheckUpdate(t, addr)
		if err != nil {
			// A staged pointer that no longer validates is skipped, not
			// fatal: the resident firmware is still checked below and the
			// stale staging record is cleared.
			logger.Warn("boot:update-rejected", "addr", addr, "err", err)
		} else {
			if _, err := update.Apply(ctx, t.updateTarget(), hdr, payload, true); err != nil {
				logger.Error("boot:update-failed", "addr", addr, "err", err)
				info := apt.Info{Type: apt.TypeBootloader, Reason: apt.ReasonUpdate, Addr: 0}
				apt.Panic(ctx, t.Signaller, info)
				return Result{Panicked: true, PanicInfo: &info}, err
			}
			updateApplied = true
			installedBytes = hdr.FWSize
			logger.Info("boot:update-applied", "addr", addr, "fwsize", hdr.FWSize)
		}
	} else {
		logger.Info("boot:no-update-staged", "fwupdate1", cfg.FWUpdate1, "fwupdate2", cfg.FWUpdate2)
	}

	fwh, err := t.verifyResident()
	if err != nil {
		logger.Error("boot:resident-crc-failed", "err", err)
		info := apt.Info{Type: apt.TypeBootloader, Reason: apt.ReasonCRC, Addr: 0}
		apt.Panic(ctx, t.Signaller, info)
		return Result{Panicked: true, PanicInfo: &info}, err
	}

	if cfg.FWUpdate1 != 0 || cfg.FWUpdate2 != 0 {
		if err := eeprom.Clear(t.EEPROM); err != nil {
			return Result{}, fmt.Errorf("boot: clear staging: %w", err)
		}
		logger.Info("boot:staging-cleared")
	}

	table := t.buildTable()
	logger.Info("boot:jump", "entrypoint", fwh.EntryPoint)
	return Result{
		Entrypoint:     fwh.EntryPoint,
		Table:          table,
		UpdateApplied:  updateApplied,
		InstalledBytes: installedBytes,
	}, nil
}

// FirmwareReturned reports the emulator-host fatal fault: the firmware
// entry point returned instead of running forever. Real hardware never
// observes this (there is nowhere to return to); the host harness calls
// this when its simulated CPU halts.
func FirmwareReturned(ctx context.Context, t *Target) {
	t.logger().Error("boot:firmware-returned")
	apt.Panic(ctx, t.Signaller, apt.Info{Type: apt.TypeBootloader, Reason: apt.ReasonFWReturn})
}

func (t *Target) readFWHeader() (header.FWHeader, error) {
	buf, err := t.Flash.ReadRange(t.FWBase, header.FWHeaderSize)
	if err != nil {
		return header.FWHeader{}, fmt.Errorf("boot: reading firmware header: %w", err)
	}
	return header.ParseFWHeader(buf)
}

// verifyResident checks that the resident firmware header's declared
// size is in range and its CRC matches the image content.
func (t *Target) verifyResident() (header.FWHeader, error) {
	fwh, err := t.readFWHeader()
	if err != nil {
		return fwh, err
	}
	if fwh.Size < header.FWHeaderSize || fwh.Size > t.flashTop()-t.FWBase {
		return fwh, fmt.Errorf("boot: firmware size %d out of range", fwh.Size)
	}
	image, err := t.Flash.ReadRange(t.FWBase+8, int(fwh.Size)-8)
	if err != nil {
		return fwh, fmt.Errorf("boot: reading firmware image: %w", err)
	}
	if crc32x.Word32(image) != fwh.CRC {
		return fwh, fmt.Errorf("boot: firmware CRC mismatch (want %#x)", fwh.CRC)
	}
	return fwh, nil
}

// buildTable assembles the APT this boot hands to firmware: CRC32 and
// SHA256 are pure functions, WriteFlash and Update close over t, and
// Panic routes through t.Signaller exactly as the boot sequence's own
// panics do.
func (t *Target) buildTable() apt.Table {
	return apt.NewTable(
		func(ctx context.Context, reason apt.Reason, addr uint32) {
			apt.Panic(ctx, t.Signaller, apt.Info{Type: apt.TypeFirmware, Reason: reason, Addr: addr})
		},
		func(ctx context.Context, addr uint32, hash *[8]uint32) (apt.Code, error) {
			code, err := StageUpdate(ctx, t, addr, hash)
			return apt.Code(code), err
		},
		crc32x.Word32,
		func(dst uint32, src []byte, erase bool) error {
			if err := t.Flash.Begin(); err != nil {
				return err
			}
			defer t.Flash.End()
			if erase {
				n := len(src)
				if n == 0 {
					n = t.PageSize // erase-only: one page at dst
				}
				if err := t.Flash.ErasePages(dst, n); err != nil {
					return err
				}
			}
			if len(src) == 0 {
				return nil
			}
			return t.Flash.CopyWords(dst, src)
		},
		sha256x.Sum,
	)
}

// StageUpdate is the firmware-facing "update" entry point exposed
// through the APT: it validates addr via CheckUpdate, dry-runs Apply to
// confirm the update is actually installable against the firmware
// currently resident, and only then commits it to EEPROM via the
// two-write handshake. A crash between the two writes leaves nothing
// staged (eeprom.Commit's own durability argument), so StageUpdate
// itself need not be atomic beyond what Commit guarantees. hash, if
// non-nil, is stored alongside the pointer for transport auditing.
func StageUpdate(ctx context.Context, t *Target, addr uint32, hash *[8]uint32) (update.Code, error) {
	hdr, payload, err := CheckUpdate(t, addr)
	if err != nil {
		return update.Size, err
	}
	code, err := update.Apply(ctx, t.updateTarget(), hdr, payload, false)
	if err != nil {
		return code, err
	}
	if err := eeprom.Commit(t.EEPROM, addr, hash); err != nil {
		return update.General, fmt.Errorf("boot: committing staged update: %w", err)
	}
	return update.OK, nil
}
