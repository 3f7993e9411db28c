package boot

import (
	"fmt"

	"openenterprise/basicloader/crc32x"
	"openenterprise/basicloader/header"
)

// CheckUpdate validates a candidate staged update at addr: pointer
// alignment, flash bounds, header-size agreement, the whole-update CRC,
// and that the update image does not overlap the region it would be
// installed into. The delta path's reference-image match is
// deliberately not checked here: it is only meaningful before the first
// block of an install has been written, so it belongs to the applier's
// dry run, which staging performs: a boot that resumes an interrupted
// install must still pass CheckUpdate.
//
// It returns the parsed header and the payload bytes following it (the
// slice Apply expects as its payload argument), never touching flash
// beyond reading.
func CheckUpdate(t *Target, addr uint32) (header.UpdateHeader, []byte, error) {
	if addr%4 != 0 {
		return header.UpdateHeader{}, nil, fmt.Errorf("boot: update pointer %#x is not 4-byte aligned", addr)
	}
	if addr < t.FlashBase {
		return header.UpdateHeader{}, nil, fmt.Errorf("boot: update pointer %#x below flash base %#x", addr, t.FlashBase)
	}
	if addr > t.flashTop() || t.flashTop()-addr < header.UpdateHeaderSize {
		return header.UpdateHeader{}, nil, fmt.Errorf("boot: update header at %#x exceeds flash", addr)
	}

	raw, err := t.Flash.ReadRange(addr, header.UpdateHeaderSize)
	if err != nil {
		return header.UpdateHeader{}, nil, fmt.Errorf("boot: reading update header: %w", err)
	}
	hdr, err := header.ParseUpdateHeader(raw)
	if err != nil {
		return hdr, nil, err
	}

	if hdr.Size < header.UpdateHeaderSize {
		return hdr, nil, fmt.Errorf("boot: update size %d smaller than header", hdr.Size)
	}
	if hdr.Size%4 != 0 {
		return hdr, nil, fmt.Errorf("boot: update size %d is not word-aligned", hdr.Size)
	}
	if hdr.Size > t.flashTop()-addr {
		return hdr, nil, fmt.Errorf("boot: update at %#x (size %d) exceeds flash bounds", addr, hdr.Size)
	}

	// CRC covers bytes [8, size) of the update record: the trailing 16
	// header bytes plus the payload.
	crcSpan, err := t.Flash.ReadRange(addr+8, int(hdr.Size)-8)
	if err != nil {
		return hdr, nil, fmt.Errorf("boot: reading update body: %w", err)
	}
	if crc32x.Word32(crcSpan) != hdr.CRC {
		return hdr, nil, fmt.Errorf("boot: update CRC mismatch at %#x", addr)
	}
	payload := crcSpan[header.UpdateHeaderSize-8:]

	if hdr.FWSize%uint32(t.PageSize) != 0 {
		return hdr, nil, fmt.Errorf("boot: update firmware size %d is not a page multiple", hdr.FWSize)
	}
	if addr <= t.FWBase || hdr.FWSize >= addr-t.FWBase {
		return hdr, nil, fmt.Errorf("boot: update image at %#x overlaps its install target", addr)
	}

	if !t.hwidPolicy()(hdr.HWID) {
		return hdr, nil, fmt.Errorf("boot: update hardware id rejected by policy")
	}

	return hdr, payload, nil
}
