package update

import (
	"context"
	"fmt"

	"openenterprise/basicloader/crc32x"
	"openenterprise/basicloader/header"
	"openenterprise/basicloader/lz4"
)

// Progress reports installer advancement during a delta install, one
// report per block.
type Progress struct {
	BlockIndex  int
	TotalBlocks int
	Resumed     bool // true if this block was already correctly installed
}

// Option configures an Apply call.
type Option func(*options)

type options struct {
	onProgress func(Progress)
}

// WithProgress registers a callback invoked once per delta block.
func WithProgress(fn func(Progress)) Option {
	return func(o *options) { o.onProgress = fn }
}

// Validate checks an update header against its declared payload for the
// integrity and size invariants every update must satisfy before
// installation is attempted: the header's own CRC, the payload size
// agreeing with the header, and the update fitting the target region.
func Validate(t *Target, hdr header.UpdateHeader, payload []byte) error {
	// The update-wide CRC covers bytes [8, size) of the record: the
	// header fields after crc/size, followed by the payload, not the
	// header alone.
	headerOnly := hdr
	headerOnly.CRC = 0
	tail := append(headerOnly.Marshal()[8:header.UpdateHeaderSize:header.UpdateHeaderSize], payload...)
	check := crc32x.Word32(tail)
	if check != hdr.CRC {
		return &CRCError{Reason: "update header CRC mismatch"}
	}
	if hdr.Size != header.UpdateHeaderSize+uint32(len(payload)) {
		return &SizeError{Reason: "update header size does not match payload length"}
	}
	if !t.fits(hdr.FWSize) {
		return &SizeError{Reason: "firmware image does not fit target region"}
	}
	if t.PageSize > 0 && hdr.FWSize%uint32(t.PageSize) != 0 {
		return &SizeError{Reason: "firmware size is not a page multiple"}
	}
	switch hdr.UpType {
	case header.UpdatePlain, header.UpdateLZ4, header.UpdateLZ4Delta:
	default:
		return &NoImplError{UpType: uint8(hdr.UpType)}
	}
	return nil
}

// Apply installs the update described by hdr, whose payload (the bytes
// immediately following the 24-byte header on flash) is payload. install
// selects between a dry run (install=false, used to validate a staged
// update before it is committed) and an actual flash write.
//
// Apply never allocates more than one block's worth of scratch memory at
// a time for the delta path; the plain and self-contained LZ4 paths
// stream directly into the page sink.
func Apply(ctx context.Context, t *Target, hdr header.UpdateHeader, payload []byte, install bool, opts ...Option) (Code, error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	if err := Validate(t, hdr, payload); err != nil {
		var coder Coder
		if asCoder(err, &coder) {
			return coder.Code(), err
		}
		return General, err
	}

	switch hdr.UpType {
	case header.UpdatePlain:
		return applyPlain(t, hdr, payload, install)
	case header.UpdateLZ4:
		return applyLZ4(t, hdr, payload, install)
	case header.UpdateLZ4Delta:
		return applyLZ4Delta(ctx, t, hdr, payload, install, &o)
	default:
		return NoImpl, &NoImplError{UpType: uint8(hdr.UpType)}
	}
}

func asCoder(err error, out *Coder) bool {
	if c, ok := err.(Coder); ok {
		*out = c
		return true
	}
	return false
}

func applyPlain(t *Target, hdr header.UpdateHeader, payload []byte, install bool) (Code, error) {
	if uint32(len(payload)) != hdr.FWSize {
		return Size, &SizeError{Reason: "plain payload length does not match firmware size"}
	}
	if crc32x.Word32(payload) != hdr.FWCRC {
		return General, &CRCError{Reason: "plain payload CRC mismatch"}
	}
	if !install {
		return OK, nil
	}
	if err := t.FW.Begin(); err != nil {
		return General, err
	}
	defer t.FW.End()
	if err := t.FW.ErasePages(t.FWBase, int(hdr.FWSize)); err != nil {
		return General, err
	}
	if err := t.FW.CopyWords(t.FWBase, payload); err != nil {
		return General, err
	}
	return OK, nil
}

func applyLZ4(t *Target, hdr header.UpdateHeader, payload []byte, install bool) (Code, error) {
	if len(payload) == 0 {
		return Size, &SizeError{Reason: "lz4 payload empty"}
	}
	// The compressed stream is word-padded; its last byte holds the pad
	// count, so the real stream length is len(payload) minus that count.
	padCount := int(payload[len(payload)-1])
	lz4len := len(payload) - padCount
	if lz4len < 0 || lz4len > len(payload) {
		return Size, &SizeError{Reason: "lz4 payload padding count out of range"}
	}
	stream := payload[:lz4len]

	if !install {
		// A dry run is size and feasibility checks only; decompression
		// would need somewhere to put the output, and a dry run must not
		// write anywhere.
		return OK, nil
	}

	if err := t.FW.Begin(); err != nil {
		return General, err
	}
	defer t.FW.End()
	if err := t.FW.ErasePages(t.FWBase, int(hdr.FWSize)); err != nil {
		return General, err
	}
	d := lz4.NewDecompressor(t.FW, t.FWBase, nil, t.PageSize)
	n, err := d.Decompress(stream)
	if err != nil {
		return General, fmt.Errorf("update: lz4 decompress: %w", err)
	}
	if uint32(n) != hdr.FWSize {
		return Size, &SizeError{Reason: "decompressed firmware size does not match header"}
	}
	got, err := t.FW.ReadRange(t.FWBase, n)
	if err != nil {
		return General, err
	}
	if crc32x.Word32(got) != hdr.FWCRC {
		return General, &CRCError{Reason: "decompressed firmware CRC mismatch"}
	}
	return OK, nil
}
