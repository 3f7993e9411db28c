package update

import (
	"openenterprise/basicloader/crc32x"
	"openenterprise/basicloader/header"
	"openenterprise/basicloader/lz4"
	"openenterprise/basicloader/sha256x"
)

// PackRequest is the packer's in-memory description of an update being
// built. It never touches flash itself; Pack turns it into the exact byte
// record a bootloader's CheckUpdate/Apply pair expects to find staged.
type PackRequest struct {
	HWID [6]byte

	// UpType selects the payload encoding. UpdateLZ4Delta additionally
	// requires RefImage and BlkSize; UpdatePlain and UpdateLZ4 ignore
	// them.
	UpType header.UpdateType

	// NewImage is the firmware image being packaged, uncompressed.
	NewImage []byte

	// RefImage is the firmware image the target device is assumed to
	// currently hold, required only for UpdateLZ4Delta.
	RefImage []byte

	// BlkSize is the delta block size, required only for
	// UpdateLZ4Delta.
	BlkSize uint32
}

// Pack builds a complete update record (UpdateHeader followed by its
// payload) ready to be written to flash at a staging address. The
// returned header's CRC already covers the payload, matching the
// [8, size) span Validate and boot.CheckUpdate both check.
func Pack(req PackRequest) (header.UpdateHeader, []byte, error) {
	switch req.UpType {
	case header.UpdatePlain:
		return packPlain(req)
	case header.UpdateLZ4:
		return packLZ4(req)
	case header.UpdateLZ4Delta:
		return packLZ4Delta(req)
	default:
		return header.UpdateHeader{}, nil, &NoImplError{UpType: uint8(req.UpType)}
	}
}

func packPlain(req PackRequest) (header.UpdateHeader, []byte, error) {
	payload := req.NewImage
	hdr := header.UpdateHeader{
		Size:   header.UpdateHeaderSize + uint32(len(payload)),
		FWCRC:  crc32x.Word32(req.NewImage),
		FWSize: uint32(len(req.NewImage)),
		HWID:   req.HWID,
		UpType: header.UpdatePlain,
	}
	return signHeader(hdr, payload), payload, nil
}

func packLZ4(req PackRequest) (header.UpdateHeader, []byte, error) {
	stream := lz4.CompressBlock(req.NewImage)
	payload := PadLZ4Stream(stream)
	hdr := header.UpdateHeader{
		Size:   header.UpdateHeaderSize + uint32(len(payload)),
		FWCRC:  crc32x.Word32(req.NewImage),
		FWSize: uint32(len(req.NewImage)),
		HWID:   req.HWID,
		UpType: header.UpdateLZ4,
	}
	return signHeader(hdr, payload), payload, nil
}

// packLZ4Delta dices NewImage into BlkSize-sized blocks, each compressed
// against the not-yet-overwritten content at its own offset in RefImage,
// the same dictionary-locality invariant the delta applier relies on
// when it reads its dictionary out of the resident image.
func packLZ4Delta(req PackRequest) (header.UpdateHeader, []byte, error) {
	if req.BlkSize == 0 {
		return header.UpdateHeader{}, nil, &SizeError{Reason: "delta block size must be nonzero"}
	}
	newFW := req.NewImage
	refFW := req.RefImage
	nblocks := int((uint32(len(newFW)) + req.BlkSize - 1) / req.BlkSize)

	// RefCRC is the reference image's own FWHeader CRC, covering bytes
	// [8, size), which is what the applier's dry run compares it with.
	var refCRC uint32
	if len(refFW) >= 8 {
		refCRC = crc32x.Word32(refFW[8:])
	}
	dh := header.DeltaHeader{
		RefCRC:  refCRC,
		RefSize: uint32(len(refFW)),
		BlkSize: req.BlkSize,
	}
	body := dh.Marshal()
	for i := 0; i < nblocks; i++ {
		boff := uint32(i) * req.BlkSize
		bsz := req.BlkSize
		if uint32(len(newFW))-boff < bsz {
			bsz = uint32(len(newFW)) - boff
		}
		target := newFW[boff : boff+bsz]

		// The dictionary shrinks to nothing for blocks past the end of
		// the reference image (the new image grew).
		var dictLen uint32
		if boff < uint32(len(refFW)) {
			dictLen = uint32(len(refFW)) - boff
			if dictLen > bsz {
				dictLen = bsz
			}
		}
		var dict []byte
		if dictLen > 0 {
			dict = refFW[boff : boff+dictLen]
		}

		stream := lz4.CompressBlockDict(target, dict)
		blk := header.DeltaBlock{
			Hash:    sha256x.Prefix64(target),
			BlkIdx:  uint8(i),
			DictIdx: uint8(i),
			DictLen: uint16(dictLen),
			LZ4Len:  uint16(len(stream)),
			Payload: stream,
		}
		body = append(body, blk.Marshal()...)
	}

	hdr := header.UpdateHeader{
		Size:   header.UpdateHeaderSize + uint32(len(body)),
		FWCRC:  crc32x.Word32(newFW),
		FWSize: uint32(len(newFW)),
		HWID:   req.HWID,
		UpType: header.UpdateLZ4Delta,
	}
	return signHeader(hdr, body), body, nil
}

// signHeader computes the whole-record CRC over [8, size): the header's
// trailing fields followed by payload, exactly as Validate checks it.
func signHeader(hdr header.UpdateHeader, payload []byte) header.UpdateHeader {
	hdr.CRC = 0
	tail := append(hdr.Marshal()[8:header.UpdateHeaderSize:header.UpdateHeaderSize], payload...)
	hdr.CRC = crc32x.Word32(tail)
	return hdr
}

// PadLZ4Stream appends the word-alignment padding convention applyLZ4
// expects (delta blocks carry LZ4Len instead): zero or more zero bytes
// followed by a final byte holding the total pad count, so that
// len(result) is a multiple of 4 and
// len(result) - result[len(result)-1] == len(stream).
func PadLZ4Stream(stream []byte) []byte {
	padded := len(stream) + 1
	if padded%4 != 0 {
		padded += 4 - padded%4
	}
	pad := padded - len(stream)
	out := make([]byte, padded)
	copy(out, stream)
	out[padded-1] = byte(pad)
	return out
}
