package update

import (
	"context"
	"fmt"

	"openenterprise/basicloader/header"
	"openenterprise/basicloader/lz4"
	"openenterprise/basicloader/sha256x"
)

// applyLZ4Delta installs a block-delta update. Each block of the target
// firmware is checked against its content hash before being touched: if
// the resident firmware already contains the expected bytes at that
// offset (this block was already correctly installed in a previous,
// interrupted attempt), it is left alone; otherwise the block is
// decompressed into scratch, using the not-yet-overwritten portion of the
// resident firmware as an LZ4 dictionary, verified against its hash, and
// only then copied into place. This makes the install tolerant of being
// interrupted and resumed at any block boundary.
//
// The dry run (install=false) checks what can be checked without writing:
// the delta's declared reference CRC and size against the firmware
// currently resident, the block-size constraints, and every block's
// destination and dictionary bounds. The reference match belongs to the
// dry run and not the install path: a resumed install finds the resident
// image half-rewritten and must not reject it for that.
func applyLZ4Delta(ctx context.Context, t *Target, hdr header.UpdateHeader, payload []byte, install bool, o *options) (Code, error) {
	dh, err := header.ParseDeltaHeader(payload)
	if err != nil {
		return Size, &SizeError{Reason: "delta header: " + err.Error()}
	}
	if dh.BlkSize == 0 {
		return Size, &SizeError{Reason: "delta block size is zero"}
	}
	if dh.BlkSize%uint32(t.PageSize) != 0 {
		return Size, &SizeError{Reason: "delta block size is not a page multiple"}
	}
	if t.Scratch == nil {
		return General, fmt.Errorf("update: delta install requires a scratch region")
	}
	if dh.BlkSize > t.ScratchSize {
		return Size, &SizeError{Reason: "delta block size exceeds scratch region"}
	}

	if !install {
		ref, err := t.readResidentHeader()
		if err != nil {
			return General, err
		}
		if dh.RefCRC != ref.CRC || dh.RefSize != ref.Size {
			return General, &CRCError{Reason: "delta reference image does not match resident firmware"}
		}
	}

	if install {
		if err := t.FW.Begin(); err != nil {
			return General, err
		}
		defer t.FW.End()
		if err := t.Scratch.Begin(); err != nil {
			return General, err
		}
		defer t.Scratch.End()
	}

	total := int((hdr.FWSize + dh.BlkSize - 1) / dh.BlkSize)
	blocks := payload[header.DeltaHeaderSize:]
	pos := 0
	for i := 0; pos < len(blocks); i++ {
		select {
		case <-ctx.Done():
			return General, ctx.Err()
		default:
		}

		blk, consumed, err := header.ParseDeltaBlock(blocks[pos:])
		if err != nil {
			return Size, &SizeError{Reason: "delta block: " + err.Error()}
		}
		pos += consumed

		boff := uint32(blk.BlkIdx) * dh.BlkSize
		doff := uint32(blk.DictIdx) * dh.BlkSize
		if boff > hdr.FWSize || doff+uint32(blk.DictLen) > dh.RefSize {
			return Size, &SizeError{Reason: fmt.Sprintf("block %d out of bounds", blk.BlkIdx)}
		}
		bsz := dh.BlkSize
		if hdr.FWSize-boff < bsz {
			bsz = hdr.FWSize - boff
		}

		if !install {
			continue
		}

		baddr := t.FWBase + boff
		current, err := t.FW.ReadRange(baddr, int(bsz))
		if err != nil {
			return General, err
		}
		if sha256x.MatchesPrefix64(current, blk.Hash) {
			report(o, Progress{BlockIndex: i, TotalBlocks: total, Resumed: true})
			continue
		}

		resolved, err := resolveBlock(t, dh, blk, int(bsz))
		if err != nil {
			return General, err
		}
		if err := t.FW.ErasePages(baddr, int(bsz)); err != nil {
			return General, err
		}
		if err := t.FW.CopyWords(baddr, resolved); err != nil {
			return General, err
		}
		report(o, Progress{BlockIndex: i, TotalBlocks: total})
	}

	return OK, nil
}

// resolveBlock returns bsz bytes of correct content for one delta block,
// either by recognizing scratch already holds them (a previous attempt
// decompressed but was interrupted before the flashcopy into place) or by
// decompressing the block's LZ4 payload fresh. A hash mismatch after a
// fresh decompression is unrecoverable: the stream or the reference image
// it dictionaries against is corrupt.
func resolveBlock(t *Target, dh header.DeltaHeader, blk header.DeltaBlock, bsz int) ([]byte, error) {
	tmp, err := t.Scratch.ReadRange(t.ScratchBase, bsz)
	if err == nil && sha256x.MatchesPrefix64(tmp, blk.Hash) {
		return tmp, nil
	}

	doff := uint32(blk.DictIdx) * dh.BlkSize
	dict, err := t.FW.ReadRange(t.FWBase+doff, int(blk.DictLen))
	if err != nil {
		return nil, fmt.Errorf("update: reading dictionary block: %w", err)
	}

	if err := t.Scratch.ErasePages(t.ScratchBase, int(dh.BlkSize)); err != nil {
		return nil, fmt.Errorf("update: erasing scratch: %w", err)
	}
	d := lz4.NewDecompressor(t.Scratch, t.ScratchBase, dict, t.PageSize)
	n, err := d.Decompress(blk.Payload)
	if err != nil {
		return nil, fmt.Errorf("update: decompressing block %d: %w", blk.BlkIdx, err)
	}
	if n != bsz {
		return nil, &HashMismatchError{BlkIdx: blk.BlkIdx}
	}
	out, err := t.Scratch.ReadRange(t.ScratchBase, bsz)
	if err != nil {
		return nil, err
	}
	if !sha256x.MatchesPrefix64(out, blk.Hash) {
		return nil, &HashMismatchError{BlkIdx: blk.BlkIdx}
	}
	return out, nil
}

func report(o *options, p Progress) {
	if o != nil && o.onProgress != nil {
		o.onProgress(p)
	}
}
