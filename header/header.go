// Package header defines the on-flash layouts shared by the resident
// firmware image, staged updates and delta blocks. Every type here is a
// byte-exact wire format: fields are marshaled with explicit
// encoding/binary calls rather than struct layout, so there is no
// dependency on compiler padding or host endianness.
package header

import "encoding/binary"

// FWHeaderSize is the size in bytes of FWHeader on flash.
const FWHeaderSize = 12

// FWHeader is the 12-byte header prefixing the resident firmware image.
type FWHeader struct {
	CRC        uint32
	Size       uint32
	EntryPoint uint32
}

// Marshal encodes h as a 12-byte little-endian record.
func (h FWHeader) Marshal() []byte {
	buf := make([]byte, FWHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.CRC)
	binary.LittleEndian.PutUint32(buf[4:8], h.Size)
	binary.LittleEndian.PutUint32(buf[8:12], h.EntryPoint)
	return buf
}

// ParseFWHeader decodes a 12-byte little-endian FWHeader.
func ParseFWHeader(buf []byte) (FWHeader, error) {
	var h FWHeader
	if len(buf) < FWHeaderSize {
		return h, errShortBuffer("FWHeader", FWHeaderSize, len(buf))
	}
	h.CRC = binary.LittleEndian.Uint32(buf[0:4])
	h.Size = binary.LittleEndian.Uint32(buf[4:8])
	h.EntryPoint = binary.LittleEndian.Uint32(buf[8:12])
	return h, nil
}

// UpdateType identifies the encoding of an update's payload.
type UpdateType uint8

const (
	UpdatePlain     UpdateType = 0
	UpdateLZ4       UpdateType = 1
	UpdateLZ4Delta  UpdateType = 2
)

func (t UpdateType) String() string {
	switch t {
	case UpdatePlain:
		return "plain"
	case UpdateLZ4:
		return "lz4"
	case UpdateLZ4Delta:
		return "lz4delta"
	default:
		return "unknown"
	}
}

// UpdateHeaderSize is the size in bytes of UpdateHeader on flash.
const UpdateHeaderSize = 24

// UpdateHeader is the 24-byte header prefixing a staged update image.
// HWID is the 6-byte hardware identifier the update is targeted at.
type UpdateHeader struct {
	CRC    uint32
	Size   uint32
	FWCRC  uint32
	FWSize uint32
	HWID   [6]byte
	UpType UpdateType
	RFU    uint8
}

// Marshal encodes h as a 24-byte little-endian record.
func (h UpdateHeader) Marshal() []byte {
	buf := make([]byte, UpdateHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.CRC)
	binary.LittleEndian.PutUint32(buf[4:8], h.Size)
	binary.LittleEndian.PutUint32(buf[8:12], h.FWCRC)
	binary.LittleEndian.PutUint32(buf[12:16], h.FWSize)
	copy(buf[16:22], h.HWID[:])
	buf[22] = byte(h.UpType)
	buf[23] = h.RFU
	return buf
}

// ParseUpdateHeader decodes a 24-byte little-endian UpdateHeader.
func ParseUpdateHeader(buf []byte) (UpdateHeader, error) {
	var h UpdateHeader
	if len(buf) < UpdateHeaderSize {
		return h, errShortBuffer("UpdateHeader", UpdateHeaderSize, len(buf))
	}
	h.CRC = binary.LittleEndian.Uint32(buf[0:4])
	h.Size = binary.LittleEndian.Uint32(buf[4:8])
	h.FWCRC = binary.LittleEndian.Uint32(buf[8:12])
	h.FWSize = binary.LittleEndian.Uint32(buf[12:16])
	copy(h.HWID[:], buf[16:22])
	h.UpType = UpdateType(buf[22])
	h.RFU = buf[23]
	return h, nil
}

// DeltaHeaderSize is the size in bytes of DeltaHeader, immediately
// following UpdateHeader in an LZ4-delta update.
const DeltaHeaderSize = 12

// DeltaHeader describes the reference image an LZ4-delta update is
// patched against and the block size it was diced into.
type DeltaHeader struct {
	RefCRC  uint32
	RefSize uint32
	BlkSize uint32
}

// Marshal encodes h as a 12-byte little-endian record.
func (h DeltaHeader) Marshal() []byte {
	buf := make([]byte, DeltaHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.RefCRC)
	binary.LittleEndian.PutUint32(buf[4:8], h.RefSize)
	binary.LittleEndian.PutUint32(buf[8:12], h.BlkSize)
	return buf
}

// ParseDeltaHeader decodes a 12-byte little-endian DeltaHeader.
func ParseDeltaHeader(buf []byte) (DeltaHeader, error) {
	var h DeltaHeader
	if len(buf) < DeltaHeaderSize {
		return h, errShortBuffer("DeltaHeader", DeltaHeaderSize, len(buf))
	}
	h.RefCRC = binary.LittleEndian.Uint32(buf[0:4])
	h.RefSize = binary.LittleEndian.Uint32(buf[4:8])
	h.BlkSize = binary.LittleEndian.Uint32(buf[8:12])
	return h, nil
}

// DeltaBlockHeaderSize is the size in bytes of a DeltaBlock's fixed
// portion, excluding its variable-length LZ4 payload.
const DeltaBlockHeaderSize = 14

// DeltaBlock is one block of an LZ4-delta update: a content-hash probe
// (Hash), the target and dictionary block indices, the dictionary length
// actually available (it shrinks near the end of the reference image),
// and the LZ4 payload length, followed by LZ4Len bytes of payload.
type DeltaBlock struct {
	Hash    [2]uint32
	BlkIdx  uint8
	DictIdx uint8
	DictLen uint16
	LZ4Len  uint16
	Payload []byte
}

// Marshal encodes b as its fixed header followed by Payload, padded with
// zero bytes to the next 4-byte boundary so blocks chain back to back on
// word-aligned offsets.
func (b DeltaBlock) Marshal() []byte {
	buf := make([]byte, DeltaBlockHeaderSize, DeltaBlockHeaderSize+len(b.Payload))
	binary.LittleEndian.PutUint32(buf[0:4], b.Hash[0])
	binary.LittleEndian.PutUint32(buf[4:8], b.Hash[1])
	buf[8] = b.BlkIdx
	buf[9] = b.DictIdx
	binary.LittleEndian.PutUint16(buf[10:12], b.DictLen)
	binary.LittleEndian.PutUint16(buf[12:14], b.LZ4Len)
	buf = append(buf, b.Payload...)
	for len(buf)%4 != 0 {
		buf = append(buf, 0)
	}
	return buf
}

// ParseDeltaBlock decodes one DeltaBlock from the start of buf and
// returns the number of bytes consumed, including alignment padding, so
// callers can advance to the next block.
func ParseDeltaBlock(buf []byte) (DeltaBlock, int, error) {
	var b DeltaBlock
	if len(buf) < DeltaBlockHeaderSize {
		return b, 0, errShortBuffer("DeltaBlock", DeltaBlockHeaderSize, len(buf))
	}
	b.Hash[0] = binary.LittleEndian.Uint32(buf[0:4])
	b.Hash[1] = binary.LittleEndian.Uint32(buf[4:8])
	b.BlkIdx = buf[8]
	b.DictIdx = buf[9]
	b.DictLen = binary.LittleEndian.Uint16(buf[10:12])
	b.LZ4Len = binary.LittleEndian.Uint16(buf[12:14])
	end := DeltaBlockHeaderSize + int(b.LZ4Len)
	if len(buf) < end {
		return b, 0, errShortBuffer("DeltaBlock payload", end, len(buf))
	}
	b.Payload = buf[DeltaBlockHeaderSize:end]
	consumed := (end + 3) &^ 3
	return b, consumed, nil
}
