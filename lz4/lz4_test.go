package lz4

import (
	"bytes"
	"math/rand"
	"testing"
)

// memSink is an in-memory PageSink used purely for testing the decoder,
// independent of the flashsink package.
type memSink struct {
	mem      map[uint32]byte
	pageSize int
}

func newMemSink(pageSize int) *memSink {
	return &memSink{mem: make(map[uint32]byte), pageSize: pageSize}
}

func (s *memSink) WritePage(addr uint32, page []byte) error {
	for i, b := range page {
		s.mem[addr+uint32(i)] = b
	}
	return nil
}

func (s *memSink) ReadByte(addr uint32) (byte, error) {
	return s.mem[addr], nil
}

func (s *memSink) bytes(addr uint32, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = s.mem[addr+uint32(i)]
	}
	return out
}

func TestRoundTripLiteralOnly(t *testing.T) {
	data := []byte("hello, bootloader world, this is plain literal data")
	enc := CompressBlock(data)
	sink := newMemSink(16)
	n, err := Decompress(sink, 0, enc, 16)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if n != len(data) {
		t.Fatalf("decompressed length = %d, want %d", n, len(data))
	}
	got := sink.bytes(0, n)
	if !bytes.Equal(got, data) {
		t.Fatalf("round trip mismatch:\n got: %x\nwant: %x", got, data)
	}
}

func TestRoundTripRepetitive(t *testing.T) {
	data := bytes.Repeat([]byte("ABCDABCE"), 200)
	enc := CompressBlock(data)
	if len(enc) >= len(data) {
		t.Fatalf("expected compression on repetitive data: enc=%d data=%d", len(enc), len(data))
	}
	sink := newMemSink(32)
	n, err := Decompress(sink, 0x1000, enc, 32)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	got := sink.bytes(0x1000, n)
	if !bytes.Equal(got, data) {
		t.Fatal("round trip mismatch on repetitive data")
	}
}

func TestRoundTripRandomSizes(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, size := range []int{0, 1, 3, 4, 5, 130, 1000, 4097} {
		data := make([]byte, size)
		for i := range data {
			// Biased toward repeats to exercise both literal and match paths.
			if i > 8 && r.Intn(3) == 0 {
				data[i] = data[i-4]
			} else {
				data[i] = byte(r.Intn(256))
			}
		}
		enc := CompressBlock(data)
		sink := newMemSink(64)
		n, err := Decompress(sink, 0, enc, 64)
		if err != nil {
			t.Fatalf("size %d: Decompress: %v", size, err)
		}
		got := sink.bytes(0, n)
		if !bytes.Equal(got, data) {
			t.Fatalf("size %d: round trip mismatch", size)
		}
	}
}

func TestDictionaryBackReference(t *testing.T) {
	dict := []byte("the quick brown fox jumps over the lazy dog")
	data := []byte("the quick brown fox jumps over the lazy dog again and again")
	enc := CompressBlockDict(data, dict)

	sink := newMemSink(16)
	d := NewDecompressor(sink, 0, dict, 16)
	n, err := d.Decompress(enc)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	got := sink.bytes(0, n)
	if !bytes.Equal(got, data) {
		t.Fatalf("dictionary round trip mismatch:\n got: %s\nwant: %s", got, data)
	}
}

func TestFlashBackReference(t *testing.T) {
	// A match whose offset reaches behind the current page, into content
	// already flushed to the sink, must resolve via ReadByte rather than
	// the page buffer.
	sink := newMemSink(8)
	// token: 8 literals "AAAAAAAA" (forces a page flush), match length 4.
	enc := []byte{0x80}
	enc = append(enc, []byte("AAAAAAAA")...)
	// the same sequence's match offset: 8, back into the flushed first
	// page.
	enc = append(enc, 0x08, 0x00)
	d := NewDecompressor(sink, 0, nil, 8)
	n, err := d.Decompress(enc)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	want := []byte("AAAAAAAAAAAA")
	if n != len(want) {
		t.Fatalf("n = %d, want %d", n, len(want))
	}
	got := sink.bytes(0, n)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestMalformedZeroOffset(t *testing.T) {
	enc := []byte{0x00, 0x00, 0x00}
	sink := newMemSink(16)
	if _, err := Decompress(sink, 0, enc, 16); err != ErrMalformedStream {
		t.Fatalf("err = %v, want ErrMalformedStream", err)
	}
}

func TestMalformedTruncatedLiteral(t *testing.T) {
	enc := []byte{0x50, 0x01, 0x02} // claims 5 literal bytes, only 2 present
	sink := newMemSink(16)
	if _, err := Decompress(sink, 0, enc, 16); err != ErrMalformedStream {
		t.Fatalf("err = %v, want ErrMalformedStream", err)
	}
}

func TestPageSizeInvariance(t *testing.T) {
	// Output must not depend on the page buffer size: the same stream
	// decoded with different P routes back-references through different
	// zones (RAM page vs already-written sink vs dictionary) but must
	// produce identical bytes.
	dict := bytes.Repeat([]byte("dictionary-material-0123"), 40)
	data := make([]byte, 20000)
	r := rand.New(rand.NewSource(7))
	for i := range data {
		switch {
		case i > 300 && r.Intn(4) == 0:
			data[i] = data[i-257] // long-range match, crosses pages
		case i > 8 && r.Intn(2) == 0:
			data[i] = data[i-5]
		default:
			data[i] = dict[r.Intn(len(dict))]
		}
	}
	copy(data, dict[len(dict)-64:]) // early matches reach into the dictionary
	enc := CompressBlockDict(data, dict)

	var first []byte
	for _, pageSize := range []int{64, 128, 256, 4096} {
		sink := newMemSink(pageSize)
		d := NewDecompressor(sink, 0x8000, dict, pageSize)
		n, err := d.Decompress(enc)
		if err != nil {
			t.Fatalf("P=%d: Decompress: %v", pageSize, err)
		}
		if n != len(data) {
			t.Fatalf("P=%d: length = %d, want %d", pageSize, n, len(data))
		}
		got := sink.bytes(0x8000, n)
		if !bytes.Equal(got, data) {
			t.Fatalf("P=%d: output differs from input", pageSize)
		}
		if first == nil {
			first = got
		} else if !bytes.Equal(got, first) {
			t.Fatalf("P=%d: output differs across page sizes", pageSize)
		}
	}
}

func TestMatchBeforeOutputWithoutDictionary(t *testing.T) {
	// A back-reference reaching before the start of output with no
	// dictionary to resolve it from is malformed.
	enc := []byte{0x10, 'X', 0x04, 0x00} // one literal, then a match at offset 4
	sink := newMemSink(16)
	if _, err := Decompress(sink, 0, enc, 16); err != ErrMalformedStream {
		t.Fatalf("err = %v, want ErrMalformedStream", err)
	}
}
