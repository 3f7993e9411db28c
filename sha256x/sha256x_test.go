package sha256x

import (
	"bytes"
	"testing"
)

func TestSumFIPSVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want [8]uint32
	}{
		{
			"empty",
			nil,
			[8]uint32{0xe3b0c442, 0x98fc1c14, 0x9afbf4c8, 0x996fb924, 0x27ae41e4, 0x649b934c, 0xa495991b, 0x7852b855},
		},
		{
			"abc",
			[]byte("abc"),
			[8]uint32{0xba7816bf, 0x8f01cfea, 0x414140de, 0x5dae2223, 0xb00361a3, 0x96177a9c, 0xb410ff61, 0xf20015ad},
		},
		{
			"two-block 448-bit message",
			[]byte("abcdbcdecdefdefgefghfghighijhijkijkljklmklmnlmnomnopnopq"),
			[8]uint32{0x248d6a61, 0xd20638b8, 0xe5c02693, 0x0c3e6039, 0xa33ce459, 0x64ff2167, 0xf6ecedd4, 0x19db06c1},
		},
		{
			"million a",
			bytes.Repeat([]byte{'a'}, 1000000),
			[8]uint32{0xcdc76e5c, 0x9914fb92, 0x81a1c7e2, 0x84d73e67, 0xf1809a48, 0xa497200e, 0x046d39cc, 0xc7112cd0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum(tt.data); got != tt.want {
				t.Fatalf("Sum = %08x, want %08x", got, tt.want)
			}
		})
	}
}

func TestMatchesPrefix64(t *testing.T) {
	data := []byte("block of firmware content")
	prefix := Prefix64(data)
	if !MatchesPrefix64(data, prefix) {
		t.Fatal("MatchesPrefix64 should match its own prefix")
	}
	other := append([]byte(nil), data...)
	other[0] ^= 0xff
	if MatchesPrefix64(other, prefix) {
		t.Fatal("MatchesPrefix64 matched mutated data")
	}
}
