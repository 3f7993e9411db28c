package crc32x

import "testing"

func TestWord32MatchesReference(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"single byte", []byte{0x42}},
		{"ascii", []byte("123456789")},
		{"binary", []byte{0x00, 0xff, 0x10, 0x80, 0x7f, 0x01, 0xaa, 0x55}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Word32(tt.data)
			want := Reference(tt.data)
			if got != want {
				t.Fatalf("Word32(%x) = %#x, Reference = %#x", tt.data, got, want)
			}
		})
	}
}

func TestWord32KnownVector(t *testing.T) {
	// "123456789" is the standard CRC-32/ISO-HDLC check vector.
	const want = 0xCBF43926
	if got := Word32([]byte("123456789")); got != want {
		t.Fatalf("Word32 = %#x, want %#x", got, want)
	}
}
