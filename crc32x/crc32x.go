// Package crc32x computes the reflected CRC-32 (poly 0xEDB88320, init and
// final XOR 0xFFFFFFFF) used to protect firmware and update headers.
package crc32x

import "github.com/sigurn/crc32"

// table is built from crc32.CRC32, the standard reflected parameter set:
// poly 0x04C11DB7 (0xEDB88320 reflected), init and xorout 0xFFFFFFFF.
var table = crc32.MakeTable(crc32.CRC32)

// Word32 returns the CRC-32 of buf, treated as a plain byte stream in
// memory order.
func Word32(buf []byte) uint32 {
	return crc32.Checksum(buf, table)
}

// Reference is a bit-at-a-time implementation of the same polynomial,
// kept only to cross-check Word32 against an independent algorithm in
// tests.
func Reference(buf []byte) uint32 {
	crc := uint32(0xFFFFFFFF)
	for _, b := range buf {
		crc ^= uint32(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xEDB88320
			} else {
				crc >>= 1
			}
		}
	}
	return crc ^ 0xFFFFFFFF
}
