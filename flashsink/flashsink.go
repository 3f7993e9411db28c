// Package flashsink provides the page-granular flash writer shared by the
// update applier and the LZ4 decompressor. The actual unlock/program/lock
// sequence is delegated to a Hooks implementation so the same code drives
// both an in-memory simulation and, eventually, a real MMIO-backed driver.
package flashsink

import "fmt"

// Hooks is the board-specific flash primitive set. Real implementations
// sequence these under an interrupt-free critical section; Sim below
// models the same contract in memory.
type Hooks interface {
	Unlock() error
	Lock() error
	// ErasePage erases the page containing addr to the flash's erased
	// value (0xFF), rounding addr down to a page boundary.
	ErasePage(addr uint32) error
	// WritePage programs exactly len(page) bytes at addr. addr must be
	// page-aligned and len(page) must equal the sink's page size.
	WritePage(addr uint32, page []byte) error
	ReadByte(addr uint32) (byte, error)
}

// Sink writes decompressed or plain-copied firmware content to flash,
// page at a time, under a single unlock/lock bracket: unlock once per
// install, write every full page as it completes, lock on return
// including on error.
type Sink struct {
	hooks    Hooks
	pageSize int
	locked   bool
}

// New creates a Sink over hooks with the given page size.
func New(hooks Hooks, pageSize int) *Sink {
	return &Sink{hooks: hooks, pageSize: pageSize}
}

// Begin unlocks the flash for a sequence of writes. Callers must call End
// exactly once, even on error, to guarantee the lock is released.
func (s *Sink) Begin() error {
	if err := s.hooks.Unlock(); err != nil {
		return fmt.Errorf("flashsink: unlock: %w", err)
	}
	s.locked = true
	return nil
}

// End relocks the flash. It is safe to call even if Begin failed or was
// never called.
func (s *Sink) End() error {
	if !s.locked {
		return nil
	}
	s.locked = false
	if err := s.hooks.Lock(); err != nil {
		return fmt.Errorf("flashsink: lock: %w", err)
	}
	return nil
}

// ErasePage erases the page containing addr.
func (s *Sink) ErasePage(addr uint32) error {
	return s.hooks.ErasePage(addr)
}

// WritePage implements lz4.PageSink, programming one full page.
func (s *Sink) WritePage(addr uint32, page []byte) error {
	if len(page) != s.pageSize {
		return fmt.Errorf("flashsink: page length %d != page size %d", len(page), s.pageSize)
	}
	return s.hooks.WritePage(addr, page)
}

// ReadByte implements lz4.PageSink, reading back previously written flash
// content for back-reference resolution.
func (s *Sink) ReadByte(addr uint32) (byte, error) {
	return s.hooks.ReadByte(addr)
}

// ReadRange reads n bytes starting at addr, for reference-image access
// during delta installation. It has no alignment or page requirements.
func (s *Sink) ReadRange(addr uint32, n int) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, err := s.hooks.ReadByte(addr + uint32(i))
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

// ErasePages erases every page-aligned page overlapping [addr, addr+n).
func (s *Sink) ErasePages(addr uint32, n int) error {
	start := addr - addr%uint32(s.pageSize)
	end := addr + uint32(n)
	for p := start; p < end; p += uint32(s.pageSize) {
		if err := s.ErasePage(p); err != nil {
			return err
		}
	}
	return nil
}

// CopyWords writes src to flash starting at dst, a page at a time,
// zero-padding the final partial page, the plain (uncompressed) update
// path's flash copy.
func (s *Sink) CopyWords(dst uint32, src []byte) error {
	return s.copyPadded(dst, src, 0x00)
}

// copyPadded writes src to flash a page at a time, padding the final
// partial page with padByte (0x00 for the plain path, 0xFF to match the
// LZ4 decompressor's own trailing-page convention when a caller needs to
// flush a partial tail explicitly).
func (s *Sink) copyPadded(dst uint32, src []byte, padByte byte) error {
	page := make([]byte, s.pageSize)
	addr := dst
	for off := 0; off < len(src); off += s.pageSize {
		n := copy(page, src[off:])
		for i := n; i < s.pageSize; i++ {
			page[i] = padByte
		}
		if err := s.WritePage(addr, page); err != nil {
			return err
		}
		addr += uint32(s.pageSize)
	}
	return nil
}
