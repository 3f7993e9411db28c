package eeprom

import "fmt"

// Sim is an in-memory Store used by tests and cmd/loaderctl. It can
// simulate a power loss after a fixed number of writes, exercising the
// two-write commit protocol's resilience to interruption (the bootloader
// must see "nothing staged" rather than a half-committed address).
type Sim struct {
	mem        [ConfigSize]byte
	unlocked   bool
	writeCount int
	failAfter  int // -1 disables the fault injection
}

// NewSim creates a Sim with no power-loss injection.
func NewSim() *Sim {
	return &Sim{failAfter: -1}
}

// FailAfterWrites arms power-loss simulation: the (n+1)th WriteWord call
// and every later one returns an error and is discarded, as if power was
// lost mid-sequence. Lock and Unlock are not affected.
func (s *Sim) FailAfterWrites(n int) {
	s.failAfter = n
	s.writeCount = 0
}

func (s *Sim) Unlock() error { s.unlocked = true; return nil }

func (s *Sim) Lock() error {
	s.unlocked = false
	return nil
}

func (s *Sim) ReadConfig() (Config, error) {
	return Unmarshal(s.mem[:]), nil
}

func (s *Sim) WriteWord(w Word) error {
	if !s.unlocked {
		return fmt.Errorf("eeprom: write while locked")
	}
	if s.failAfter >= 0 && s.writeCount >= s.failAfter {
		return fmt.Errorf("eeprom: simulated power loss")
	}
	s.writeCount++
	if w.Offset+4 > ConfigSize {
		return fmt.Errorf("eeprom: offset %d out of range", w.Offset)
	}
	putUint32LE(s.mem[w.Offset:w.Offset+4], w.Value)
	return nil
}

func putUint32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
