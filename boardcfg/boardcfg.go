// Package boardcfg carries the per-board flash and EEPROM layout the boot
// protocol and update applier are configured with: base addresses, region
// sizes and the flash program-page size. None of this is policy the core
// packages decide for themselves; it is supplied by whichever board
// brings the module up, the same way the out-of-scope clock/peripheral
// bring-up and flash half-page writer are supplied externally.
package boardcfg

import (
	_ "embed"
	"fmt"
	"strings"
)

// Layout describes one board's flash and EEPROM geography.
type Layout struct {
	FlashBase   uint32
	FlashSize   uint32
	FWBase      uint32
	PageSize    int
	EEPROMBase  uint32
	EEPROMSize  uint32
	ScratchBase uint32
	ScratchSize uint32
}

// Default is the generic host-simulation layout used by tests and
// cmd/loaderctl when no board-specific preset is selected: a 1 MiB flash
// region, a 128-byte page (the hardware target's page size per the
// project glossary), and a 64-byte EEPROM configuration region.
var Default = Layout{
	FlashBase:   0x08000000,
	FlashSize:   1 << 20,
	FWBase:      0x08004000,
	PageSize:    128,
	EEPROMBase:  0x08080000,
	EEPROMSize:  64,
	ScratchBase: 0x20000000,
	ScratchSize: 4096,
}

// stm32l0 models the largest L0-series part: a 192 KiB flash with the
// bootloader occupying the first 16 KiB, a 128-byte program page, and
// the configuration region in data EEPROM. Real parts report their
// actual flash size in a device register; a board package wiring this
// up would read that instead of trusting the preset.
var stm32l0 = Layout{
	FlashBase:   0x08000000,
	FlashSize:   192 * 1024,
	FWBase:      0x08004000,
	PageSize:    128,
	EEPROMBase:  0x08080000,
	EEPROMSize:  64,
	ScratchBase: 0x20000000,
	ScratchSize: 4096,
}

var presets = map[string]Layout{
	"generic": Default,
	"stm32l0": stm32l0,
}

//go:embed board.text
var boardOverride string

// Selected returns the Layout named by board.text, falling back to
// Default when the file is empty or names an unknown preset. The embedded
// file lets a build select a board without code changes.
func Selected() Layout {
	name := strings.TrimSpace(boardOverride)
	if name == "" {
		return Default
	}
	if l, ok := presets[name]; ok {
		return l
	}
	return Default
}

// Named returns a specific preset by name, for cmd/loaderctl's
// --board flag.
func Named(name string) (Layout, error) {
	l, ok := presets[name]
	if !ok {
		return Layout{}, fmt.Errorf("boardcfg: unknown board preset %q", name)
	}
	return l, nil
}

// Names returns the known preset names, for CLI help text.
func Names() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	return names
}
