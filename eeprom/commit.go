package eeprom

import "fmt"

const (
	offsetFWUpdate1 = 0
	offsetFWUpdate2 = 4
	offsetHash      = 8
)

// Commit stages addr as the update to install on next boot, writing the
// two confirmation words in order: FWUpdate1 first, then FWUpdate2. If
// the system resets between the two writes, Config.Staged sees a
// mismatched pair and treats nothing as staged; Commit is only "durable"
// once both writes land. hash, if non-nil, is stored before the pointer
// pair; it carries no commit semantics of its own.
func Commit(store Store, addr uint32, hash *[8]uint32) error {
	if err := store.Unlock(); err != nil {
		return fmt.Errorf("eeprom: unlock: %w", err)
	}
	defer store.Lock()

	if hash != nil {
		for i, w := range hash {
			if err := store.WriteWord(Word{Offset: offsetHash + uint32(4*i), Value: w}); err != nil {
				return fmt.Errorf("eeprom: write hash[%d]: %w", i, err)
			}
		}
	}
	if err := store.WriteWord(Word{Offset: offsetFWUpdate1, Value: addr}); err != nil {
		return fmt.Errorf("eeprom: write fwupdate1: %w", err)
	}
	if err := store.WriteWord(Word{Offset: offsetFWUpdate2, Value: addr}); err != nil {
		return fmt.Errorf("eeprom: write fwupdate2: %w", err)
	}
	return nil
}

// Clear removes a staged update once it has been installed, so the
// bootloader does not re-run it on the next boot.
func Clear(store Store) error {
	if err := store.Unlock(); err != nil {
		return fmt.Errorf("eeprom: unlock: %w", err)
	}
	defer store.Lock()

	if err := store.WriteWord(Word{Offset: offsetFWUpdate1, Value: 0}); err != nil {
		return fmt.Errorf("eeprom: clear fwupdate1: %w", err)
	}
	if err := store.WriteWord(Word{Offset: offsetFWUpdate2, Value: 0}); err != nil {
		return fmt.Errorf("eeprom: clear fwupdate2: %w", err)
	}
	return nil
}
