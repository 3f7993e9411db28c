package header

import "fmt"

func errShortBuffer(what string, want, got int) error {
	return fmt.Errorf("header: %s needs %d bytes, got %d", what, want, got)
}
