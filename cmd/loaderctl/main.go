// Command loaderctl is the host-side counterpart to the bootloader core:
// it packs update images, inspects firmware and update headers, and
// drives a full simulated boot cycle end to end against in-memory flash
// and EEPROM.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "loaderctl",
		Short: "Pack, inspect, and simulate boot of bootloader update images",
	}

	rootCmd.AddCommand(newPackCmd())
	rootCmd.AddCommand(newInspectCmd())
	rootCmd.AddCommand(newBootCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "loaderctl:", err)
		os.Exit(1)
	}
}
