package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"openenterprise/basicloader/header"
)

func newInspectCmd() *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the decoded header of a firmware or update image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			switch kind {
			case "fw":
				return inspectFW(args[0], data)
			case "update":
				return inspectUpdate(args[0], data)
			default:
				return fmt.Errorf("unknown --kind %q: want fw or update", kind)
			}
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "update", "image kind to decode: fw or update")
	return cmd
}

func inspectFW(path string, data []byte) error {
	fwh, err := header.ParseFWHeader(data)
	if err != nil {
		return err
	}
	fmt.Printf("firmware header: %s\n", path)
	fmt.Printf("  crc:         %#08x\n", fwh.CRC)
	fmt.Printf("  size:        %d bytes\n", fwh.Size)
	fmt.Printf("  entry point: %#08x\n", fwh.EntryPoint)
	return nil
}

func inspectUpdate(path string, data []byte) error {
	hdr, err := header.ParseUpdateHeader(data)
	if err != nil {
		return err
	}
	fmt.Printf("update header: %s\n", path)
	fmt.Printf("  crc:            %#08x\n", hdr.CRC)
	fmt.Printf("  record size:    %d bytes\n", hdr.Size)
	fmt.Printf("  firmware crc:   %#08x\n", hdr.FWCRC)
	fmt.Printf("  firmware size:  %d bytes\n", hdr.FWSize)
	fmt.Printf("  hardware id:    %x\n", hdr.HWID)
	fmt.Printf("  type:           %s\n", hdr.UpType)

	if hdr.UpType == header.UpdateLZ4Delta {
		if len(data) < int(header.UpdateHeaderSize)+header.DeltaHeaderSize {
			return fmt.Errorf("record too short for a delta header")
		}
		dh, err := header.ParseDeltaHeader(data[header.UpdateHeaderSize:])
		if err != nil {
			return err
		}
		fmt.Printf("  delta ref crc:  %#08x\n", dh.RefCRC)
		fmt.Printf("  delta ref size: %d bytes\n", dh.RefSize)
		fmt.Printf("  delta blksize:  %d bytes\n", dh.BlkSize)
	}
	return nil
}
