package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"openenterprise/basicloader/header"
	"openenterprise/basicloader/update"
)

func newPackCmd() *cobra.Command {
	var (
		inPath  string
		refPath string
		outPath string
		upType  string
		blkSize uint32
		hwid    string
	)

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Pack a firmware image into an update record (plain, lz4, or lz4delta)",
		RunE: func(cmd *cobra.Command, args []string) error {
			newImage, err := os.ReadFile(inPath)
			if err != nil {
				return fmt.Errorf("read --in: %w", err)
			}

			req := update.PackRequest{NewImage: newImage, BlkSize: blkSize}
			switch upType {
			case "plain":
				req.UpType = header.UpdatePlain
			case "lz4":
				req.UpType = header.UpdateLZ4
			case "lz4delta":
				req.UpType = header.UpdateLZ4Delta
				if refPath == "" {
					return fmt.Errorf("--ref is required for --type lz4delta")
				}
				refImage, err := os.ReadFile(refPath)
				if err != nil {
					return fmt.Errorf("read --ref: %w", err)
				}
				req.RefImage = refImage
				if blkSize == 0 {
					return fmt.Errorf("--blksize is required for --type lz4delta")
				}
			default:
				return fmt.Errorf("unknown --type %q: want plain, lz4, or lz4delta", upType)
			}

			if hwid != "" {
				raw, err := hex.DecodeString(hwid)
				if err != nil || len(raw) != 6 {
					return fmt.Errorf("--hwid must be 12 hex digits (6 bytes)")
				}
				copy(req.HWID[:], raw)
			}

			hdr, payload, err := update.Pack(req)
			if err != nil {
				return fmt.Errorf("pack: %w", err)
			}

			record := append(hdr.Marshal(), payload...)
			if err := os.WriteFile(outPath, record, 0o644); err != nil {
				return fmt.Errorf("write --out: %w", err)
			}

			fmt.Printf("packed %s -> %s\n", upType, outPath)
			fmt.Printf("  record size:  %d bytes (24-byte header + %d payload)\n", len(record), len(payload))
			fmt.Printf("  firmware crc: %#08x\n", hdr.FWCRC)
			fmt.Printf("  firmware size: %d bytes\n", hdr.FWSize)
			return nil
		},
	}

	cmd.Flags().StringVar(&inPath, "in", "", "path to the new firmware image (required)")
	cmd.Flags().StringVar(&refPath, "ref", "", "path to the reference image the device currently holds (lz4delta only)")
	cmd.Flags().StringVar(&outPath, "out", "update.bin", "path to write the packed update record")
	cmd.Flags().StringVar(&upType, "type", "plain", "update encoding: plain, lz4, or lz4delta")
	cmd.Flags().Uint32Var(&blkSize, "blksize", 0, "delta block size in bytes (lz4delta only)")
	cmd.Flags().StringVar(&hwid, "hwid", "", "target hardware id, 12 hex digits (default: accept-all zero id)")
	cmd.MarkFlagRequired("in")

	return cmd
}
