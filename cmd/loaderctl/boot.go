package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"openenterprise/basicloader/apt"
	"openenterprise/basicloader/boardcfg"
	"openenterprise/basicloader/boot"
	"openenterprise/basicloader/crc32x"
	"openenterprise/basicloader/diag"
	"openenterprise/basicloader/eeprom"
	"openenterprise/basicloader/flashsink"
	"openenterprise/basicloader/header"
)

func newBootCmd() *cobra.Command {
	var (
		board      string
		fwPath     string
		entry      uint32
		stagePath  string
		stageAddr  uint32
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Simulate a full boot cycle against an in-memory flash image",
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := boardcfg.Default
			if board != "" {
				var err error
				layout, err = boardcfg.Named(board)
				if err != nil {
					return err
				}
			}

			body, err := os.ReadFile(fwPath)
			if err != nil {
				return fmt.Errorf("read --fw: %w", err)
			}
			if entry == 0 {
				entry = layout.FWBase + header.FWHeaderSize
			}
			fwRecord := buildFWRecord(body, entry)
			if uint32(len(fwRecord)) > layout.FlashSize-(layout.FWBase-layout.FlashBase) {
				return fmt.Errorf("firmware image does not fit the board's flash layout")
			}

			fwSim := flashsink.NewSim(layout.FlashBase, layout.FlashSize, layout.PageSize)
			if err := fwSim.Load(layout.FWBase, fwRecord); err != nil {
				return fmt.Errorf("load firmware: %w", err)
			}

			eepromSim := eeprom.NewSim()

			if stagePath != "" {
				record, err := os.ReadFile(stagePath)
				if err != nil {
					return fmt.Errorf("read --stage: %w", err)
				}
				if stageAddr == 0 {
					// Default: park the record at the top of flash,
					// word-aligned, well above the install region.
					stageAddr = (layout.FlashBase + layout.FlashSize - uint32(len(record))) &^ 3
				}
				if err := fwSim.Load(stageAddr, record); err != nil {
					return fmt.Errorf("load staged update: %w", err)
				}
				if err := stageConfig(eepromSim, stageAddr); err != nil {
					return fmt.Errorf("stage eeprom config: %w", err)
				}
			}

			var scratchSim *flashsink.Sim
			var scratchSink *flashsink.Sink
			if layout.ScratchSize > 0 {
				scratchSim = flashsink.NewSim(layout.ScratchBase, layout.ScratchSize, layout.PageSize)
				scratchSink = flashsink.New(scratchSim, layout.PageSize)
			}

			ring := diag.NewRing(256)
			logger := slog.New(diag.NewHandler(os.Stderr, ring, nil))

			target := &boot.Target{
				Flash:       flashsink.New(fwSim, layout.PageSize),
				FlashBase:   layout.FlashBase,
				FlashSize:   layout.FlashSize,
				FWBase:      layout.FWBase,
				Scratch:     scratchSink,
				ScratchBase: layout.ScratchBase,
				ScratchSize: layout.ScratchSize,
				PageSize:    layout.PageSize,
				EEPROM:      eepromSim,
				Signaller:   apt.NewLogSignaller(logger),
				Logger:      logger,
			}

			result, runErr := boot.Run(context.Background(), target)
			report := buildReport(result, ring)

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(report)
			}

			if runErr != nil {
				return runErr
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&board, "board", "", fmt.Sprintf("board layout preset (default: generic); known presets: %v", boardcfg.Names()))
	cmd.Flags().StringVar(&fwPath, "fw", "", "path to the resident firmware image body, unheadered (required)")
	cmd.Flags().Uint32Var(&entry, "entry", 0, "firmware entry point address (default: just past the firmware header)")
	cmd.Flags().StringVar(&stagePath, "stage", "", "path to a packed update record (from loaderctl pack) to stage before boot")
	cmd.Flags().Uint32Var(&stageAddr, "stage-addr", 0, "flash address the staged update record is written at (default: top of flash)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "emit the boot report as JSON for CI consumption")
	cmd.MarkFlagRequired("fw")

	return cmd
}

// buildFWRecord wraps body in a FWHeader, computing the CRC over the
// entry-point field and body together.
func buildFWRecord(body []byte, entry uint32) []byte {
	size := header.FWHeaderSize + uint32(len(body))
	fwh := header.FWHeader{Size: size, EntryPoint: entry}
	rec := fwh.Marshal()
	rec = append(rec, body...)
	fwh.CRC = crc32x.Word32(rec[8:size])
	copy(rec[0:4], fwh.Marshal()[0:4])
	return rec
}

// stageConfig writes a matched FWUpdate1/FWUpdate2 pair directly, as if a
// prior run of the firmware-facing update APT entry had already completed
// both halves of the commit handshake.
func stageConfig(sim *eeprom.Sim, addr uint32) error {
	if err := sim.Unlock(); err != nil {
		return err
	}
	defer sim.Lock()
	if err := sim.WriteWord(eeprom.Word{Offset: 0, Value: addr}); err != nil {
		return err
	}
	if err := sim.WriteWord(eeprom.Word{Offset: 4, Value: addr}); err != nil {
		return err
	}
	return nil
}

func buildReport(result boot.Result, ring *diag.Ring) diag.BootReport {
	report := diag.BootReport{
		UpdateApplied:  result.UpdateApplied,
		BytesInstalled: int(result.InstalledBytes),
		Entrypoint:     result.Entrypoint,
		Events:         ring.Events(),
	}
	switch {
	case result.Panicked:
		report.Branch = "panic"
		s := result.PanicInfo.String()
		report.Panic = &s
	case result.UpdateApplied:
		report.Branch = "updated"
	default:
		report.Branch = "resident"
	}
	return report
}

func printReport(report diag.BootReport) {
	fmt.Printf("branch:         %s\n", report.Branch)
	fmt.Printf("update applied: %v\n", report.UpdateApplied)
	if report.Panic != nil {
		fmt.Printf("panic:          %s\n", *report.Panic)
	} else {
		fmt.Printf("entry point:    %#08x\n", report.Entrypoint)
	}
	fmt.Printf("events:         %d\n", len(report.Events))
}
