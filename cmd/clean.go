package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/partget/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [path]",
		Short: "Remove chunk buffers left behind by interrupted downloads",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				printer.Error(err)
				os.Exit(1)
			}
			outputPath := "."
			if len(args) > 0 {
				outputPath = args[0]
			}
			if err := utils.Clean(outputPath, cfg.ScratchDir); err != nil {
				printer.Error(fmt.Errorf("error cleaning up temporary files: %w", err))
				os.Exit(1)
			}
			printer.Success(fmt.Sprintf("Removed %s", utils.ScratchRoot(outputPath, cfg.ScratchDir)))
		},
	}
}
