package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	partgethttp "github.com/tanq16/partget/internal/downloaders/http"
	"github.com/tanq16/partget/internal/output"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info [URL] -c CONNECTIONS",
		Short: "Probe the URL and print the transfer plan without downloading",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := runInfo(cmd, args[0]); err != nil {
				printer.Error(err)
				os.Exit(1)
			}
		},
	}
}

func runInfo(cmd *cobra.Command, url string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := cfg.Job(url)
	downloader := &partgethttp.HTTPDownloader{}
	if err := downloader.ValidateJob(job); err != nil {
		return err
	}
	if err := downloader.BuildJob(ctx, job); err != nil {
		return err
	}
	return output.WriteMetadata(os.Stdout, job.Metadata)
}
