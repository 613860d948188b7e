package scheduler

import (
	"context"
	"fmt"

	partgethttp "github.com/tanq16/partget/internal/downloaders/http"
	"github.com/tanq16/partget/internal/output"
	"github.com/tanq16/partget/internal/utils"
)

// downloaderRegistry maps job types to their downloader implementations
var downloaderRegistry = map[string]utils.Downloader{
	"http": &partgethttp.HTTPDownloader{},
}

// Run drives one job through validate, build and download, reporting each
// stage on printer. The job's metadata is populated even when the download
// fails after the build stage.
func Run(ctx context.Context, job *utils.DownloadJob, printer *output.Printer) error {
	return runWith(ctx, downloaderRegistry, job, printer)
}

func runWith(ctx context.Context, registry map[string]utils.Downloader, job *utils.DownloadJob, printer *output.Printer) error {
	log := utils.GetLogger("scheduler")
	if job.JobType == "" {
		job.JobType = "http"
	}
	downloader, exists := registry[job.JobType]
	if !exists {
		return fmt.Errorf("%w: unknown job type: %s", utils.ErrConfiguration, job.JobType)
	}

	if err := downloader.ValidateJob(job); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	printer.Pending(fmt.Sprintf("Probing %s", job.URL))
	if err := downloader.BuildJob(ctx, job); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}
	meta := job.Metadata
	if meta.RangeSupported {
		printer.Info(fmt.Sprintf("%s in %d chunks %s %s", output.FormatBytes(meta.FileSize), meta.Workers, output.StyleSymbols["arrow"], job.OutputPath))
	} else {
		printer.Warning(fmt.Sprintf("Server does not accept byte ranges, using a single connection %s %s", output.StyleSymbols["arrow"], job.OutputPath))
	}
	log.Debug().Str("runID", meta.RunID).Str("output", job.OutputPath).Int("workers", meta.Workers).Msg("Job built")

	if job.RenderFunc == nil {
		job.RenderFunc = printer.ProgressRenderer()
	}
	if err := downloader.Download(ctx, job); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	printer.Success(fmt.Sprintf("Completed %s", job.OutputPath))
	return nil
}
