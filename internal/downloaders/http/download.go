package partgethttp

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/tanq16/partget/internal/utils"
)

func (d *HTTPDownloader) Download(ctx context.Context, job *utils.DownloadJob) error {
	log := utils.GetLogger("http-download")
	meta := job.Metadata
	if meta == nil {
		return errors.New("job has not been built")
	}
	if job.RenderFunc == nil {
		job.RenderFunc = func(string) {}
	}
	client := utils.NewHTTPClient(job.HTTPClientConfig)
	scratchDir := filepath.Join(utils.ScratchRoot(job.OutputPath, job.ScratchDir), meta.RunID)

	startTime := time.Now()
	var err error
	if !meta.RangeSupported {
		log.Debug().Str("url", job.URL).Msg("Range requests not supported, using simple download")
		err = PerformSimpleDownload(ctx, job, client, scratchDir)
	} else {
		err = performMultiDownload(ctx, job, client, scratchDir)
	}
	meta.Elapsed = time.Since(startTime)
	if err != nil {
		return err
	}

	result, local, err := VerifyFile(job.OutputPath, Checksum{Type: meta.ChecksumType, Value: meta.RemoteChecksum})
	if err != nil {
		log.Error().Err(err).Msg("Could not compute local checksum")
	}
	meta.DownloadedChecksum = local
	meta.Integrity = result.String()
	if result == VerifyFailed {
		log.Warn().Str("remote", meta.RemoteChecksum).Str("local", local).Str("output", job.OutputPath).Msg("Checksum mismatch, keeping downloaded file")
	}
	return nil
}

func performMultiDownload(ctx context.Context, job *utils.DownloadJob, client *utils.HTTPClient, scratchDir string) error {
	log := utils.GetLogger("multi-download")
	meta := job.Metadata
	ranges := job.Plan.Ranges
	if len(ranges) == 0 {
		return fmt.Errorf("%w: empty download plan", utils.ErrConfiguration)
	}

	store, err := NewChunkStore(scratchDir, filepath.Base(job.OutputPath))
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Remove(); err != nil {
			log.Warn().Err(err).Str("dir", store.Dir()).Msg("Could not remove chunk buffers")
		}
	}()

	pool := newChunkPool(job.URL, client, store, ranges, job.Retry)
	monitor := NewMonitor(store, ranges, job.PollInterval, job.RenderFunc)
	job.RenderFunc(monitor.Header())
	stop := make(chan struct{})
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		monitor.Run(ctx, stop)
	}()

	err = pool.run(ctx)
	close(stop)
	<-monitorDone
	meta.ChunkDurations = pool.durations()
	if err != nil {
		return err
	}

	if _, done := monitor.PollStatus(); !done {
		return fmt.Errorf("%w: chunk buffers incomplete after the queue drained", utils.ErrAssemblyIO)
	}
	written, err := assembleFile(store, ranges, job.OutputPath)
	if err != nil {
		return err
	}
	if written != job.Plan.Size {
		return fmt.Errorf("%w: total written bytes (%d) doesn't match expected file size (%d)", utils.ErrAssemblyIO, written, job.Plan.Size)
	}
	log.Debug().Int("chunks", len(ranges)).Int64("bytes", written).Msg("Multi-connection download completed")
	return nil
}
