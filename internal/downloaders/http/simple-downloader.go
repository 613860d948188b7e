package partgethttp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/cenkalti/backoff/v5"
	"github.com/tanq16/partget/internal/utils"
)

// fileSizer exposes a single file as chunk 0 so the Monitor can poll it.
type fileSizer string

func (f fileSizer) Size(int) (int64, bool, error) {
	info, err := os.Stat(string(f))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}

// PerformSimpleDownload streams link into outputPath with one GET. It is used
// when the server does not honor byte ranges, so every retry starts over.
func PerformSimpleDownload(ctx context.Context, job *utils.DownloadJob, client *utils.HTTPClient, scratchDir string) error {
	log := utils.GetLogger("simple-downloader")
	link, outputPath, retry := job.URL, job.OutputPath, job.Retry
	fileSize := job.Metadata.FileSize
	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return fmt.Errorf("error creating temp directory: %v", err)
	}
	defer os.RemoveAll(scratchDir)
	tempOutputPath := filepath.Join(scratchDir, filepath.Base(outputPath)+".part")

	stopMonitor := func() {}
	if fileSize > 0 {
		monitor := NewMonitor(fileSizer(tempOutputPath), []utils.Range{{Start: 0, End: fileSize - 1}}, job.PollInterval, job.RenderFunc)
		monitor.render(monitor.Header())
		stop := make(chan struct{})
		monitorDone := make(chan struct{})
		go func() {
			defer close(monitorDone)
			monitor.Run(ctx, stop)
		}()
		var once sync.Once
		stopMonitor = func() {
			once.Do(func() {
				close(stop)
				<-monitorDone
			})
		}
	}
	defer stopMonitor()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retry.InitialDelay
	b.MaxInterval = retry.MaxDelay
	b.Reset()
	var lastErr error
	for attempt := range retry.MaxRetries + 1 {
		if attempt > 0 {
			log.Warn().Int("attempt", attempt+1).Int("maxAttempts", retry.MaxRetries+1).Msgf("Retrying download for %s", outputPath)
			if err := sleepContext(ctx, b.NextBackOff()); err != nil {
				return err
			}
		}
		err := downloadAttempt(ctx, link, tempOutputPath, fileSize, client)
		if err == nil {
			stopMonitor()
			if err := os.Rename(tempOutputPath, outputPath); err != nil {
				return fmt.Errorf("error renaming (finalizing) output file: %v", err)
			}
			log.Debug().Str("output", outputPath).Msg("Simple download successful")
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		log.Error().Err(err).Int("attempt", attempt+1).Msg("Download attempt failed")
	}
	return fmt.Errorf("%w: download failed after %d attempts: %w", utils.ErrChunkTransfer, retry.MaxRetries+1, lastErr)
}

func downloadAttempt(ctx context.Context, link, tempOutputPath string, fileSize int64, client *utils.HTTPClient) error {
	outFile, err := os.OpenFile(tempOutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("error creating output file: %v", err)
	}
	defer outFile.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return fmt.Errorf("error creating GET request: %v", err)
	}
	req.Header.Set("Connection", "keep-alive")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error executing GET request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	written, err := io.CopyBuffer(outFile, resp.Body, make([]byte, utils.DefaultBufferSize))
	if err != nil {
		return fmt.Errorf("error reading response body: %v", err)
	}
	if fileSize > 0 && written != fileSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", fileSize, written)
	}
	return outFile.Sync()
}
