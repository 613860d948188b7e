package partgethttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"github.com/tanq16/partget/internal/utils"
	"golang.org/x/sync/errgroup"
)

// chunkPool fetches planned ranges with a fixed set of workers sharing one
// FIFO queue. A failed job is replaced by exactly one resumed job for the same
// chunk, so a chunk buffer never has two writers.
type chunkPool struct {
	url    string
	client *utils.HTTPClient
	store  *ChunkStore
	ranges []utils.Range
	retry  utils.RetryConfig
	queue  *jobQueue
	log    zerolog.Logger

	mu       sync.Mutex
	started  time.Time
	finished map[int]time.Time
}

func newChunkPool(url string, client *utils.HTTPClient, store *ChunkStore, ranges []utils.Range, retry utils.RetryConfig) *chunkPool {
	return &chunkPool{
		url:      url,
		client:   client,
		store:    store,
		ranges:   ranges,
		retry:    retry,
		queue:    newJobQueue(len(ranges)),
		log:      utils.GetLogger("pool"),
		finished: make(map[int]time.Time),
	}
}

// run blocks until every chunk is on disk, a chunk exhausts its retries, or
// ctx is cancelled.
func (p *chunkPool) run(ctx context.Context) error {
	p.mu.Lock()
	p.started = time.Now()
	p.mu.Unlock()
	for i, r := range p.ranges {
		p.queue.put(&chunkJob{ID: i, Range: r, backoff: p.newBackoff()})
	}

	g, gctx := errgroup.WithContext(ctx)
	workerCtx, stopWorkers := context.WithCancel(gctx)
	defer stopWorkers()
	for w := range len(p.ranges) {
		g.Go(func() error {
			return p.work(workerCtx, w)
		})
	}

	select {
	case <-p.queue.drained:
		p.log.Debug().Int("chunks", len(p.ranges)).Msg("Queue drained")
	case <-workerCtx.Done():
		p.log.Debug().Int64("pending", p.queue.pending()).Msg("Stopping workers before the queue drained")
	}
	stopWorkers()
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (p *chunkPool) work(ctx context.Context, workerID int) error {
	log := p.log.With().Int("workerId", workerID).Logger()
	buffer := make([]byte, utils.DefaultBufferSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case job := <-p.queue.jobs:
			log.Debug().Int("chunkId", job.ID).Str("range", job.Range.String()).Bool("interrupted", job.Interrupted).Msg("Picked up chunk")
			if err := p.handle(ctx, job, buffer); err != nil {
				return err
			}
		}
	}
}

func (p *chunkPool) handle(ctx context.Context, job *chunkJob, buffer []byte) error {
	defer p.queue.done()
	log := p.log.With().Int("chunkId", job.ID).Logger()
	planned := p.ranges[job.ID]

	if job.Interrupted {
		delay := job.backoff.NextBackOff()
		log.Debug().Dur("delay", delay).Int("attempt", job.Attempts+1).Msg("Waiting before resuming chunk")
		if err := sleepContext(ctx, delay); err != nil {
			return nil
		}
		written, _, err := p.store.Size(job.ID)
		if err != nil {
			log.Warn().Err(err).Msg("Could not stat chunk buffer, refetching from start")
			written = 0
		}
		switch {
		case written == planned.Size():
			p.markFinished(job.ID)
			return nil
		case written == 0 || written > planned.Size():
			job.Interrupted = false
			job.Range = planned
		default:
			job.Range = utils.Range{Start: planned.Start + written, End: planned.End}
		}
	}

	err := p.fetch(ctx, job, buffer)
	if err == nil {
		p.markFinished(job.ID)
		log.Debug().Int("attempts", job.Attempts+1).Msg("Chunk completed")
		return nil
	}
	if ctx.Err() != nil {
		return nil
	}
	job.Attempts++
	if job.Attempts > p.retry.MaxRetries {
		log.Error().Err(err).Int("attempts", job.Attempts).Msg("Chunk failed after multiple attempts")
		return fmt.Errorf("%w: chunk %d gave up after %d attempts: %w", utils.ErrChunkTransfer, job.ID, job.Attempts, err)
	}
	log.Warn().Err(err).Int("attempt", job.Attempts).Int("maxRetries", p.retry.MaxRetries).Msg("Chunk interrupted, requeueing")
	p.queue.put(&chunkJob{
		ID:          job.ID,
		Range:       job.Range,
		Interrupted: true,
		Attempts:    job.Attempts,
		backoff:     job.backoff,
	})
	return nil
}

func (p *chunkPool) fetch(ctx context.Context, job *chunkJob, buffer []byte) error {
	var tempFile *os.File
	var err error
	if job.Interrupted {
		tempFile, err = p.store.Append(job.ID)
	} else {
		tempFile, err = p.store.Create(job.ID)
	}
	if err != nil {
		return fmt.Errorf("error opening chunk buffer: %v", err)
	}
	defer tempFile.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Range", job.Range.Header())
	req.Header.Set("Connection", "keep-alive")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	served, err := parseContentRange(resp.Header.Get("Content-Range"))
	if err != nil {
		return err
	}
	if served != job.Range {
		return fmt.Errorf("server returned range %s, requested %s", served, job.Range)
	}

	expected := job.Range.Size()
	var newBytes int64
	for {
		bytesRead, readErr := resp.Body.Read(buffer)
		if bytesRead > 0 {
			if newBytes+int64(bytesRead) > expected {
				return fmt.Errorf("server sent more than the %d requested bytes", expected)
			}
			if _, writeErr := tempFile.Write(buffer[:bytesRead]); writeErr != nil {
				return writeErr
			}
			newBytes += int64(bytesRead)
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return readErr
		}
	}
	if newBytes != expected {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d: %w", expected, newBytes, io.ErrUnexpectedEOF)
	}
	return nil
}

// parseContentRange reads the byte window of a "bytes start-end/total"
// header. The total may be "*".
func parseContentRange(value string) (utils.Range, error) {
	if value == "" {
		return utils.Range{}, errors.New("missing Content-Range header")
	}
	unit, spec, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || unit != "bytes" {
		return utils.Range{}, fmt.Errorf("invalid Content-Range %q", value)
	}
	window, _, _ := strings.Cut(spec, "/")
	startStr, endStr, found := strings.Cut(window, "-")
	if !found {
		return utils.Range{}, fmt.Errorf("invalid Content-Range %q", value)
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return utils.Range{}, fmt.Errorf("invalid Content-Range %q: %v", value, err)
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil || end < start {
		return utils.Range{}, fmt.Errorf("invalid Content-Range %q", value)
	}
	return utils.Range{Start: start, End: end}, nil
}

func (p *chunkPool) newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.retry.InitialDelay
	b.MaxInterval = p.retry.MaxDelay
	b.Reset()
	return b
}

func (p *chunkPool) markFinished(id int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished[id] = time.Now()
}

// durations returns, per chunk index, the time from pool start until the chunk
// finished. Unfinished chunks report zero.
func (p *chunkPool) durations() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Duration, len(p.ranges))
	for id, at := range p.finished {
		out[id] = at.Sub(p.started)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
