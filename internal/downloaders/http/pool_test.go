package partgethttp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/partget/internal/utils"
)

func newTestPool(t *testing.T, url string, size int64, workers int, retry utils.RetryConfig) (*chunkPool, *ChunkStore) {
	t.Helper()
	ranges, err := PlanRanges(size, workers)
	require.NoError(t, err)
	store, err := NewChunkStore(filepath.Join(t.TempDir(), "run"), "file.bin")
	require.NoError(t, err)
	client := utils.NewHTTPClient(utils.HTTPClientConfig{Timeout: 5 * time.Second})
	return newChunkPool(url, client, store, ranges, retry), store
}

func readChunks(t *testing.T, store *ChunkStore, n int) []byte {
	t.Helper()
	var out []byte
	for i := range n {
		data, err := os.ReadFile(store.Path(i))
		require.NoError(t, err)
		out = append(out, data...)
	}
	return out
}

func TestChunkPoolFetchesAllChunks(t *testing.T) {
	data := randomBytes(64 * 1024)
	_, srv := newRangeServer(t, data)
	pool, store := newTestPool(t, srv.URL, int64(len(data)), 4, testRetryConfig())

	require.NoError(t, pool.run(context.Background()))
	assert.Equal(t, data, readChunks(t, store, 4))
	assert.Zero(t, pool.queue.pending())

	durations := pool.durations()
	require.Len(t, durations, 4)
	for _, d := range durations {
		assert.Positive(t, d)
	}
}

func TestChunkPoolResumesFromWrittenBytes(t *testing.T) {
	data := randomBytes(40 * 1024)
	rs, srv := newRangeServer(t, data)
	pool, store := newTestPool(t, srv.URL, int64(len(data)), 4, testRetryConfig())
	chunk := pool.ranges[2]
	rs.abortAfter[chunk.Start] = 1000

	require.NoError(t, pool.run(context.Background()))
	assert.Equal(t, data, readChunks(t, store, 4))

	resumed := fmt.Sprintf("bytes=%d-%d", chunk.Start+1000, chunk.End)
	assert.Contains(t, rs.rangeRequests(), resumed)
	assert.Len(t, rs.rangeRequests(), 5)
}

func TestChunkPoolRefetchesWhenNothingWritten(t *testing.T) {
	data := randomBytes(8 * 1024)
	rs, srv := newRangeServer(t, data)
	pool, store := newTestPool(t, srv.URL, int64(len(data)), 2, testRetryConfig())
	chunk := pool.ranges[1]
	rs.abortAfter[chunk.Start] = 0

	require.NoError(t, pool.run(context.Background()))
	assert.Equal(t, data, readChunks(t, store, 2))

	count := 0
	for _, r := range rs.rangeRequests() {
		if r == chunk.Header() {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestChunkPoolGivesUpAfterRetryBudget(t *testing.T) {
	data := randomBytes(8 * 1024)
	rs, srv := newRangeServer(t, data)
	retry := testRetryConfig()
	pool, _ := newTestPool(t, srv.URL, int64(len(data)), 4, retry)
	rs.alwaysFail[pool.ranges[1].Start] = true

	err := pool.run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrChunkTransfer)
	assert.Contains(t, err.Error(), "chunk 1")

	count := 0
	for _, r := range rs.rangeRequests() {
		if r == pool.ranges[1].Header() {
			count++
		}
	}
	assert.Equal(t, retry.MaxRetries+1, count)
}

func TestChunkPoolCancellation(t *testing.T) {
	data := randomBytes(8 * 1024)
	rs, srv := newRangeServer(t, data)
	rs.stall = true
	pool, _ := newTestPool(t, srv.URL, int64(len(data)), 2, testRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.run(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}
}

func TestJobQueueDrainLatch(t *testing.T) {
	q := newJobQueue(2)
	q.put(&chunkJob{ID: 0})
	q.put(&chunkJob{ID: 1})

	<-q.jobs
	q.put(&chunkJob{ID: 0, Interrupted: true})
	q.done()
	select {
	case <-q.drained:
		t.Fatal("queue drained with a retry outstanding")
	default:
	}

	<-q.jobs
	q.done()
	<-q.jobs
	q.done()
	select {
	case <-q.drained:
	default:
		t.Fatal("queue did not drain")
	}
	assert.Zero(t, q.pending())
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		value   string
		want    utils.Range
		wantErr bool
	}{
		{"bytes 0-99/1000", utils.Range{Start: 0, End: 99}, false},
		{"bytes 100-199/*", utils.Range{Start: 100, End: 199}, false},
		{"", utils.Range{}, true},
		{"items 0-9/10", utils.Range{}, true},
		{"bytes */1000", utils.Range{}, true},
		{"bytes 20-10/1000", utils.Range{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseContentRange(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChunkPoolRejectsShiftedWindow(t *testing.T) {
	data := randomBytes(4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var start, end int64
		fmt.Sscanf(r.Header.Get("Range"), "bytes=%d-%d", &start, &end)
		// same length, one byte further into the file
		shifted := min(start+1, int64(len(data))-(end-start+1))
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", shifted, shifted+end-start, len(data)))
		w.Header().Set("Content-Length", fmt.Sprint(end-start+1))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[shifted : shifted+end-start+1])
	}))
	t.Cleanup(srv.Close)
	pool, _ := newTestPool(t, srv.URL, int64(len(data)), 2, testRetryConfig())

	err := pool.run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, utils.ErrChunkTransfer)
	assert.Contains(t, err.Error(), "server returned range")
}
