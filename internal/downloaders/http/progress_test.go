package partgethttp

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/partget/internal/utils"
)

func writeChunk(t *testing.T, store *ChunkStore, id int, n int) {
	t.Helper()
	require.NoError(t, os.WriteFile(store.Path(id), make([]byte, n), 0644))
}

func TestMonitorPollStatus(t *testing.T) {
	store, err := NewChunkStore(filepath.Join(t.TempDir(), "run"), "file.bin")
	require.NoError(t, err)
	ranges, err := PlanRanges(17, 5)
	require.NoError(t, err)
	monitor := NewMonitor(store, ranges, time.Second, nil)

	statuses, done := monitor.PollStatus()
	assert.Equal(t, []string{"0.00%", "0.00%", "0.00%", "0.00%", "0.00%"}, statuses)
	assert.False(t, done)

	writeChunk(t, store, 0, 4)
	writeChunk(t, store, 1, 1)
	writeChunk(t, store, 2, 3)
	statuses, done = monitor.PollStatus()
	assert.Equal(t, []string{"100.00%", "25.00%", "75.00%", "0.00%", "0.00%"}, statuses)
	assert.False(t, done)

	writeChunk(t, store, 1, 4)
	writeChunk(t, store, 2, 4)
	writeChunk(t, store, 3, 4)
	writeChunk(t, store, 4, 1)
	statuses, done = monitor.PollStatus()
	assert.Equal(t, []string{"100.00%", "100.00%", "100.00%", "100.00%", "100.00%"}, statuses)
	assert.True(t, done)
}

func TestMonitorCompletionIsNumeric(t *testing.T) {
	store, err := NewChunkStore(filepath.Join(t.TempDir(), "run"), "file.bin")
	require.NoError(t, err)
	ranges := []utils.Range{{Start: 0, End: 99999}}
	monitor := NewMonitor(store, ranges, time.Second, nil)

	writeChunk(t, store, 0, 99999)
	statuses, done := monitor.PollStatus()
	assert.Equal(t, "100.00%", statuses[0])
	assert.False(t, done)

	snapshot := monitor.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, int64(99999), snapshot[0].Written)
	assert.Equal(t, int64(100000), snapshot[0].Planned)
	assert.False(t, snapshot[0].Complete())
}

func TestMonitorHeaderAndRun(t *testing.T) {
	store, err := NewChunkStore(filepath.Join(t.TempDir(), "run"), "file.bin")
	require.NoError(t, err)
	ranges, err := PlanRanges(8, 2)
	require.NoError(t, err)

	var mu sync.Mutex
	var lines []string
	monitor := NewMonitor(store, ranges, 10*time.Millisecond, func(line string) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, line)
	})
	assert.Equal(t, "chunk1\t\tchunk2", monitor.Header())

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.Run(context.Background(), stop)
	}()
	time.Sleep(50 * time.Millisecond)
	writeChunk(t, store, 0, 4)
	writeChunk(t, store, 1, 4)
	close(stop)
	<-done

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(lines), 2)
	assert.Equal(t, "0.00%\t\t0.00%", lines[0])
	assert.Equal(t, "100.00%\t\t100.00%", lines[len(lines)-1])
	assert.True(t, strings.Contains(lines[len(lines)-1], "\t\t"))
}
