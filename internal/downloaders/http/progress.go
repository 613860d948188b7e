package partgethttp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tanq16/partget/internal/utils"
)

type sizeSource interface {
	Size(id int) (int64, bool, error)
}

type ChunkStatus struct {
	ID      int
	Written int64
	Planned int64
	Exists  bool
}

func (s ChunkStatus) Complete() bool {
	return s.Written == s.Planned
}

func (s ChunkStatus) Percent() float64 {
	if s.Planned <= 0 {
		return 0
	}
	return float64(s.Written) / float64(s.Planned) * 100
}

func (s ChunkStatus) String() string {
	if !s.Exists {
		return "0.00%"
	}
	return fmt.Sprintf("%.2f%%", s.Percent())
}

// Monitor polls chunk buffer sizes against the plan and renders status lines.
// It never mutates buffers or jobs.
type Monitor struct {
	source   sizeSource
	ranges   []utils.Range
	interval time.Duration
	render   func(line string)
}

func NewMonitor(source sizeSource, ranges []utils.Range, interval time.Duration, render func(line string)) *Monitor {
	if interval <= 0 {
		interval = utils.DefaultPollInterval
	}
	if render == nil {
		render = func(string) {}
	}
	return &Monitor{source: source, ranges: ranges, interval: interval, render: render}
}

func (m *Monitor) Snapshot() []ChunkStatus {
	statuses := make([]ChunkStatus, len(m.ranges))
	for i, r := range m.ranges {
		statuses[i] = ChunkStatus{ID: i, Planned: r.Size()}
		written, exists, err := m.source.Size(i)
		if err != nil {
			continue
		}
		statuses[i].Written = written
		statuses[i].Exists = exists
	}
	return statuses
}

// PollStatus returns the per-chunk percentages and whether every chunk has
// all of its planned bytes on disk.
func (m *Monitor) PollStatus() ([]string, bool) {
	statuses := m.Snapshot()
	lines := make([]string, len(statuses))
	done := true
	for i, s := range statuses {
		lines[i] = s.String()
		if !s.Complete() {
			done = false
		}
	}
	return lines, done
}

func (m *Monitor) Header() string {
	header := make([]string, len(m.ranges))
	for i := range m.ranges {
		header[i] = fmt.Sprintf("chunk%d", i+1)
	}
	return strings.Join(header, "\t\t")
}

func (m *Monitor) Line() string {
	statuses, _ := m.PollStatus()
	return strings.Join(statuses, "\t\t")
}

// Run renders a status line every interval until stop is closed, then renders
// one last line.
func (m *Monitor) Run(ctx context.Context, stop <-chan struct{}) {
	m.render(m.Line())
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.render(m.Line())
		case <-stop:
			m.render(m.Line())
			return
		case <-ctx.Done():
			return
		}
	}
}
