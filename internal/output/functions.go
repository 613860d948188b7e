package output

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/tanq16/partget/internal/utils"
	"golang.org/x/term"
)

func FormatBytes(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}

// FormatSpeed returns the average throughput of bytes moved in elapsed.
func FormatSpeed(bytes int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed.Seconds()
	return humanize.IBytes(uint64(bps)) + "/s"
}

func FormatDuration(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}

// BenchmarkLines renders the timing summary of a finished run: total elapsed
// time first, then one line per chunk in chunk order.
func BenchmarkLines(meta *utils.TransferMetadata) []string {
	lines := []string{
		fmt.Sprintf("Total elapsed: %s (%s, %s)", FormatDuration(meta.Elapsed), FormatBytes(meta.FileSize), FormatSpeed(meta.FileSize, meta.Elapsed)),
	}
	for i, d := range meta.ChunkDurations {
		if i >= len(meta.Ranges) {
			break
		}
		size := meta.Ranges[i].Size()
		lines = append(lines, fmt.Sprintf("chunk%d: %s (%s, %s)", i+1, FormatDuration(d), FormatBytes(size), FormatSpeed(size, d)))
	}
	return lines
}

func IntegrityLine(meta *utils.TransferMetadata) string {
	if meta.Integrity == "" {
		return "Integrity check: not applicable"
	}
	return "Integrity check: " + meta.Integrity
}

func rule() string {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		width = 60
	}
	return strings.Repeat(StyleSymbols["hline"], min(width, 60))
}
