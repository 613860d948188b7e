package utils

import (
	"context"
	"fmt"
	"time"
)

type Downloader interface {
	Download(ctx context.Context, job *DownloadJob) error
	BuildJob(ctx context.Context, job *DownloadJob) error
	ValidateJob(job *DownloadJob) error
}

type DownloadJob struct {
	JobType          string
	URL              string
	OutputPath       string
	Connections      int
	ScratchDir       string
	PollInterval     time.Duration
	HTTPClientConfig HTTPClientConfig
	Retry            RetryConfig
	Plan             DownloadPlan
	Metadata         *TransferMetadata
	// RenderFunc receives progress lines; nil discards them
	RenderFunc func(line string)
}

// RetryConfig bounds the resume loop of a single chunk. MaxRetries counts
// re-enqueued attempts after the first one.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Range is an inclusive byte range.
type Range struct {
	Start int64 `yaml:"start"`
	End   int64 `yaml:"end"`
}

func (r Range) Size() int64 {
	return r.End - r.Start + 1
}

func (r Range) Header() string {
	return fmt.Sprintf("bytes=%d-%d", r.Start, r.End)
}

func (r Range) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

type DownloadPlan struct {
	Size    int64
	Workers int
	Ranges  []Range
}

// TransferMetadata is the snapshot of a run exposed to callers. Only the
// checksum, integrity and benchmark fields change after BuildJob.
type TransferMetadata struct {
	URL                string          `yaml:"url"`
	RunID              string          `yaml:"run_id"`
	OutputPath         string          `yaml:"output_path"`
	Workers            int             `yaml:"number_of_threads"`
	FileSize           int64           `yaml:"file_size"`
	RangeSupported     bool            `yaml:"byte_range"`
	ContainsChecksum   bool            `yaml:"contains_checksum"`
	ChecksumType       string          `yaml:"checksum_type,omitempty"`
	RemoteChecksum     string          `yaml:"remote_checksum,omitempty"`
	DownloadedChecksum string          `yaml:"downloaded_checksum,omitempty"`
	Integrity          string          `yaml:"integrity,omitempty"`
	Ranges             []Range         `yaml:"range_list"`
	Elapsed            time.Duration   `yaml:"elapsed,omitempty"`
	ChunkDurations     []time.Duration `yaml:"chunk_durations,omitempty"`
}
