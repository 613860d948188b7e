package scheduler

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/partget/internal/output"
	"github.com/tanq16/partget/internal/utils"
)

type fakeDownloader struct {
	calls       []string
	validateErr error
	buildErr    error
	downloadErr error
}

func (f *fakeDownloader) ValidateJob(job *utils.DownloadJob) error {
	f.calls = append(f.calls, "validate")
	return f.validateErr
}

func (f *fakeDownloader) BuildJob(ctx context.Context, job *utils.DownloadJob) error {
	f.calls = append(f.calls, "build")
	if f.buildErr != nil {
		return f.buildErr
	}
	job.OutputPath = "file.bin"
	job.Metadata = &utils.TransferMetadata{RunID: "run", FileSize: 100, RangeSupported: true, Workers: 2}
	return nil
}

func (f *fakeDownloader) Download(ctx context.Context, job *utils.DownloadJob) error {
	f.calls = append(f.calls, "download")
	job.RenderFunc("chunk1\t\tchunk2")
	return f.downloadErr
}

func TestRunStages(t *testing.T) {
	fake := &fakeDownloader{}
	var buf bytes.Buffer
	job := &utils.DownloadJob{URL: "https://example.com/file.bin", Connections: 2}

	err := runWith(context.Background(), map[string]utils.Downloader{"http": fake}, job, output.NewPrinter(&buf))
	require.NoError(t, err)
	assert.Equal(t, []string{"validate", "build", "download"}, fake.calls)
	assert.Equal(t, "http", job.JobType)
	assert.Contains(t, buf.String(), "100 B in 2 chunks")
	assert.Contains(t, buf.String(), "chunk1\t\tchunk2")
	assert.Contains(t, buf.String(), "Completed file.bin")
}

func TestRunStopsAtFailedStage(t *testing.T) {
	tests := []struct {
		name  string
		fake  *fakeDownloader
		calls []string
		msg   string
	}{
		{"validate", &fakeDownloader{validateErr: utils.ErrConfiguration}, []string{"validate"}, "validation failed"},
		{"build", &fakeDownloader{buildErr: utils.ErrMetadataFetch}, []string{"validate", "build"}, "build failed"},
		{"download", &fakeDownloader{downloadErr: utils.ErrChunkTransfer}, []string{"validate", "build", "download"}, "download failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			job := &utils.DownloadJob{URL: "https://example.com/file.bin", Connections: 2}
			err := runWith(context.Background(), map[string]utils.Downloader{"http": tt.fake}, job, output.NewPrinter(&buf))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			assert.Equal(t, tt.calls, tt.fake.calls)
			assert.NotContains(t, buf.String(), "Completed")
		})
	}
}

func TestRunUnknownJobType(t *testing.T) {
	job := &utils.DownloadJob{JobType: "ftp", URL: "ftp://example.com/file"}
	err := Run(context.Background(), job, output.NewPrinter(&bytes.Buffer{}))
	assert.True(t, errors.Is(err, utils.ErrConfiguration))
}
