package partgethttp

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/tanq16/partget/internal/utils"
)

var filenameRegex = regexp.MustCompile(`[^a-zA-Z0-9_\-\. ]+`)

type HTTPDownloader struct{}

func (d *HTTPDownloader) ValidateJob(job *utils.DownloadJob) error {
	if job.URL == "" {
		return fmt.Errorf("%w: URL is required", utils.ErrConfiguration)
	}
	parsedURL, err := url.Parse(job.URL)
	if err != nil {
		return fmt.Errorf("%w: invalid URL: %v", utils.ErrConfiguration, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme: %q", utils.ErrConfiguration, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("%w: URL has no host", utils.ErrConfiguration)
	}
	if job.Connections <= 0 {
		return fmt.Errorf("%w: %w (got %d)", utils.ErrConfiguration, utils.ErrInvalidWorkerCount, job.Connections)
	}
	return nil
}

func (d *HTTPDownloader) BuildJob(ctx context.Context, job *utils.DownloadJob) error {
	job.HTTPClientConfig.HighThreadMode = job.Connections > 5
	client := utils.NewHTTPClient(job.HTTPClientConfig)

	meta, fileName, err := ProbeMetadata(ctx, client, job.URL)
	if err != nil {
		return err
	}

	if job.OutputPath == "" && fileName != "" {
		job.OutputPath = fileName
	} else if job.OutputPath == "" {
		job.OutputPath = utils.FileNameFromURL(job.URL)
	}
	if _, err := os.Stat(job.OutputPath); err == nil {
		job.OutputPath = utils.RenewOutputPath(job.OutputPath)
	}

	meta.RunID = uuid.New().String()
	meta.OutputPath = job.OutputPath
	meta.Workers = job.Connections
	if meta.RangeSupported {
		plan, err := NewPlan(meta.FileSize, job.Connections)
		if err != nil {
			return fmt.Errorf("%w: %w", utils.ErrMetadataFetch, err)
		}
		job.Plan = plan
		meta.Ranges = plan.Ranges
		meta.Workers = plan.Workers
	}
	job.Metadata = &meta
	return nil
}

// ProbeMetadata issues a HEAD request for link and returns what the server
// advertises about it, plus a file name hint from Content-Disposition.
func ProbeMetadata(ctx context.Context, client *utils.HTTPClient, link string) (utils.TransferMetadata, string, error) {
	log := utils.GetLogger("probe")
	meta := utils.TransferMetadata{URL: link}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, link, nil)
	if err != nil {
		return meta, "", fmt.Errorf("%w: error creating request: %v", utils.ErrMetadataFetch, err)
	}
	req.Header.Set("Accept-Encoding", "identity")
	resp, err := client.Do(req)
	if err != nil {
		return meta, "", fmt.Errorf("%w: %v", utils.ErrMetadataFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return meta, "", fmt.Errorf("%w: URL not found (404)", utils.ErrMetadataFetch)
	} else if resp.StatusCode >= 400 {
		return meta, "", fmt.Errorf("%w: server returned error: %d", utils.ErrMetadataFetch, resp.StatusCode)
	}

	fileName := ""
	if contentDisposition := resp.Header.Get("Content-Disposition"); contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil {
			if fn, ok := params["filename"]; ok && fn != "" {
				fileName = filenameRegex.ReplaceAllString(fn, "_")
			}
		}
	}

	acceptRanges := strings.ToLower(strings.TrimSpace(resp.Header.Get("Accept-Ranges")))
	meta.RangeSupported = acceptRanges != "" && acceptRanges != "none"

	size := resp.ContentLength
	if contentLength := resp.Header.Get("Content-Length"); contentLength != "" {
		if parsed, err := strconv.ParseInt(contentLength, 10, 64); err == nil {
			size = parsed
		}
	}
	if size > 0 {
		meta.FileSize = size
	} else if meta.RangeSupported {
		return meta, fileName, fmt.Errorf("%w: server didn't provide Content-Length header", utils.ErrMetadataFetch)
	}

	if checksum, ok := ChecksumFromHeader(resp.Header); ok {
		meta.ContainsChecksum = true
		meta.ChecksumType = checksum.Type
		meta.RemoteChecksum = checksum.Value
	}
	log.Debug().Int64("size", meta.FileSize).Bool("rangeSupported", meta.RangeSupported).Str("checksumType", meta.ChecksumType).Msg("Probed remote file")
	return meta, fileName, nil
}
