package utils

import (
	"errors"
	"time"
)

const DefaultBufferSize = 1024 * 1024 * 2 // 2MB buffer
const ToolUserAgent = "partget/1.0"
const ScratchDirName = ".partget-temp"

const (
	DefaultPollInterval      = 2 * time.Second
	DefaultMaxRetries        = 5
	DefaultRetryInitialDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay     = 30 * time.Second
)

var (
	ErrConfiguration      = errors.New("invalid configuration")
	ErrMetadataFetch      = errors.New("metadata fetch failed")
	ErrChunkTransfer      = errors.New("chunk transfer failed")
	ErrAssemblyIO         = errors.New("assembly failed")
	ErrInvalidSize        = errors.New("size must be positive")
	ErrInvalidWorkerCount = errors.New("worker count must be positive")
)

// Local-only User-Agent list
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:135.0) Gecko/20100101 Firefox/135.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/133.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64; rv:136.0) Gecko/20100101 Firefox/136.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.3 Safari/605.1.15",
	"curl/7.88.1",
	"Wget/1.21.4",
}
