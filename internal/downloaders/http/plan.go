package partgethttp

import (
	"fmt"

	"github.com/tanq16/partget/internal/utils"
)

// PlanRanges splits size bytes into ranges of ceil(size/workers) bytes. The
// last range holds the remainder. Ranges that would start past the end of the
// file are not emitted, so small files can get fewer ranges than workers.
func PlanRanges(size int64, workers int) ([]utils.Range, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", utils.ErrInvalidSize, size)
	}
	if workers <= 0 {
		return nil, fmt.Errorf("%w: got %d", utils.ErrInvalidWorkerCount, workers)
	}
	chunkSize := (size + int64(workers) - 1) / int64(workers)
	ranges := make([]utils.Range, 0, workers)
	for i := range workers {
		start := int64(i) * chunkSize
		if start >= size {
			break
		}
		end := start + chunkSize - 1
		if end > size-1 {
			end = size - 1
		}
		ranges = append(ranges, utils.Range{Start: start, End: end})
	}
	return ranges, nil
}

func NewPlan(size int64, workers int) (utils.DownloadPlan, error) {
	ranges, err := PlanRanges(size, workers)
	if err != nil {
		return utils.DownloadPlan{}, err
	}
	return utils.DownloadPlan{Size: size, Workers: len(ranges), Ranges: ranges}, nil
}
