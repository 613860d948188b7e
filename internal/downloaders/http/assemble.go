package partgethttp

import (
	"fmt"
	"io"
	"os"

	"github.com/tanq16/partget/internal/utils"
)

// assembleFile appends every chunk buffer to outputPath in chunk index order.
// It must only run after all writers have closed their buffers.
func assembleFile(store *ChunkStore, ranges []utils.Range, outputPath string) (int64, error) {
	log := utils.GetLogger("assembler")
	for i, r := range ranges {
		size, exists, err := store.Size(i)
		if err != nil {
			return 0, fmt.Errorf("%w: chunk %d: %v", utils.ErrAssemblyIO, i, err)
		}
		if !exists {
			return 0, fmt.Errorf("%w: chunk %d buffer is missing", utils.ErrAssemblyIO, i)
		}
		if size != r.Size() {
			return 0, fmt.Errorf("%w: chunk %d has %d bytes, expected %d", utils.ErrAssemblyIO, i, size, r.Size())
		}
	}

	destFile, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", utils.ErrAssemblyIO, err)
	}
	defer destFile.Close()

	var totalWritten int64
	for i, r := range ranges {
		tempFile, err := store.Open(i)
		if err != nil {
			return totalWritten, fmt.Errorf("%w: error opening chunk %d: %v", utils.ErrAssemblyIO, i, err)
		}
		written, err := io.Copy(destFile, tempFile)
		tempFile.Close()
		if err != nil {
			return totalWritten, fmt.Errorf("%w: error copying chunk %d: %v", utils.ErrAssemblyIO, i, err)
		}
		if written != r.Size() {
			return totalWritten, fmt.Errorf("%w: wrote %d bytes of chunk %d, expected %d", utils.ErrAssemblyIO, written, i, r.Size())
		}
		totalWritten += written
	}
	if err := destFile.Sync(); err != nil {
		return totalWritten, fmt.Errorf("%w: %v", utils.ErrAssemblyIO, err)
	}
	log.Debug().Int64("totalBytes", totalWritten).Str("outputFile", outputPath).Msg("File assembly completed")
	return totalWritten, nil
}
