package partgethttp

import (
	"fmt"
	"os"
	"path/filepath"
)

// ChunkStore keeps one buffer file per chunk index. A buffer is written by at
// most one worker at a time; readers only stat it.
type ChunkStore struct {
	dir  string
	base string
}

func NewChunkStore(dir, base string) (*ChunkStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating scratch directory: %v", err)
	}
	return &ChunkStore{dir: dir, base: base}, nil
}

func (s *ChunkStore) Dir() string {
	return s.dir
}

func (s *ChunkStore) Path(id int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s.part%d", s.base, id))
}

// Create truncates the buffer of chunk id and opens it for writing.
func (s *ChunkStore) Create(id int) (*os.File, error) {
	return os.OpenFile(s.Path(id), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}

// Append opens the buffer of chunk id for writing after the bytes already there.
func (s *ChunkStore) Append(id int) (*os.File, error) {
	return os.OpenFile(s.Path(id), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
}

func (s *ChunkStore) Open(id int) (*os.File, error) {
	return os.Open(s.Path(id))
}

// Size reports the bytes written for chunk id and whether its buffer exists.
func (s *ChunkStore) Size(id int) (int64, bool, error) {
	info, err := os.Stat(s.Path(id))
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return info.Size(), true, nil
}

// Remove deletes every buffer along with the scratch directory.
func (s *ChunkStore) Remove() error {
	return os.RemoveAll(s.dir)
}
