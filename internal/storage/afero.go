package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// AferoStore keeps blobs on an afero filesystem: the OS fs rooted at the
// upload dir in production, a memmap fs in tests.
type AferoStore struct {
	fs afero.Fs
}

func NewAferoStore(fs afero.Fs) *AferoStore {
	return &AferoStore{fs: fs}
}

// NewUploadDirStore returns a store rooted at dir on the OS filesystem,
// creating the directory if needed.
func NewUploadDirStore(dir string) (*AferoStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return NewAferoStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

func (s *AferoStore) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	if err := s.fs.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return 0, err
	}
	f, err := s.fs.Create(key)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(f, r)
}

func (s *AferoStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.fs.OpenFile(key, os.O_RDONLY, 0)
}

func (s *AferoStore) Delete(ctx context.Context, key string) error {
	return s.fs.Remove(key)
}
