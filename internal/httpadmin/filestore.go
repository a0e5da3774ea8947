package httpadmin

import (
	"fmt"
	"io"
	"os"
)

// osFileStore backs FileStore with a real directory via os.Root, which
// confines every Read/Write to dir regardless of path traversal attempts in
// the request path, matching the FileStore doc comment's suggestion.
type osFileStore struct {
	root *os.Root
}

// NewOSFileStore opens dir (creating it if necessary) as the backing store
// for the admin HTTP surface's capture artifact endpoints.
func NewOSFileStore(dir string) FileStore {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &osFileStore{}
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return &osFileStore{}
	}
	return &osFileStore{root: root}
}

func (s *osFileStore) Read(path string) ([]byte, error) {
	if s.root == nil {
		return nil, fmt.Errorf("file store: not initialized")
	}
	f, err := s.root.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *osFileStore) Write(path string, data []byte) error {
	if s.root == nil {
		return fmt.Errorf("file store: not initialized")
	}
	f, err := s.root.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}
