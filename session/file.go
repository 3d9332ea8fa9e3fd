package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// FilePersister stores the encoded session in a single file, written
// atomically through a temp file and rename.
type FilePersister struct {
	path string
}

// NewFilePersister stores the session at path.
func NewFilePersister(path string) *FilePersister {
	return &FilePersister{path: path}
}

// Path returns the session file location.
func (p *FilePersister) Path() string {
	return p.path
}

// Load reads and decodes the session file. A missing file yields ErrNoSession.
func (p *FilePersister) Load(_ context.Context) (*Session, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, err
	}
	return Decode(data)
}

// Save writes s, or removes the file when s is empty.
func (p *FilePersister) Save(ctx context.Context, s *Session) error {
	if s == nil || s.Empty() {
		return p.Delete(ctx)
	}
	data, err := Encode(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p.path)
}

// Delete removes the session file. A missing file is not an error.
func (p *FilePersister) Delete(_ context.Context) error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
