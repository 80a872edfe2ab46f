package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophshare/internal/common"
)

// FSOptions configures FSStorage.
type FSOptions struct {
	FileMode os.FileMode
	DirMode  os.FileMode
}

type FSOption func(*FSOptions)

func WithFileMode(mode os.FileMode) FSOption {
	return func(o *FSOptions) { o.FileMode = mode }
}

func WithDirMode(mode os.FileMode) FSOption {
	return func(o *FSOptions) { o.DirMode = mode }
}

// FSStorage keeps blobs under a root directory. Writes go to a temp file in
// the target directory and are renamed into place, so a blob is either
// complete or absent.
type FSStorage struct {
	root string
	opts FSOptions
}

func NewFSStorage(root string, opts ...FSOption) (*FSStorage, error) {
	o := FSOptions{FileMode: 0o600, DirMode: 0o700}
	for _, opt := range opts {
		opt(&o)
	}

	root = filepath.Clean(root)
	if err := os.MkdirAll(root, o.DirMode); err != nil {
		return nil, fmt.Errorf("creating storage root: %w", err)
	}
	return &FSStorage{root: root, opts: o}, nil
}

func (s *FSStorage) resolve(p string) (string, error) {
	if err := ValidateLocator(p); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(p)), nil
}

func (s *FSStorage) Save(ctx context.Context, data []byte, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}

	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, s.opts.DirMode); err != nil {
		return fmt.Errorf("save %q: %w", p, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("save %q: %w", p, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save %q: %w", p, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("save %q: %w", p, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save %q: %w", p, err)
	}
	if err := os.Chmod(tmpName, s.opts.FileMode); err != nil {
		return fmt.Errorf("save %q: %w", p, err)
	}
	if err := os.Rename(tmpName, full); err != nil {
		return fmt.Errorf("save %q: %w", p, err)
	}
	committed = true
	return nil
}

func (s *FSStorage) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.resolve(p)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %q: %w", p, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("read %q: %w", p, err)
	}
	return data, nil
}

func (s *FSStorage) Delete(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.resolve(p)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %q: %w", p, err)
	}
	s.cleanupEmptyDirs(filepath.Dir(full))
	return nil
}

// cleanupEmptyDirs removes empty parents up to, but not including, root.
func (s *FSStorage) cleanupEmptyDirs(dir string) {
	for dir != s.root && len(dir) > len(s.root) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
