package storage

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/lk2023060901/cloud-drive-backend/internal/pkg/logger"
	"go.uber.org/zap"
)

// LocalStore implements biz.BlobStore on the local filesystem. All paths
// are logical and resolved against the configured root before touching
// the disk.
type LocalStore struct {
	resolver *Resolver
	logger   *logger.Logger
}

func NewLocalStore(root string, log *logger.Logger) (*LocalStore, error) {
	resolver, err := NewResolver(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(resolver.Root(), 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalStore{resolver: resolver, logger: log}, nil
}

// Write stores data at path, creating parent directories as needed.
// An existing file is never overwritten.
func (s *LocalStore) Write(ctx context.Context, path string, data []byte) error {
	phys, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(phys); err == nil {
		return fmt.Errorf("write %s: %w", path, biz.ErrConflict)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(phys), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.WriteFile(phys, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (s *LocalStore) Read(ctx context.Context, path string) ([]byte, error) {
	phys, err := s.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(phys)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, biz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func (s *LocalStore) Delete(ctx context.Context, path string) error {
	phys, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(phys); os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, biz.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Rename moves a file or directory. The destination must not exist.
func (s *LocalStore) Rename(ctx context.Context, oldPath, newPath string) error {
	oldPhys, err := s.resolver.Resolve(oldPath)
	if err != nil {
		return err
	}
	newPhys, err := s.resolver.Resolve(newPath)
	if err != nil {
		return err
	}

	if _, err := os.Stat(oldPhys); os.IsNotExist(err) {
		return fmt.Errorf("rename %s: %w", oldPath, biz.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}

	if _, err := os.Stat(newPhys); err == nil {
		return fmt.Errorf("rename to %s: %w", newPath, biz.ErrConflict)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("rename to %s: %w", newPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(newPhys), 0o755); err != nil {
		return fmt.Errorf("rename to %s: %w", newPath, err)
	}
	if err := os.Rename(oldPhys, newPhys); err != nil {
		return fmt.Errorf("rename %s: %w", oldPath, err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	phys, err := s.resolver.Resolve(path)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(phys); os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}
	return true, nil
}

func (s *LocalStore) ListDir(ctx context.Context, path string) ([]biz.DirEntry, error) {
	phys, err := s.resolver.Resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(phys)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("list %s: %w", path, biz.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", path, err)
	}

	out := make([]biz.DirEntry, 0, len(entries))
	for _, e := range entries {
		entry := biz.DirEntry{Name: e.Name(), IsDir: e.IsDir()}
		if info, err := e.Info(); err == nil {
			entry.SizeKB = info.Size() / 1024
			entry.ModTime = info.ModTime()
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *LocalStore) CreateDir(ctx context.Context, path string) error {
	phys, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(phys); err == nil {
		return fmt.Errorf("mkdir %s: %w", path, biz.ErrAlreadyExists)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	if err := os.MkdirAll(phys, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", path, err)
	}

	s.logger.Debug("directory created", zap.String("path", path))
	return nil
}

func (s *LocalStore) RemoveAll(ctx context.Context, path string) error {
	phys, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(phys); os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", path, biz.ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}

	if err := os.RemoveAll(phys); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}

// Walk visits everything below path depth-first. The callback receives
// slash-separated paths relative to path.
func (s *LocalStore) Walk(ctx context.Context, path string, fn func(rel string, isDir bool) error) error {
	phys, err := s.resolver.Resolve(path)
	if err != nil {
		return err
	}

	err = filepath.WalkDir(phys, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == phys {
			return nil
		}
		rel, err := filepath.Rel(phys, p)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), d.IsDir())
	})
	if os.IsNotExist(err) {
		return fmt.Errorf("walk %s: %w", path, biz.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("walk %s: %w", path, err)
	}
	return nil
}
