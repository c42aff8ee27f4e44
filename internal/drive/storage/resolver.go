package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
)

// Resolver maps logical paths (slash-separated, relative to the storage
// root) to absolute filesystem paths. Anything that would escape the root
// is rejected.
type Resolver struct {
	root string
}

func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	return &Resolver{root: abs}, nil
}

// Root returns the absolute storage root.
func (r *Resolver) Root() string {
	return r.root
}

// Resolve validates a logical path and returns its physical location.
func (r *Resolver) Resolve(logical string) (string, error) {
	trimmed := strings.Trim(strings.TrimSpace(logical), "/")
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty path", biz.ErrInvalidPath)
	}

	phys := filepath.Join(r.root, filepath.FromSlash(trimmed))
	if phys != r.root && !strings.HasPrefix(phys, r.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", biz.ErrInvalidPath, logical)
	}
	return phys, nil
}
