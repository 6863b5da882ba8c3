package covers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/flashshelf/internal/remote"
)

// ErrObjectExists is returned when an upload would overwrite a stored cover.
var ErrObjectExists = errors.New("object already exists")

// Store keeps uploaded cover images on the local filesystem and hands out
// URLs under baseURL. It is the Bucket used by the local backend.
type Store struct {
	dir     string
	baseURL string
}

var _ remote.Bucket = (*Store)(nil)

// NewStore creates the covers directory if needed.
func NewStore(dir, baseURL string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create covers dir: %w", err)
	}

	return &Store{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// Upload writes r to name inside the store and returns its public URL.
func (s *Store) Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error) {
	target, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(target); err == nil {
		return "", fmt.Errorf("upload %s: %w", name, ErrObjectExists)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}

	// Create temp file in same directory for atomic write
	tmpFile, err := os.CreateTemp(filepath.Dir(target), "cover_tmp_")
	if err != nil {
		return "", err
	}
	tmpPath := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // Clean up if we didn't rename
	}()

	if _, err := io.Copy(tmpFile, &ctxReader{ctx: ctx, r: r}); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", err
	}

	if err := os.Rename(tmpPath, target); err != nil {
		return "", err
	}
	return s.PublicURL(name), nil
}

// PublicURL returns the address the HTTP layer serves name from.
func (s *Store) PublicURL(name string) string {
	return s.baseURL + "/" + strings.TrimLeft(filepath.ToSlash(name), "/")
}

// Dir returns the covers directory path.
func (s *Store) Dir() string {
	return s.dir
}

// resolve maps an object name to a path, refusing names that escape the store.
func (s *Store) resolve(name string) (string, error) {
	clean := filepath.Clean("/" + name)
	if clean == "/" {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	return filepath.Join(s.dir, clean), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
