package secret

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileProviderName is the provider name used in "secretref:file:<path>".
const FileProviderName = "file"

// FileProvider resolves references by reading files, as mounted by
// Docker or Kubernetes secrets. Trailing newlines are trimmed.
type FileProvider struct {
	dir string
}

// NewFileProvider creates a provider. When dir is set, references are
// relative to it and may not leave it; otherwise references are paths.
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{dir: dir}
}

// NewFileProviderFromConfig is the ProviderFactory for FileProvider.
// Recognised keys: "dir".
func NewFileProviderFromConfig(cfg map[string]any) (Provider, error) {
	dir, err := stringOption(cfg, "dir")
	if err != nil {
		return nil, err
	}
	return NewFileProvider(dir), nil
}

// Name returns "file".
func (p *FileProvider) Name() string { return FileProviderName }

// Resolve reads the referenced file.
func (p *FileProvider) Resolve(_ context.Context, ref string) (string, error) {
	path, err := p.path(ref)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: file %s", ErrNotFound, ref)
	}
	if err != nil {
		return "", fmt.Errorf("secret: read %s: %w", ref, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (p *FileProvider) path(ref string) (string, error) {
	if p.dir == "" {
		return ref, nil
	}
	if filepath.IsAbs(ref) || !filepath.IsLocal(ref) {
		return "", fmt.Errorf("%w: %q escapes %s", ErrInvalidRef, ref, p.dir)
	}
	return filepath.Join(p.dir, ref), nil
}

// Close is a no-op.
func (p *FileProvider) Close() error { return nil }

// Ensure FileProvider implements Provider
var _ Provider = (*FileProvider)(nil)
