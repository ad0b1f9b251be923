package evidence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage keeps evidence in a directory served under a public URL prefix.
type LocalStorage struct {
	dir    string
	prefix string
}

// NewLocalStorage creates dir if needed. publicPrefix is the URL the directory is
// served at, e.g. http://localhost:3001/uploads.
func NewLocalStorage(dir, publicPrefix string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, prefix: strings.TrimRight(publicPrefix, "/") + "/"}, nil
}

// Dir is the directory to serve.
func (l *LocalStorage) Dir() string {
	return l.dir
}

func (l *LocalStorage) Save(_ context.Context, key, _ string, data []byte) (string, error) {
	name := path.Base(key)
	if err := os.WriteFile(filepath.Join(l.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write evidence: %w", err)
	}
	return l.prefix + name, nil
}

func (l *LocalStorage) Owns(url string) bool {
	return strings.HasPrefix(url, l.prefix)
}

func (l *LocalStorage) Exists(_ context.Context, url string) (bool, error) {
	if !l.Owns(url) {
		return false, nil
	}
	name := path.Base(strings.TrimPrefix(url, l.prefix))
	if name == "." || name == "/" || name == ".." {
		return false, nil
	}
	_, err := os.Stat(filepath.Join(l.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
