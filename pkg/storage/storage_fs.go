package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const tmpFilePrefix = ".tmp-"

// FilesystemStorage implements Storage using the local filesystem.
// Keys may contain forward slashes, they are mapped to sub directories.
type FilesystemStorage struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFilesystemStorage creates a new filesystem-backed storage.
func NewFilesystemStorage(baseDir string) (*FilesystemStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("filesystem storage dir is required")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, err
	}
	return &FilesystemStorage{baseDir: filepath.Clean(baseDir)}, nil
}

// Write replaces the file atomically: data goes to a temp file which is renamed into place,
// so readers never see a partial document.
func (f *FilesystemStorage) Write(_ context.Context, key string, data []byte) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, tmpFilePrefix+filepath.Base(p)+"-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

func (f *FilesystemStorage) Read(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, err
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return os.ReadFile(p)
}

// List returns keys matching the prefix.
// Only the directory named by the prefix is read (non-recursive), so
// "_history/guests/" lists the files below that directory while "" lists
// the top level files only.
func (f *FilesystemStorage) List(_ context.Context, prefix string) ([]string, error) {
	dirPart, namePrefix := path.Split(prefix)
	dir := f.baseDir
	if dirPart != "" {
		p, err := f.path(strings.TrimSuffix(dirPart, "/"))
		if err != nil {
			return nil, err
		}
		dir = p
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, tmpFilePrefix) {
			continue
		}
		if strings.HasPrefix(name, namePrefix) {
			keys = append(keys, dirPart+name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	return keys, nil
}

func (f *FilesystemStorage) Delete(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	err = os.Remove(p)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (f *FilesystemStorage) Close() error {
	return nil
}

// path maps a key to a file below baseDir and refuses keys escaping it
func (f *FilesystemStorage) path(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty storage key")
	}
	p := filepath.Join(f.baseDir, filepath.FromSlash(key))
	if p == f.baseDir || !strings.HasPrefix(p, f.baseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("storage key %q escapes base dir", key)
	}
	return p, nil
}
