package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// NewStore 以 basePath 为根目录构建磁盘缓存，整站复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{basePath: abs}, nil
}

// fileStore 不做任何加锁：并发写入以 rename 的先后决定胜者。
type fileStore struct {
	basePath string
}

func (s *fileStore) Get(ctx context.Context, key string) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}

	body, err := os.ReadFile(filePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &Entry{
		Key:     key,
		Body:    body,
		ModTime: info.ModTime(),
	}, nil
}

func (s *fileStore) Put(ctx context.Context, key string, body []byte, opts PutOptions) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filePath, err := s.entryPath(key)
	if err != nil {
		return nil, err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(filePath), ".cache-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	_, err = tempFile.Write(body)
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Rename(tempName, filePath); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	if err := os.Chtimes(filePath, modTime, modTime); err != nil {
		return nil, err
	}

	return &Entry{
		Key:     key,
		Body:    append([]byte(nil), body...),
		ModTime: modTime,
	}, nil
}

func (s *fileStore) entryPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || key == "." || key == ".." || strings.ContainsAny(key, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.basePath, key), nil
}
