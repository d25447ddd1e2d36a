package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type LocalArchiveStore struct {
	baseDir string
}

var _ ArchiveStore = (*LocalArchiveStore)(nil)

func NewLocalArchiveStore(dir string) (*LocalArchiveStore, error) {
	baseDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path for %s: %w", dir, err)
	}

	if err := os.MkdirAll(baseDir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create archive directory %s: %w", baseDir, err)
	}

	return &LocalArchiveStore{baseDir: baseDir}, nil
}

func (s *LocalArchiveStore) fullpath(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(key))
}

func (s *LocalArchiveStore) PutObject(ctx context.Context, key string, data io.Reader) error {
	path := s.fullpath(key)
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create directory for %s/%s: %w", s.baseDir, key, err)
	}

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file %s/%s: %w", s.baseDir, key, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, data); err != nil {
		return fmt.Errorf("failed to write file %s/%s: %w", s.baseDir, key, err)
	}

	return nil
}

func (s *LocalArchiveStore) UploadDir(ctx context.Context, prefix, src string) error {
	err := filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk directory %s: %w", src, err)
		}

		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		key := strings.TrimSuffix(prefix, "/") + "/" + filepath.ToSlash(rel)

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		return s.PutObject(ctx, key, file)
	})
	if err != nil {
		return fmt.Errorf("error uploading directory %s to %s: %w", src, prefix, err)
	}

	return nil
}

func (s *LocalArchiveStore) DeleteObjects(ctx context.Context, prefix string) error {
	if err := os.RemoveAll(s.fullpath(prefix)); err != nil {
		return fmt.Errorf("failed to delete objects in %s/%s: %w", s.baseDir, prefix, err)
	}
	return nil
}
