// Package storage archives generated files (report exports) to the local
// filesystem or to Cloudflare R2.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"redas-backend/internal/config"
)

// FileInfo describes a stored file.
type FileInfo struct {
	URL      string `json:"url"`
	Path     string `json:"path"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	FileType string `json:"file_type"`
}

// Store saves and serves archived files.
type Store interface {
	Save(ctx context.Context, path string, file io.Reader, contentType string) (*FileInfo, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
	URL(path string) string
}

// New picks the store configured by STORAGE_DRIVER.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "r2":
		return NewR2Store(cfg.R2AccountID, cfg.R2AccessKey, cfg.R2SecretKey, cfg.R2Bucket, cfg.R2PublicURL)
	case "", "local":
		return NewLocalStore(cfg.Dir, cfg.BaseURL)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// LocalStore keeps files under a directory on disk.
type LocalStore struct {
	dir     string
	baseURL string
	create  func(name string) (io.WriteCloser, error)
}

func createFile(name string) (io.WriteCloser, error) {
	return os.Create(name)
}

// NewLocalStore creates dir if needed.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), create: createFile}, nil
}

// resolve maps a storage path to a file under dir, refusing escapes.
func (s *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	full := filepath.Join(s.dir, clean)
	if !strings.HasPrefix(full, filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return full, nil
}

// Save writes the file and reports a failed close as a failed save. A
// partial file is removed.
func (s *LocalStore) Save(_ context.Context, path string, file io.Reader, contentType string) (*FileInfo, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}

	out, err := s.create(full)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	n, err := io.Copy(out, file)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close file: %w", cerr)
	} else if err != nil {
		err = fmt.Errorf("write file: %w", err)
	}
	if err != nil {
		os.Remove(full)
		return nil, err
	}

	return &FileInfo{
		URL:      s.URL(path),
		Path:     path,
		FileName: filepath.Base(full),
		FileSize: n,
		FileType: contentType,
	}, nil
}

func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	return os.Open(full)
}

// Delete removes a file. Missing files are not an error.
func (s *LocalStore) Delete(_ context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

func (s *LocalStore) URL(path string) string {
	return s.baseURL + "/" + strings.TrimLeft(path, "/")
}
