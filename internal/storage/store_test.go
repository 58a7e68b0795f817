package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redas-backend/internal/config"
)

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "/api/files/")
	require.NoError(t, err)

	info, err := s.Save(ctx, "exports/2026/10/reports.xlsx", strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.FileSize)
	assert.Equal(t, "reports.xlsx", info.FileName)
	assert.Equal(t, "/api/files/exports/2026/10/reports.xlsx", info.URL)

	rc, err := s.Open(ctx, info.Path)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Delete(ctx, info.Path))
	require.NoError(t, s.Delete(ctx, info.Path))
	_, err = s.Open(ctx, info.Path)
	assert.Error(t, err)
}

type failingCloser struct {
	*os.File
}

func (f failingCloser) Close() error {
	f.File.Close()
	return errors.New("disk quota exceeded")
}

func TestLocalStore_SaveReportsCloseError(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "/api/files")
	require.NoError(t, err)
	s.create = func(name string) (io.WriteCloser, error) {
		f, err := os.Create(name)
		if err != nil {
			return nil, err
		}
		return failingCloser{f}, nil
	}

	info, err := s.Save(ctx, "exports/reports.xlsx", strings.NewReader("hello"), "text/plain")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk quota exceeded")
	assert.Nil(t, info)

	_, err = s.Open(ctx, "exports/reports.xlsx")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalStore_SaveRemovesPartialFile(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStore(t.TempDir(), "/api/files")
	require.NoError(t, err)

	_, err = s.Save(ctx, "exports/reports.xlsx", brokenReader{}, "text/plain")
	require.Error(t, err)
	_, err = s.Open(ctx, "exports/reports.xlsx")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalStore_StaysInsideDir(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)

	full, err := s.resolve("../../etc/passwd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(full, s.dir))
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
