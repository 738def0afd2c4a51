package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eugenetaranov/courier/internal/record"
	"github.com/eugenetaranov/courier/internal/task"
	"github.com/eugenetaranov/courier/internal/transfer"
)

type captureLogger struct {
	lines []string
}

func (l *captureLogger) Info(format string, args ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}

func newMemPlugin(t *testing.T, tk task.Context) (*Plugin, billy.Filesystem) {
	t.Helper()

	fs := memfs.New()
	require.NoError(t, fs.MkdirAll("/inbox/archive", 0755))
	require.NoError(t, util.WriteFile(fs, "/inbox/a.csv", []byte("a,b"), 0644))
	require.NoError(t, util.WriteFile(fs, "/inbox/b.csv", []byte("c,d"), 0644))

	p, err := New(transfer.Config{Protocol: Protocol, Path: "/inbox"}, tk, WithFilesystem(fs))
	require.NoError(t, err)
	return p, fs
}

func TestList(t *testing.T) {
	logger := &captureLogger{}
	tk := task.New(2, "", t.TempDir(), logger)
	p, _ := newMemPlugin(t, tk)

	files, err := p.List(context.Background())
	require.NoError(t, err)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
		assert.Equal(t, 2, f.TaskID)
	}
	assert.ElementsMatch(t, []string{filepath.Join("/inbox", "a.csv"), filepath.Join("/inbox", "b.csv")}, paths)
	assert.Len(t, logger.lines, 2)
}

func TestUpload(t *testing.T) {
	tk := task.New(1, "", t.TempDir(), nil)
	p, fs := newMemPlugin(t, tk)

	local := filepath.Join(t.TempDir(), "c.csv")
	require.NoError(t, os.WriteFile(local, []byte("e,f"), 0644))

	file := record.New(local, 1)
	file.RenameTo = "a.csv"
	require.NoError(t, p.Upload(context.Background(), file))

	data, err := util.ReadFile(fs, "/inbox/a.csv")
	require.NoError(t, err)
	assert.Equal(t, []byte("e,f"), data)
}

func TestDownload(t *testing.T) {
	tk := task.New(1, "", t.TempDir(), nil)
	p, _ := newMemPlugin(t, tk)

	require.NoError(t, p.Download(context.Background(), record.New("/inbox/a.csv", 1)))
	require.NoError(t, p.Download(context.Background(), record.New("b.csv", 1)))

	require.Len(t, tk.Files(), 2)
	data, err := os.ReadFile(filepath.Join(tk.TempFolder(), "a.csv"))
	require.NoError(t, err)
	assert.Equal(t, []byte("a,b"), data)
}

func TestDownloadMissing(t *testing.T) {
	tk := task.New(1, "", t.TempDir(), nil)
	p, _ := newMemPlugin(t, tk)

	err := p.Download(context.Background(), record.New("/inbox/ghost.csv", 1))
	assert.ErrorIs(t, err, transfer.ErrNotFound)
	assert.Empty(t, tk.Files())
	assert.NoFileExists(t, filepath.Join(tk.TempFolder(), "ghost.csv"))
}

func TestDownloadOutsideDirectory(t *testing.T) {
	tk := task.New(1, "", t.TempDir(), nil)
	p, _ := newMemPlugin(t, tk)

	err := p.Download(context.Background(), record.New("/etc/passwd", 1))
	assert.ErrorIs(t, err, transfer.ErrNotFound)
}

func TestDelete(t *testing.T) {
	tk := task.New(1, "", t.TempDir(), nil)
	p, fs := newMemPlugin(t, tk)

	require.NoError(t, p.Delete(context.Background(), record.New("/inbox/a.csv", 1)))
	_, err := fs.Stat("/inbox/a.csv")
	assert.ErrorIs(t, err, os.ErrNotExist)

	err = p.Delete(context.Background(), record.New("/inbox/a.csv", 1))
	assert.ErrorIs(t, err, transfer.ErrNotFound)
}

func TestDeleteKeepsDirectory(t *testing.T) {
	tk := task.New(1, "", t.TempDir(), nil)
	p, fs := newMemPlugin(t, tk)
	require.NoError(t, fs.MkdirAll("/inbox/archive", 0755))

	err := p.Delete(context.Background(), record.New("/inbox/archive", 1))
	assert.ErrorIs(t, err, transfer.ErrNotFound)

	info, err := fs.Stat("/inbox/archive")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestRemotePath(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/file", []byte("x"), 0644))

	for _, dir := range []string{"/missing", "/file"} {
		t.Run(dir, func(t *testing.T) {
			p, err := New(transfer.Config{Path: dir}, task.New(1, "", "", nil), WithFilesystem(fs))
			require.NoError(t, err)

			_, err = p.List(context.Background())
			assert.ErrorIs(t, err, transfer.ErrRemotePath)
		})
	}
}

func TestHostFilesystem(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "report.txt"), []byte("ok"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0755))
	require.NoError(t, os.Symlink(filepath.Join(dir, "report.txt"), filepath.Join(dir, "link")))

	tk := task.New(1, "", t.TempDir(), nil)
	p, err := New(transfer.Config{Path: dir}, tk)
	require.NoError(t, err)

	files, err := p.List(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, filepath.Join(dir, "report.txt"), files[0].Path)

	require.NoError(t, p.Download(context.Background(), files[0]))
	assert.FileExists(t, filepath.Join(tk.TempFolder(), "report.txt"))
}

func TestNewRequiresPath(t *testing.T) {
	_, err := New(transfer.Config{}, task.New(1, "", "", nil))
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, transfer.Protocols(), Protocol)
}
