package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/template"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// execInContainer runs a command in the container and returns stdout
func execInContainer(ctx context.Context, container testcontainers.Container, cmd []string) (int, string, error) {
	exitCode, reader, err := container.Exec(ctx, cmd)
	if err != nil {
		return exitCode, "", err
	}

	// Demux the Docker stream (stdout/stderr are multiplexed)
	var stdout, stderr bytes.Buffer
	_, _ = stdcopy.StdCopy(&stdout, &stderr, reader)

	return exitCode, stdout.String(), nil
}

// mustExec runs a command in the container and fails the test on a
// non-zero exit code
func mustExec(t *testing.T, ctx context.Context, container testcontainers.Container, cmd ...string) string {
	t.Helper()
	exitCode, out, err := execInContainer(ctx, container, cmd)
	require.NoError(t, err)
	require.Equal(t, 0, exitCode, "command %v failed", cmd)
	return out
}

// assertFileContains checks that a file in the container contains all
// expected substrings
func assertFileContains(t *testing.T, ctx context.Context, container testcontainers.Container, path string, expected []string) {
	t.Helper()
	exitCode, content, err := execInContainer(ctx, container, []string{"cat", path})
	require.NoError(t, err)
	require.Equal(t, 0, exitCode, "failed to read file %s", path)

	for _, substr := range expected {
		assert.Contains(t, content, substr, "file %s should contain %q", path, substr)
	}
}

// assertRegularFiles checks the regular files directly under dir in the
// container
func assertRegularFiles(t *testing.T, ctx context.Context, container testcontainers.Container, dir string, expected []string) {
	t.Helper()
	out := mustExec(t, ctx, container, "find", dir, "-maxdepth", "1", "-type", "f", "-printf", "%f\n")

	var names []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			names = append(names, line)
		}
	}
	assert.ElementsMatch(t, expected, names, "unexpected files in %s", dir)
}

// writeWorkflow renders a workflow template into dir
func writeWorkflow(t *testing.T, dir, name, text string, data any) string {
	t.Helper()

	tmpl, err := template.New(name).Parse(text)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, data))

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

// downloadedFiles returns the names of the files in the single run
// folder under root/workflow
func downloadedFiles(t *testing.T, root, workflow string) map[string]string {
	t.Helper()

	runs, err := os.ReadDir(filepath.Join(root, workflow))
	require.NoError(t, err)
	require.Len(t, runs, 1, "expected one run folder")

	runDir := filepath.Join(root, workflow, runs[0].Name())
	entries, err := os.ReadDir(runDir)
	require.NoError(t, err)

	files := make(map[string]string)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(runDir, e.Name()))
		require.NoError(t, err)
		files[e.Name()] = string(data)
	}
	return files
}
