package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmarkforge/internal/config"
)

func TestParseWeekDirName(t *testing.T) {
	year, week, ok := parseWeekDirName("2024-W53")
	require.True(t, ok)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 53, week)

	_, _, ok = parseWeekDirName("not-a-week")
	assert.False(t, ok, "expected an unrecognized directory name to be rejected")
}

func TestDeleteFilesRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	old := config.DataDir
	config.DataDir = dir
	defer func() { config.DataDir = old }()

	c := &Core{}
	err := c.DeleteFiles([]string{"../../etc/passwd"})
	assert.Error(t, err, "expected path traversal to be rejected")
}

func TestDeleteFilesRemovesWithinRoot(t *testing.T) {
	dir := t.TempDir()
	old := config.DataDir
	config.DataDir = dir
	defer func() { config.DataDir = old }()

	target := filepath.Join(dir, "media", "2024-W01", "pdfs", "a.pdf")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	c := &Core{}
	err := c.DeleteFiles([]string{filepath.Join("media", "2024-W01", "pdfs", "a.pdf")})
	require.NoError(t, err)

	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err), "expected file to be deleted")
}

func TestIsWithinRoot(t *testing.T) {
	assert.True(t, isWithinRoot("/data", "/data/media/x.pdf"))
	assert.False(t, isWithinRoot("/data", "/etc/passwd"))
}

func TestRecoverURLsFromPayload(t *testing.T) {
	url, originalURL := recoverURLsFromPayload([]byte(`{"url":"https://example.com/a","originalUrl":"https://example.com/a?utm_source=x"}`))
	assert.Equal(t, "https://example.com/a", url)
	assert.Equal(t, "https://example.com/a?utm_source=x", originalURL)

	url, originalURL = recoverURLsFromPayload([]byte(`{"URL":"https://example.com/b"}`))
	assert.Equal(t, "https://example.com/b", url)
	assert.Equal(t, "https://example.com/b", originalURL, "falls back to url when originalUrl is absent")
}
