package domain

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateToolsFindsBothOnPath(t *testing.T) {
	tmp := t.TempDir()
	writeFakeTool(t, tmp, "ffmpeg")
	writeFakeTool(t, tmp, "yt-dlp")
	t.Setenv("PATH", tmp)

	tools, err := LocateTools()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmp, "ffmpeg"), tools.FFmpeg)
	assert.Equal(t, filepath.Join(tmp, "yt-dlp"), tools.YtDlp)
}

func TestLocateToolsReportsMissingTranscoder(t *testing.T) {
	tmp := t.TempDir()
	writeFakeTool(t, tmp, "yt-dlp")
	t.Setenv("PATH", tmp)

	_, err := LocateTools()
	assert.True(t, errors.Is(err, ErrTranscoderNotFound))
}

func TestLocateToolsReportsMissingResolver(t *testing.T) {
	tmp := t.TempDir()
	writeFakeTool(t, tmp, "ffmpeg")
	t.Setenv("PATH", tmp)

	_, err := LocateTools()
	assert.True(t, errors.Is(err, ErrResolverNotFound))
}

func TestCompleteKeepsExplicitPaths(t *testing.T) {
	tmp := t.TempDir()
	writeFakeTool(t, tmp, "yt-dlp")
	t.Setenv("PATH", tmp)

	tools, err := Tools{FFmpeg: "/opt/ffmpeg/bin/ffmpeg"}.Complete()
	require.NoError(t, err)
	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", tools.FFmpeg)
	assert.Equal(t, filepath.Join(tmp, "yt-dlp"), tools.YtDlp)
}

func writeFakeTool(t *testing.T, dir, name string) {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0o755))
}
