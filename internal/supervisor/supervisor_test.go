package supervisor

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/ffmpeg"
	"github.com/eleven-am/relay247/internal/overlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func testConfig() domain.RelayConfig {
	cfg := domain.RelayConfig{PlaylistID: "PLtest", StreamKey: "key"}
	cfg.Normalize()
	return cfg
}

func newSupervisor(ffmpegPath string, cfg domain.RelayConfig) *Supervisor {
	enc := domain.EncoderSelection{
		Codec:  "libx264",
		Name:   "CPU x264",
		PixFmt: "yuv420p",
		Flags:  []string{"-preset", "veryfast"},
	}
	builder := ffmpeg.NewBuilder(cfg, enc)
	return New(ffmpegPath, builder, cfg, "rtmp://ingest.example/live2/key")
}

func testItem() *domain.ResolvedItem {
	return &domain.ResolvedItem{
		ID:          "vid1",
		Title:       "An Item",
		PublishDate: "Jan 2 2023",
		MediaURL:    "https://cdn.example/v.mp4",
	}
}

func TestStreamRunsToCompletion(t *testing.T) {
	dir := t.TempDir()
	argsFile := filepath.Join(dir, "args.log")
	script := writeScript(t, dir, "ffmpeg",
		`printf '%s\n' "$*" > '`+argsFile+`'
echo "frame=  100"
echo "muxing overhead" >&2
exit 0
`)

	sup := newSupervisor(script, testConfig())
	err := sup.Stream(context.Background(), testItem())
	require.NoError(t, err)

	raw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := string(raw)
	assert.Contains(t, args, "-f flv")
	assert.Contains(t, args, "rtmp://ingest.example/live2/key")
	assert.Contains(t, args, "https://cdn.example/v.mp4")
}

func TestStreamReportsFailure(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "ffmpeg",
		`echo "Connection refused" >&2
exit 3
`)

	sup := newSupervisor(script, testConfig())
	err := sup.Stream(context.Background(), testItem())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transcoder exited")
}

func TestCancelStopsProcess(t *testing.T) {
	dir := t.TempDir()
	marker := filepath.Join(dir, "started")
	script := writeScript(t, dir, "ffmpeg",
		`touch '`+marker+`'
trap 'exit 0' TERM
while :; do sleep 1; done
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := newSupervisor(script, testConfig())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Stream(ctx, testItem()) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestCancelEscalatesWhenInterruptIgnored(t *testing.T) {
	oldTerm, oldKill := termGrace, killGrace
	termGrace, killGrace = 200*time.Millisecond, 500*time.Millisecond
	t.Cleanup(func() { termGrace, killGrace = oldTerm, oldKill })

	dir := t.TempDir()
	marker := filepath.Join(dir, "started")
	script := writeScript(t, dir, "ffmpeg",
		`touch '`+marker+`'
trap '' TERM
while :; do sleep 1; done
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sup := newSupervisor(script, testConfig())
	errCh := make(chan error, 1)
	go func() { errCh <- sup.Stream(ctx, testItem()) }()

	require.Eventually(t, func() bool {
		_, err := os.Stat(marker)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(10 * time.Second):
		t.Fatal("stream did not stop after kill escalation")
	}
}

func TestOverlayWrittenBeforeLaunch(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "ffmpeg", "exit 0\n")

	cfg := testConfig()
	cfg.Overlay = true
	cfg.OverlayPath = filepath.Join(dir, "overlay.txt")

	sup := newSupervisor(script, cfg)
	require.NoError(t, sup.Stream(context.Background(), testItem()))

	raw, err := os.ReadFile(cfg.OverlayPath)
	require.NoError(t, err)
	assert.Equal(t, overlay.Compose("An Item", "Jan 2 2023"), string(raw))
}

func TestOverlayFailureDoesNotAbort(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "ffmpeg", "exit 0\n")

	cfg := testConfig()
	cfg.Overlay = true
	cfg.OverlayPath = filepath.Join(dir, "missing", "nested", "overlay.txt")

	sup := newSupervisor(script, cfg)
	assert.NoError(t, sup.Stream(context.Background(), testItem()))
}

func TestScanProgressLines(t *testing.T) {
	scanner := bufio.NewScanner(strings.NewReader("frame=1\rframe=2\rdone\nlast"))
	scanner.Split(scanProgressLines)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"frame=1", "frame=2", "done", "last"}, lines)
}
