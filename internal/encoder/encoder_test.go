package encoder

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFakeFFmpeg(t *testing.T, script string) string {
	t.Helper()
	tmp := t.TempDir()
	path := filepath.Join(tmp, "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestSelectPicksFirstWorkingCandidate(t *testing.T) {
	tmp := t.TempDir()
	callLog := filepath.Join(tmp, "calls.log")
	script := `#!/bin/sh
echo "$@" >> ` + callLog + `
case "$@" in
  *h264_qsv*) exit 0 ;;
  *) exit 1 ;;
esac
`
	path := writeFakeFFmpeg(t, script)

	sel := Select(context.Background(), path)
	assert.Equal(t, "h264_qsv", sel.Codec)
	assert.Equal(t, "Intel Quick Sync", sel.Name)
	assert.Equal(t, "nv12", sel.PixFmt)
	assert.Contains(t, sel.Flags, "-look_ahead")

	// nvenc probed and failed, qsv probed and won, amf never tried
	data, err := os.ReadFile(callLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "h264_nvenc")
	assert.Contains(t, lines[1], "h264_qsv")
}

func TestSelectStopsAtFirstSuccess(t *testing.T) {
	path := writeFakeFFmpeg(t, "#!/bin/sh\nexit 0\n")

	sel := Select(context.Background(), path)
	assert.Equal(t, "h264_nvenc", sel.Codec)
	assert.Equal(t, "NVIDIA NVENC", sel.Name)
}

func TestSelectFallsBackToSoftware(t *testing.T) {
	path := writeFakeFFmpeg(t, "#!/bin/sh\nexit 1\n")

	sel := Select(context.Background(), path)
	assert.Equal(t, "libx264", sel.Codec)
	assert.Equal(t, "CPU x264", sel.Name)
	assert.Equal(t, "yuv420p", sel.PixFmt)
	assert.Equal(t, []string{"-preset", "veryfast"}, sel.Flags)
}

func TestSelectFallsBackWhenFFmpegMissing(t *testing.T) {
	sel := Select(context.Background(), filepath.Join(t.TempDir(), "no-such-ffmpeg"))
	assert.Equal(t, "libx264", sel.Codec)
}

func TestProbeAllReportsEveryCandidate(t *testing.T) {
	script := `#!/bin/sh
case "$@" in
  *h264_nvenc*) exit 1 ;;
  *) exit 0 ;;
esac
`
	path := writeFakeFFmpeg(t, script)

	results := ProbeAll(context.Background(), path)
	require.Len(t, results, 4)

	byCodec := map[string]bool{}
	for _, res := range results {
		byCodec[res.Selection.Codec] = res.OK
	}
	assert.False(t, byCodec["h264_nvenc"])
	assert.True(t, byCodec["h264_qsv"])
	assert.True(t, byCodec["h264_amf"])
	assert.True(t, byCodec["libx264"])
}

func TestProbeArgsReachTheBinary(t *testing.T) {
	tmp := t.TempDir()
	argsFile := filepath.Join(tmp, "args.txt")
	script := `#!/bin/sh
echo "$@" > ` + argsFile + `
exit 0
`
	path := writeFakeFFmpeg(t, script)

	Select(context.Background(), path)

	data, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	joined := string(data)
	assert.Contains(t, joined, "-f lavfi -i color=black:s=320x180:rate=30")
	assert.Contains(t, joined, "-t 0.2")
}
