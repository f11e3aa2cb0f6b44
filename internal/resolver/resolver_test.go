package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/relay247/internal/domain"
)

func writeFakeYtdlp(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yt-dlp")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestMetadataParsesStructuredOutput(t *testing.T) {
	script := `#!/bin/sh
if echo "$*" | grep -qF -- "-J"; then
  echo '{"title":"My Video","upload_date":"20230114"}'
  exit 0
fi
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	title, date := r.Metadata(context.Background(), "vid1")
	assert.Equal(t, "My Video", title)
	assert.Equal(t, "Jan 15 2023", date)
}

func TestMetadataFormatsTimestampWhenDateMissing(t *testing.T) {
	script := `#!/bin/sh
if echo "$*" | grep -qF -- "-J"; then
  echo '{"title":"My Video","timestamp":1673740800}'
  exit 0
fi
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	_, date := r.Metadata(context.Background(), "vid1")
	want := time.Unix(1673740800, 0).AddDate(0, 0, 1).Format("Jan 2 2006")
	assert.Equal(t, want, date)
}

func TestMetadataOmitsDateWhenAbsent(t *testing.T) {
	script := `#!/bin/sh
echo '{"title":"My Video"}'
exit 0
`
	r := New(writeFakeYtdlp(t, script), 720)

	title, date := r.Metadata(context.Background(), "vid1")
	assert.Equal(t, "My Video", title)
	assert.Empty(t, date)
}

func TestMetadataFallsBackToPlainTitle(t *testing.T) {
	script := `#!/bin/sh
if echo "$*" | grep -qF -- "--print"; then
  echo "Plain Title"
  exit 0
fi
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	title, date := r.Metadata(context.Background(), "vid1")
	assert.Equal(t, "Plain Title", title)
	assert.Empty(t, date)
}

func TestMetadataFallsBackToWatchURL(t *testing.T) {
	r := New(writeFakeYtdlp(t, "#!/bin/sh\nexit 1\n"), 720)

	title, date := r.Metadata(context.Background(), "vid1")
	assert.Equal(t, "https://www.youtube.com/watch?v=vid1", title)
	assert.Empty(t, date)
}

func TestMediaLocationsPrefersManifest(t *testing.T) {
	script := `#!/bin/sh
if echo "$*" | grep -qF "b[protocol^=m3u8]"; then
  echo "https://cdn.example/live/master.m3u8"
  exit 0
fi
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	item, err := r.MediaLocations(context.Background(), "vid1")
	require.NoError(t, err)
	assert.True(t, item.IsManifest)
	assert.Equal(t, "https://cdn.example/live/master.m3u8", item.MediaURL)
	assert.Empty(t, item.AudioURL)
}

func TestMediaLocationsSplitStreams(t *testing.T) {
	script := `#!/bin/sh
if echo "$*" | grep -qF "bv*+ba/b"; then
  echo "https://cdn.example/video.mp4"
  echo "https://cdn.example/audio.m4a"
  exit 0
fi
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	item, err := r.MediaLocations(context.Background(), "vid1")
	require.NoError(t, err)
	assert.False(t, item.IsManifest)
	assert.Equal(t, "https://cdn.example/video.mp4", item.MediaURL)
	assert.Equal(t, "https://cdn.example/audio.m4a", item.AudioURL)
}

func TestMediaLocationsLadderOrder(t *testing.T) {
	tmp := t.TempDir()
	argsLog := filepath.Join(tmp, "args.log")
	script := `#!/bin/sh
echo "$*" >> ` + argsLog + `
if echo "$*" | grep -qF "b[height>=360]"; then
  echo "https://cdn.example/video.mp4"
  exit 0
fi
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	item, err := r.MediaLocations(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/video.mp4", item.MediaURL)

	data, err := os.ReadFile(argsLog)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "b[protocol^=m3u8]")
	assert.Contains(t, lines[1], "bv*+ba/b")
	assert.Contains(t, lines[2], "b[height<=720]")
	assert.Contains(t, lines[3], "b[height>=360]")
}

func TestMediaLocationsRejectsManifestFromDirectStrategy(t *testing.T) {
	script := `#!/bin/sh
if echo "$*" | grep -qF "bv*+ba/b"; then
  echo "https://cdn.example/sneaky/manifest.m3u8"
  exit 0
fi
if echo "$*" | grep -qF "b[height<=720]"; then
  echo "https://cdn.example/video.mp4"
  exit 0
fi
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	item, err := r.MediaLocations(context.Background(), "vid1")
	require.NoError(t, err)
	assert.False(t, item.IsManifest)
	assert.Equal(t, "https://cdn.example/video.mp4", item.MediaURL)
}

func TestMediaLocationsBareQueryAsLastResort(t *testing.T) {
	script := `#!/bin/sh
if echo "$*" | grep -qF -- "-f"; then
  exit 1
fi
echo "https://cdn.example/only.mp4"
exit 0
`
	r := New(writeFakeYtdlp(t, script), 720)

	item, err := r.MediaLocations(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/only.mp4", item.MediaURL)
}

func TestMediaLocationsAllStrategiesFail(t *testing.T) {
	script := `#!/bin/sh
echo "ERROR: video unavailable" >&2
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	_, err := r.MediaLocations(context.Background(), "vid1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNoPlayableSource))
	assert.Contains(t, err.Error(), "video unavailable")
}

func TestResolveCombinesMetadataAndLocations(t *testing.T) {
	script := `#!/bin/sh
if echo "$*" | grep -qF -- "-J"; then
  echo '{"title":"Full Item","upload_date":"20230114"}'
  exit 0
fi
if echo "$*" | grep -qF "b[protocol^=m3u8]"; then
  echo "https://cdn.example/master.m3u8"
  exit 0
fi
exit 1
`
	r := New(writeFakeYtdlp(t, script), 720)

	item, err := r.Resolve(context.Background(), "vid1")
	require.NoError(t, err)
	assert.Equal(t, "vid1", item.ID)
	assert.Equal(t, "Full Item", item.Title)
	assert.Equal(t, "Jan 15 2023", item.PublishDate)
	assert.True(t, item.IsManifest)
}
