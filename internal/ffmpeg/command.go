package ffmpeg

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/eleven-am/relay247/internal/domain"
)

type Builder struct {
	cfg     domain.RelayConfig
	enc     domain.EncoderSelection
	profile domain.BufferingProfile
}

func NewBuilder(cfg domain.RelayConfig, enc domain.EncoderSelection) *Builder {
	profile, ok := domain.ProfileByName(cfg.Buffering)
	if !ok {
		profile, _ = domain.ProfileByName(domain.DefaultBuffering)
	}
	return &Builder{cfg: cfg, enc: enc, profile: profile}
}

// ProbeArgs builds a tiny synthetic encode that fails fast when the codec is
// unusable on this machine. 320x180 is the smallest size NVENC accepts.
func ProbeArgs(codec string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=320x180:rate=30",
		"-t", "0.2", "-c:v", codec,
		"-f", "null", os.DevNull,
	}
}

// PreflightArgs builds a one second black frame + silence push used to verify
// the ingest endpoint accepts our credential before any real item starts.
func (b *Builder) PreflightArgs(ingestURL string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=320x180:rate=30",
		"-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo",
		"-t", "1",
		"-c:v", b.enc.Codec,
	}
	args = append(args, b.enc.Flags...)
	args = append(args,
		"-pix_fmt", b.enc.PixFmt,
		"-c:a", "aac",
		"-f", "flv", ingestURL,
	)
	return args
}

// StreamArgs builds the long-running relay invocation for one resolved item.
func (b *Builder) StreamArgs(item domain.ResolvedItem, ingestURL string) []string {
	gop := b.cfg.FPS * 2

	args := []string{"-hide_banner", "-loglevel", "warning", "-stats"}
	args = append(args, b.inputArgs(item.MediaURL, item.IsManifest)...)
	if item.HasSplitStreams() {
		args = append(args, b.inputArgs(item.AudioURL, false)...)
		args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	} else {
		args = append(args, "-map", "0:v:0", "-map", "0:a:0?")
	}

	args = append(args, "-c:v", b.enc.Codec)
	args = append(args, b.enc.Flags...)
	args = append(args,
		"-fflags", "+genpts",
		"-r", strconv.Itoa(b.cfg.FPS),
		"-g", strconv.Itoa(gop),
		"-keyint_min", strconv.Itoa(gop),
		"-b:v", kbit(b.cfg.VideoBitrate),
		"-maxrate", kbit(b.cfg.VideoBitrate),
		"-bufsize", kbit(b.cfg.BufSize),
		"-vf", b.videoFilter(),
		"-c:a", "aac",
		"-b:a", kbit(b.cfg.AudioBitrate),
		"-ar", "44100", "-ac", "2",
	)

	if b.profile.LiveBuffer > 0 {
		args = append(args, "-rtmp_buffer", strconv.Itoa(b.profile.LiveBuffer))
	}
	if b.cfg.LegacyIngest {
		args = append(args, "-rtmp_live", "live")
	}

	args = append(args, "-f", "flv", ingestURL)
	return args
}

func (b *Builder) inputArgs(url string, manifest bool) []string {
	args := []string{"-thread_queue_size", "1024"}
	if manifest && b.profile.Reconnect {
		args = append(args, "-reconnect", "1", "-reconnect_streamed", "1", "-reconnect_delay_max", "5")
	}
	args = append(args,
		"-probesize", strconv.Itoa(b.profile.ProbeSize),
		"-analyzeduration", strconv.Itoa(b.profile.AnalyzeDuration),
		"-re", "-i", url,
	)
	return args
}

func (b *Builder) videoFilter() string {
	filters := []string{fmt.Sprintf("scale=-2:%d:flags=bicubic", b.cfg.Height)}
	if b.cfg.Overlay {
		filters = append(filters, b.drawtext())
	}
	filters = append(filters, "format="+b.enc.PixFmt)
	return strings.Join(filters, ",")
}

func (b *Builder) drawtext() string {
	var sb strings.Builder
	sb.WriteString("drawtext=")
	if b.cfg.FontPath != "" {
		sb.WriteString(fmt.Sprintf("fontfile='%s':", escapeFilterPath(b.cfg.FontPath)))
	}
	sb.WriteString(fmt.Sprintf("textfile='%s':reload=1:", escapeFilterPath(b.cfg.OverlayPath)))
	sb.WriteString("fontcolor=white:fontsize=24:box=1:boxcolor=black@0.5:x=10:y=10")
	return sb.String()
}

// Colons separate filter options, so ones inside paths (drive letters) must
// be escaped.
func escapeFilterPath(path string) string {
	return strings.ReplaceAll(path, ":", `\:`)
}

func kbit(v int) string {
	return strconv.Itoa(v) + "k"
}
