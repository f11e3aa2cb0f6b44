package domain

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultIngestBase   = "rtmp://a.rtmp.youtube.com/live2"
	DefaultFPS          = 30
	DefaultHeight       = 720
	DefaultVideoBitrate = 2300
	DefaultBufSize      = 4600
	DefaultAudioBitrate = 128
	DefaultBuffering    = "medium"
	DefaultOverlayPath  = "overlay.txt"
	DefaultCoolDown     = 2 * time.Second
	DefaultItemDelay    = 3 * time.Second
)

type RelayConfig struct {
	PlaylistID string
	IngestBase string
	StreamKey  string

	FPS          int
	Height       int
	VideoBitrate int
	BufSize      int
	AudioBitrate int

	Overlay     bool
	Shuffle     bool
	OverlayPath string
	FontPath    string

	Buffering    string
	LegacyIngest bool

	CoolDown  time.Duration
	ItemDelay time.Duration
}

func (c *RelayConfig) Normalize() {
	if c.IngestBase == "" {
		c.IngestBase = DefaultIngestBase
	}
	if c.FPS == 0 {
		c.FPS = DefaultFPS
	}
	if c.Height == 0 {
		c.Height = DefaultHeight
	}
	if c.VideoBitrate == 0 {
		c.VideoBitrate = DefaultVideoBitrate
	}
	if c.BufSize == 0 {
		c.BufSize = DefaultBufSize
	}
	if c.AudioBitrate == 0 {
		c.AudioBitrate = DefaultAudioBitrate
	}
	if c.OverlayPath == "" {
		c.OverlayPath = DefaultOverlayPath
	}
	if c.Buffering == "" {
		c.Buffering = DefaultBuffering
	}
	if c.CoolDown == 0 {
		c.CoolDown = DefaultCoolDown
	}
	if c.ItemDelay == 0 {
		c.ItemDelay = DefaultItemDelay
	}
}

func (c RelayConfig) Validate() error {
	if c.PlaylistID == "" {
		return fmt.Errorf("playlist id is required")
	}
	if c.StreamKey == "" {
		return fmt.Errorf("stream key is required")
	}
	if c.IngestBase == "" {
		return fmt.Errorf("ingest base url is required")
	}
	if c.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.FPS)
	}
	if c.Height <= 0 {
		return fmt.Errorf("height must be positive, got %d", c.Height)
	}
	if c.VideoBitrate <= 0 {
		return fmt.Errorf("video bitrate must be positive, got %d", c.VideoBitrate)
	}
	if c.BufSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.BufSize)
	}
	if c.AudioBitrate <= 0 {
		return fmt.Errorf("audio bitrate must be positive, got %d", c.AudioBitrate)
	}
	if _, ok := ProfileByName(c.Buffering); !ok {
		return fmt.Errorf("unknown buffering profile %q, want one of %s", c.Buffering, strings.Join(ProfileNames(), ", "))
	}
	return nil
}

func (c RelayConfig) IngestURL() string {
	return strings.TrimSuffix(c.IngestBase, "/") + "/" + c.StreamKey
}
