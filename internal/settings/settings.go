package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/eleven-am/relay247/internal/domain"
)

const (
	keyPlaylist     = "RELAY_PLAYLIST_ID"
	keyIngestBase   = "RELAY_INGEST_BASE"
	keyStreamKey    = "RELAY_STREAM_KEY"
	keyQuality      = "RELAY_QUALITY"
	keyFPS          = "RELAY_FPS"
	keyHeight       = "RELAY_HEIGHT"
	keyVideoBitrate = "RELAY_VIDEO_BITRATE"
	keyBufSize      = "RELAY_BUFSIZE"
	keyAudioBitrate = "RELAY_AUDIO_BITRATE"
	keyOverlay      = "RELAY_OVERLAY"
	keyOverlayPath  = "RELAY_OVERLAY_PATH"
	keyFontPath     = "RELAY_FONT_PATH"
	keyShuffle      = "RELAY_SHUFFLE"
	keyBuffering    = "RELAY_BUFFERING"
	keyLegacyIngest = "RELAY_LEGACY_INGEST"
	keyCoolDown     = "RELAY_COOLDOWN"
	keyItemDelay    = "RELAY_ITEM_DELAY"
)

// QualityPreset bundles the encoding knobs that move together when picking
// an output quality.
type QualityPreset struct {
	Name         string
	FPS          int
	Height       int
	VideoBitrate int
	BufSize      int
}

var qualityPresets = []QualityPreset{
	{Name: "720p30", FPS: 30, Height: 720, VideoBitrate: 2300, BufSize: 4600},
	{Name: "720p60", FPS: 60, Height: 720, VideoBitrate: 3200, BufSize: 6400},
	{Name: "1080p30", FPS: 30, Height: 1080, VideoBitrate: 4500, BufSize: 9000},
}

func PresetByName(name string) (QualityPreset, bool) {
	for _, p := range qualityPresets {
		if p.Name == name {
			return p, true
		}
	}
	return QualityPreset{}, false
}

func PresetNames() []string {
	names := make([]string, len(qualityPresets))
	for i, p := range qualityPresets {
		names[i] = p.Name
	}
	return names
}

// Load builds a relay configuration from the env file at path plus the
// process environment. Process variables win over file values, explicit
// knobs win over a quality preset, and a missing file is not an error.
func Load(path string) (domain.RelayConfig, error) {
	fileVals := map[string]string{}
	if path != "" {
		vals, err := godotenv.Read(path)
		if err != nil && !os.IsNotExist(err) {
			return domain.RelayConfig{}, fmt.Errorf("read settings file %s: %w", path, err)
		}
		if err == nil {
			fileVals = vals
		}
	}

	get := func(key, fallback string) string {
		if s := os.Getenv(key); s != "" {
			return s
		}
		if s := fileVals[key]; s != "" {
			return s
		}
		return fallback
	}
	getInt := func(key string, fallback int) int {
		if n, err := strconv.Atoi(get(key, "")); err == nil {
			return n
		}
		return fallback
	}
	getBool := func(key string, fallback bool) bool {
		if b, err := strconv.ParseBool(get(key, "")); err == nil {
			return b
		}
		return fallback
	}
	getDuration := func(key string, fallback time.Duration) time.Duration {
		if d, err := time.ParseDuration(get(key, "")); err == nil {
			return d
		}
		return fallback
	}

	cfg := domain.RelayConfig{
		PlaylistID:   get(keyPlaylist, ""),
		IngestBase:   get(keyIngestBase, ""),
		StreamKey:    get(keyStreamKey, ""),
		OverlayPath:  get(keyOverlayPath, ""),
		FontPath:     get(keyFontPath, ""),
		Buffering:    get(keyBuffering, ""),
		Overlay:      getBool(keyOverlay, true),
		Shuffle:      getBool(keyShuffle, false),
		LegacyIngest: getBool(keyLegacyIngest, false),
		CoolDown:     getDuration(keyCoolDown, 0),
		ItemDelay:    getDuration(keyItemDelay, 0),
	}

	if name := get(keyQuality, ""); name != "" {
		preset, ok := PresetByName(name)
		if !ok {
			return domain.RelayConfig{}, fmt.Errorf("unknown quality preset %q, want one of %s", name, strings.Join(PresetNames(), ", "))
		}
		cfg.FPS = preset.FPS
		cfg.Height = preset.Height
		cfg.VideoBitrate = preset.VideoBitrate
		cfg.BufSize = preset.BufSize
	}

	if n := getInt(keyFPS, 0); n > 0 {
		cfg.FPS = n
	}
	if n := getInt(keyHeight, 0); n > 0 {
		cfg.Height = n
	}
	if n := getInt(keyVideoBitrate, 0); n > 0 {
		cfg.VideoBitrate = n
	}
	if n := getInt(keyBufSize, 0); n > 0 {
		cfg.BufSize = n
	}
	if n := getInt(keyAudioBitrate, 0); n > 0 {
		cfg.AudioBitrate = n
	}

	cfg.Normalize()
	return cfg, nil
}

// Save persists cfg as an env file at path. The stream key is stored in
// the clear.
func Save(path string, cfg domain.RelayConfig) error {
	values := map[string]string{
		keyPlaylist:     cfg.PlaylistID,
		keyIngestBase:   cfg.IngestBase,
		keyStreamKey:    cfg.StreamKey,
		keyFPS:          strconv.Itoa(cfg.FPS),
		keyHeight:       strconv.Itoa(cfg.Height),
		keyVideoBitrate: strconv.Itoa(cfg.VideoBitrate),
		keyBufSize:      strconv.Itoa(cfg.BufSize),
		keyAudioBitrate: strconv.Itoa(cfg.AudioBitrate),
		keyOverlay:      strconv.FormatBool(cfg.Overlay),
		keyOverlayPath:  cfg.OverlayPath,
		keyFontPath:     cfg.FontPath,
		keyShuffle:      strconv.FormatBool(cfg.Shuffle),
		keyBuffering:    cfg.Buffering,
		keyLegacyIngest: strconv.FormatBool(cfg.LegacyIngest),
		keyCoolDown:     cfg.CoolDown.String(),
		keyItemDelay:    cfg.ItemDelay.String(),
	}
	if err := godotenv.Write(values, path); err != nil {
		return fmt.Errorf("write settings file %s: %w", path, err)
	}
	return nil
}
