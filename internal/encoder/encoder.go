package encoder

import (
	"context"
	"os/exec"
	"time"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/ffmpeg"
	"github.com/eleven-am/relay247/internal/log"
)

// Candidates are tried in order; the first codec that survives a real probe
// encode wins. Listing an encoder in ffmpeg's build says nothing about the
// hardware underneath, so each one is exercised with a tiny synthetic encode.
var candidates = []domain.EncoderSelection{
	{
		Codec:  "h264_nvenc",
		Name:   "NVIDIA NVENC",
		PixFmt: "yuv420p",
		Flags:  []string{"-preset", "p4", "-rc", "cbr_hq", "-tune", "hq", "-spatial_aq", "1", "-temporal_aq", "1", "-aq-strength", "8"},
	},
	{
		Codec:  "h264_qsv",
		Name:   "Intel Quick Sync",
		PixFmt: "nv12",
		Flags:  []string{"-look_ahead", "1"},
	},
	{
		Codec:  "h264_amf",
		Name:   "AMD AMF",
		PixFmt: "yuv420p",
		Flags:  []string{"-rc", "cbr", "-quality", "quality", "-usage", "transcoding"},
	},
}

var fallback = domain.EncoderSelection{
	Codec:  "libx264",
	Name:   "CPU x264",
	PixFmt: "yuv420p",
	Flags:  []string{"-preset", "veryfast"},
}

const probeTimeout = 10 * time.Second

// Select probes the hardware encoder candidates and returns the first one
// that works, falling back to software x264. It never fails; a machine with
// no working ffmpeg still gets the software selection and the failure
// surfaces on the first real encode.
func Select(ctx context.Context, ffmpegPath string) domain.EncoderSelection {
	logger := log.WithComponent("encoder")

	for _, cand := range candidates {
		if probe(ctx, ffmpegPath, cand.Codec) {
			logger.Info().Str("codec", cand.Codec).Str("name", cand.Name).Msg("hardware encoder selected")
			return cand
		}
		logger.Debug().Str("codec", cand.Codec).Msg("encoder probe failed")
	}

	logger.Info().Str("codec", fallback.Codec).Str("name", fallback.Name).Msg("no hardware encoder, using software")
	return fallback
}

// ProbeResult reports whether one encoder candidate works on this host.
type ProbeResult struct {
	Selection domain.EncoderSelection
	OK        bool
}

// ProbeAll exercises every hardware candidate plus the software fallback
// and reports each outcome. Unlike Select it does not stop at the first
// working encoder.
func ProbeAll(ctx context.Context, ffmpegPath string) []ProbeResult {
	results := make([]ProbeResult, 0, len(candidates)+1)
	for _, cand := range candidates {
		results = append(results, ProbeResult{Selection: cand, OK: probe(ctx, ffmpegPath, cand.Codec)})
	}
	results = append(results, ProbeResult{Selection: fallback, OK: probe(ctx, ffmpegPath, fallback.Codec)})
	return results
}

func probe(ctx context.Context, ffmpegPath, codec string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegPath, ffmpeg.ProbeArgs(codec)...)
	return cmd.Run() == nil
}
