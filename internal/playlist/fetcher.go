package playlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eleven-am/relay247/internal/log"
)

const listTimeout = 2 * time.Minute

type Fetcher struct {
	ytdlp  string
	logger zerolog.Logger
}

func NewFetcher(ytdlpPath string) *Fetcher {
	return &Fetcher{ytdlp: ytdlpPath, logger: log.WithComponent("playlist")}
}

type flatPlaylist struct {
	Entries []flatEntry `json:"entries"`
}

type flatEntry struct {
	ID string `json:"id"`
}

// ItemIDs lists the item identifiers of a playlist in their source order.
// The playlist may be given as a bare identifier or a full URL.
func (f *Fetcher) ItemIDs(ctx context.Context, playlist string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ytdlp, "--flat-playlist", "-J", playlistURL(playlist))
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("list playlist: %s", strings.TrimSpace(string(ee.Stderr)))
		}
		return nil, fmt.Errorf("list playlist: %w", err)
	}

	var info flatPlaylist
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parse playlist listing: %w", err)
	}

	ids := make([]string, 0, len(info.Entries))
	for _, e := range info.Entries {
		if e.ID != "" {
			ids = append(ids, e.ID)
		}
	}

	f.logger.Debug().Str("playlist", playlist).Int("items", len(ids)).Msg("playlist listed")
	return ids, nil
}

func playlistURL(s string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return s
	}
	return "https://www.youtube.com/playlist?list=" + s
}

// Shuffle permutes ids in place.
func Shuffle(ids []string) {
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}
