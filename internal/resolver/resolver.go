package resolver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/log"
)

const queryTimeout = 90 * time.Second

type Resolver struct {
	ytdlp  string
	height int
	logger zerolog.Logger
}

func New(ytdlpPath string, heightCeiling int) *Resolver {
	return &Resolver{
		ytdlp:  ytdlpPath,
		height: heightCeiling,
		logger: log.WithComponent("resolver"),
	}
}

// Resolve combines metadata and media location lookup for one item.
func (r *Resolver) Resolve(ctx context.Context, id string) (*domain.ResolvedItem, error) {
	title, date := r.Metadata(ctx, id)

	item, err := r.MediaLocations(ctx, id)
	if err != nil {
		return nil, err
	}

	item.Title = title
	item.PublishDate = date
	return item, nil
}

type ytdlpInfo struct {
	Title            string `json:"title"`
	UploadDate       string `json:"upload_date"`
	Timestamp        int64  `json:"timestamp"`
	ReleaseTimestamp int64  `json:"release_timestamp"`
}

// Metadata never fails: a structured query degrades to a plain title query,
// which degrades to the canonical watch URL standing in as the title.
func (r *Resolver) Metadata(ctx context.Context, id string) (title, date string) {
	url := domain.WatchURL(id)

	out, err := r.output(ctx, "-J", "--no-playlist", "--no-warnings", url)
	if err == nil {
		var info ytdlpInfo
		if jerr := json.Unmarshal(out, &info); jerr == nil && info.Title != "" {
			return info.Title, formatPublishDate(info)
		}
	}
	r.logger.Debug().Str("item", id).Msg("structured metadata query failed, trying plain title")

	out, err = r.output(ctx, "--print", "%(title)s", "--no-playlist", "--no-warnings", url)
	if err == nil {
		if t := strings.TrimSpace(string(out)); t != "" && t != "NA" {
			return t, ""
		}
	}
	r.logger.Debug().Str("item", id).Msg("title queries failed, falling back to watch url")

	return url, ""
}

// MediaLocations tries resolution strategies in fixed order: a long-lived
// adaptive manifest first, then direct URLs with progressively looser format
// selectors, then a query with no format hint at all.
func (r *Resolver) MediaLocations(ctx context.Context, id string) (*domain.ResolvedItem, error) {
	url := domain.WatchURL(id)
	var lastErr error

	urls, err := r.fetchURLs(ctx, url, "b[protocol^=m3u8]")
	if err != nil {
		lastErr = err
	} else if len(urls) == 1 && isManifestURL(urls[0]) {
		r.logger.Debug().Str("item", id).Msg("resolved adaptive manifest")
		return &domain.ResolvedItem{ID: id, MediaURL: urls[0], IsManifest: true}, nil
	}

	for _, format := range r.directFormats() {
		urls, err := r.fetchURLs(ctx, url, format)
		if err != nil {
			lastErr = err
			continue
		}
		if item, ok := itemFromDirectURLs(id, urls); ok {
			r.logger.Debug().Str("item", id).Str("format", format).Bool("split", item.HasSplitStreams()).Msg("resolved direct urls")
			return item, nil
		}
	}

	urls, err = r.fetchURLs(ctx, url, "")
	if err != nil {
		lastErr = err
	} else if len(urls) > 0 {
		item := &domain.ResolvedItem{ID: id, MediaURL: urls[0], IsManifest: isManifestURL(urls[0])}
		if len(urls) > 1 && !item.IsManifest {
			item.AudioURL = urls[1]
		}
		r.logger.Debug().Str("item", id).Msg("resolved with no format hint")
		return item, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w for %s: %v", domain.ErrNoPlayableSource, id, lastErr)
	}
	return nil, fmt.Errorf("%w for %s", domain.ErrNoPlayableSource, id)
}

func (r *Resolver) directFormats() []string {
	return []string{
		"bv*+ba/b",
		fmt.Sprintf("b[height<=%d]", r.height),
		"b[height>=360]",
		"b",
	}
}

func itemFromDirectURLs(id string, urls []string) (*domain.ResolvedItem, bool) {
	for _, u := range urls {
		if isManifestURL(u) {
			return nil, false
		}
	}
	switch len(urls) {
	case 1:
		return &domain.ResolvedItem{ID: id, MediaURL: urls[0]}, true
	case 2:
		return &domain.ResolvedItem{ID: id, MediaURL: urls[0], AudioURL: urls[1]}, true
	default:
		return nil, false
	}
}

func isManifestURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.Contains(lower, ".m3u8") ||
		strings.Contains(lower, ".mpd") ||
		strings.Contains(lower, "manifest")
}

func (r *Resolver) fetchURLs(ctx context.Context, url, format string) ([]string, error) {
	args := []string{"-g", "--no-playlist", "--no-warnings"}
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args, url)

	out, err := r.output(ctx, args...)
	if err != nil {
		desc := format
		if desc == "" {
			desc = "(none)"
		}
		return nil, fmt.Errorf("format %s: %w", desc, err)
	}

	var urls []string
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			urls = append(urls, line)
		}
	}
	return urls, nil
}

func (r *Resolver) output(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.ytdlp, args...)
	out, err := cmd.Output()
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) && len(ee.Stderr) > 0 {
			return nil, fmt.Errorf("%s", lastLine(string(ee.Stderr)))
		}
		return nil, err
	}
	return out, nil
}

// Dates from the source run a day behind what viewers expect to see, so
// both paths apply the same fixed one day shift before rendering.
func formatPublishDate(info ytdlpInfo) string {
	if len(info.UploadDate) == 8 {
		if t, err := time.ParseInLocation("20060102", info.UploadDate, time.Local); err == nil {
			return t.AddDate(0, 0, 1).Format("Jan 2 2006")
		}
	}

	ts := info.Timestamp
	if ts == 0 {
		ts = info.ReleaseTimestamp
	}
	if ts > 0 {
		return time.Unix(ts, 0).AddDate(0, 0, 1).Format("Jan 2 2006")
	}

	return ""
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
