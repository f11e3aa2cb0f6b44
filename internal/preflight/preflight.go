package preflight

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/ffmpeg"
	"github.com/eleven-am/relay247/internal/log"
)

// A hung push counts as a failure, not a success.
const pushTimeout = 20 * time.Second

type Checker struct {
	ffmpegPath string
	builder    *ffmpeg.Builder
	logger     zerolog.Logger
}

func New(ffmpegPath string, builder *ffmpeg.Builder) *Checker {
	return &Checker{
		ffmpegPath: ffmpegPath,
		builder:    builder,
		logger:     log.WithComponent("preflight"),
	}
}

// Validate pushes one second of synthetic black video and silence at the
// ingest endpoint and returns the URL the run should keep using. When a
// plaintext endpoint rejects the push, the encrypted variant on its standard
// port is tried exactly once; if that succeeds, the switched URL is returned
// and stays in effect for the whole run.
func (c *Checker) Validate(ctx context.Context, ingestURL string) (string, error) {
	err := c.push(ctx, ingestURL)
	if err == nil {
		return ingestURL, nil
	}

	secureURL, ok := secureVariant(ingestURL)
	if !ok {
		return "", fmt.Errorf("%w: %v", domain.ErrPreflightFailed, err)
	}

	c.logger.Warn().Err(err).Str("url", secureURL).Msg("plaintext push rejected, retrying encrypted variant")
	if rerr := c.push(ctx, secureURL); rerr != nil {
		return "", fmt.Errorf("%w: %v (encrypted retry: %v)", domain.ErrPreflightFailed, err, rerr)
	}

	c.logger.Info().Str("url", secureURL).Msg("ingest switched to encrypted variant")
	return secureURL, nil
}

func (c *Checker) push(ctx context.Context, ingestURL string) error {
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.ffmpegPath, c.builder.PreflightArgs(ingestURL)...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("test push timed out after %s", pushTimeout)
	}
	if err != nil {
		if detail := lastNonEmptyLine(string(out)); detail != "" {
			return fmt.Errorf("test push failed: %s", detail)
		}
		return fmt.Errorf("test push failed: %w", err)
	}
	return nil
}

func secureVariant(ingestURL string) (string, bool) {
	u, err := url.Parse(ingestURL)
	if err != nil || u.Scheme != "rtmp" {
		return "", false
	}
	u.Scheme = "rtmps"
	u.Host = net.JoinHostPort(u.Hostname(), "443")
	return u.String(), true
}

func lastNonEmptyLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
