package supervisor

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eleven-am/relay247/internal/domain"
	"github.com/eleven-am/relay247/internal/ffmpeg"
	"github.com/eleven-am/relay247/internal/log"
	"github.com/eleven-am/relay247/internal/overlay"
	"github.com/rs/zerolog"
)

var (
	termGrace = 3 * time.Second
	killGrace = 2 * time.Second
)

// Supervisor runs one transcoder process per resolved item and keeps it
// attached to the ingest endpoint until it exits or the context is
// cancelled. Cancellation escalates: interrupt the process group, wait,
// force kill, then sweep by executable name.
type Supervisor struct {
	ffmpegPath string
	builder    *ffmpeg.Builder
	cfg        domain.RelayConfig
	ingestURL  string
	logger     zerolog.Logger
}

func New(ffmpegPath string, builder *ffmpeg.Builder, cfg domain.RelayConfig, ingestURL string) *Supervisor {
	return &Supervisor{
		ffmpegPath: ffmpegPath,
		builder:    builder,
		cfg:        cfg,
		ingestURL:  ingestURL,
		logger:     log.WithComponent("supervisor"),
	}
}

// Stream relays item to the ingest endpoint, blocking until the transcoder
// exits on its own or ctx is cancelled. A nil return means the item played
// to completion.
func (s *Supervisor) Stream(ctx context.Context, item *domain.ResolvedItem) error {
	s.refreshOverlay(item)

	args := s.builder.StreamArgs(*item, s.ingestURL)
	cmd := exec.Command(s.ffmpegPath, args...)
	setProcessGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("transcoder stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("transcoder stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start transcoder: %w", err)
	}
	s.logger.Info().
		Int("pid", cmd.Process.Pid).
		Str("item", item.ID).
		Str("title", item.Title).
		Msg("transcoder started")

	var pumps errgroup.Group
	pumps.Go(func() error { return s.pump(stdout, "stdout") })
	pumps.Go(func() error { return s.pump(stderr, "stderr") })

	done := make(chan error, 1)
	go func() {
		if err := pumps.Wait(); err != nil {
			s.logger.Debug().Err(err).Msg("transcoder output truncated")
		}
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("transcoder exited: %w", err)
		}
		s.logger.Info().Str("item", item.ID).Msg("item finished")
		return nil
	case <-ctx.Done():
		s.terminate(cmd, done)
		return ctx.Err()
	}
}

func (s *Supervisor) refreshOverlay(item *domain.ResolvedItem) {
	if !s.cfg.Overlay {
		return
	}
	text := overlay.Compose(item.Title, item.PublishDate)
	if err := overlay.Write(s.cfg.OverlayPath, text); err != nil {
		s.logger.Warn().Err(err).Str("path", s.cfg.OverlayPath).Msg("overlay update failed")
		return
	}
	s.logger.Debug().Str("text", text).Msg("overlay updated")
}

// pump forwards process output to the log, one line per entry. The reader
// is always drained to EOF so the process never blocks on a full pipe.
func (s *Supervisor) pump(r io.Reader, stream string) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	scanner.Split(scanProgressLines)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.logger.Debug().Str("stream", stream).Msg(line)
	}
	err := scanner.Err()
	io.Copy(io.Discard, r)
	return err
}

// scanProgressLines splits on \n or \r. The transcoder rewrites its stats
// line with bare carriage returns, so a newline-only split would hold those
// updates back until the process exits.
func scanProgressLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func (s *Supervisor) terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	s.logger.Info().Int("pid", pid).Msg("stopping transcoder")

	if err := interrupt(cmd); err == nil {
		select {
		case <-done:
			s.logger.Debug().Int("pid", pid).Msg("transcoder stopped on interrupt")
			return
		case <-time.After(termGrace):
		}
	}

	s.logger.Warn().Int("pid", pid).Msg("transcoder ignored interrupt, killing")
	forceKill(cmd)

	select {
	case <-done:
	case <-time.After(killGrace):
		name := filepath.Base(s.ffmpegPath)
		s.logger.Warn().Str("name", name).Msg("sweeping leftover transcoder processes")
		if err := killByName(name); err != nil {
			s.logger.Debug().Err(err).Msg("process sweep reported nothing to kill")
		}
		<-done
	}
}
