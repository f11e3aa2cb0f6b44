package log

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // optional log level ("debug", "info", etc.)
	Output  io.Writer // optional writer (defaults to os.Stdout, pretty on a TTY)
	Service string    // optional service name attached to every log entry
}

var (
	once sync.Once
	base zerolog.Logger
	sink = NewBroadcaster()
)

// Configure initialises the global zerolog logger exactly once. Every log
// event is also fanned out line-by-line to Subscribe'rs, so embedders can
// surface the run log without touching stdout.
func Configure(cfg Config) {
	once.Do(func() {
		level := zerolog.InfoLevel
		if cfg.Level != "" {
			if parsed, err := zerolog.ParseLevel(cfg.Level); err == nil {
				level = parsed
			}
		} else if env := os.Getenv("LOG_LEVEL"); env != "" {
			if parsed, err := zerolog.ParseLevel(env); err == nil {
				level = parsed
			}
		}
		zerolog.SetGlobalLevel(level)
		zerolog.TimeFieldFormat = time.RFC3339

		writer := cfg.Output
		if writer == nil {
			if isatty.IsTerminal(os.Stdout.Fd()) {
				writer = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}
			} else {
				writer = os.Stdout
			}
		}

		service := cfg.Service
		if service == "" {
			service = "relay247"
		}

		base = zerolog.New(zerolog.MultiLevelWriter(writer, sink)).With().
			Timestamp().
			Str("service", service).
			Logger()
	})
}

func logger() zerolog.Logger {
	Configure(Config{})
	return base
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	l := logger().With().Str("component", component).Logger()
	return l
}

// Subscribe registers a consumer for rendered log lines. See Broadcaster.Subscribe.
func Subscribe() (<-chan string, func()) {
	return sink.Subscribe()
}
