package mailer

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// newLogger builds the builder's logger from cfg. The returned closer is
// non-nil when a log file was opened.
func newLogger(cfg LoggingConfig) (zerolog.Logger, io.Closer, error) {
	var (
		w      io.Writer
		closer io.Closer
	)
	switch {
	case cfg.Writer != nil:
		w = cfg.Writer
	case cfg.Output == "" || cfg.Output == "stderr":
		w = os.Stderr
	case cfg.Output == "stdout":
		w = os.Stdout
	default:
		f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return zerolog.Nop(), nil, err
		}
		w, closer = f, f
	}

	switch strings.ToLower(cfg.Format) {
	case "console", "text":
		w = zerolog.ConsoleWriter{Out: w}
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			if closer != nil {
				closer.Close()
			}
			return zerolog.Nop(), nil, err
		}
		level = parsed
	}

	logger := zerolog.New(w).Level(level).With().Timestamp().Str("component", "mailer").Logger()
	return logger, closer, nil
}
