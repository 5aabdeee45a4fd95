package app

import (
	"io"
	"time"

	"github.com/plus3/kiln/config"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// NewLogger builds the application logger described by cfg, writing to w.
func NewLogger(cfg config.Log, w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), eris.Wrapf(err, "log level %q", cfg.Level)
	}

	switch cfg.Format {
	case "json":
	case "console", "":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), eris.Errorf("unknown log format %q", cfg.Format)
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}
