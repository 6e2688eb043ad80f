package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// zerologAdapter implements Logger on top of rs/zerolog.
type zerologAdapter struct {
	z zerolog.Logger
}

// NewZerologLogger builds a component-scoped logger. APP_ENV=dev selects
// the human-readable console writer, anything else emits JSON to stdout.
// HB_LOG_LEVEL raises the minimum level when set.
func NewZerologLogger(component string) Logger {
	var out io.Writer = os.Stdout
	if strings.EqualFold(os.Getenv("APP_ENV"), "dev") {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	level := zerolog.TraceLevel
	if lv, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("HB_LOG_LEVEL"))); err == nil && lv != zerolog.NoLevel {
		level = lv
	}
	z := zerolog.New(out).Level(level).With().Timestamp().Str("component", component).Logger()
	return &zerologAdapter{z: z}
}

func (l *zerologAdapter) Debugf(format string, args ...any) { l.z.Debug().Msgf(format, args...) }

func (l *zerologAdapter) Debugw(msg string, fields map[string]any) {
	l.z.Debug().Fields(fields).Msg(msg)
}

func (l *zerologAdapter) Infof(format string, args ...any) { l.z.Info().Msgf(format, args...) }

func (l *zerologAdapter) Warnf(format string, args ...any) { l.z.Warn().Msgf(format, args...) }

func (l *zerologAdapter) Errorf(format string, args ...any) { l.z.Error().Msgf(format, args...) }
