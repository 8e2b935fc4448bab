package common

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// SetClock makes every zerolog timestamp use loc.
func SetClock(loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	zerolog.TimestampFunc = func() time.Time { return time.Now().In(loc) }
}

// NewLogger builds the service logger. Output goes to stdout as JSON and is
// also copied to every extra writer.
func NewLogger(service, level string, extra ...io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var out io.Writer = os.Stdout
	if len(extra) > 0 {
		out = zerolog.MultiLevelWriter(append([]io.Writer{os.Stdout}, extra...)...)
	}
	return zerolog.New(out).Level(parseLevel(level)).With().Timestamp().Str("service", service).Logger()
}

// NewLineLogger writes "<timestamp> - <message>" lines, the format Zabbix
// operators grep the dispatcher log files for. Structured fields follow the
// message as key=value pairs.
func NewLineLogger(w io.Writer, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	cw := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName},
		FormatTimestamp: func(i interface{}) string {
			return fmt.Sprintf("%v -", i)
		},
		FormatLevel: func(i interface{}) string {
			lvl, _ := i.(string)
			switch lvl {
			case zerolog.LevelWarnValue, zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
				return strings.ToUpper(lvl) + ":"
			default:
				return ""
			}
		},
	}
	return zerolog.New(cw).Level(parseLevel(level)).With().Timestamp().Logger()
}

func WithContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	if ctx == nil {
		return logger
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		logger = logger.With().Str("trace_id", sc.TraceID().String()).Logger()
	}
	if sc.HasSpanID() {
		logger = logger.With().Str("span_id", sc.SpanID().String()).Logger()
	}
	return logger
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
