package log

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stderr, false, zerolog.InfoLevel)
)

func newLogger(w io.Writer, console bool, lvl zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "2006-01-02T15:04:05.000"}
	}
	return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// Setup replaces the process logger. level is one of debug/info/warn/error
// (case-insensitive); console selects human-readable output over JSON.
func Setup(level string, console bool) {
	SetupWithWriter(os.Stderr, level, console)
}

// SetupWithWriter is Setup with an explicit destination, mainly for tests.
func SetupWithWriter(w io.Writer, level string, console bool) {
	l := newLogger(w, console, parseLevel(level))
	mu.Lock()
	logger = l
	mu.Unlock()
}

func SetLevel(l Level) {
	mu.Lock()
	logger = logger.Level(parseLevel(string(l)))
	mu.Unlock()
}

// Logger returns the underlying zerolog logger, for packages that want a
// component-scoped child logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	current().Debug().Fields(fields(kv)).Msg(msg)
}

func Info(msg string, kv ...any) {
	current().Info().Fields(fields(kv)).Msg(msg)
}

func Warn(msg string, kv ...any) {
	current().Warn().Fields(fields(kv)).Msg(msg)
}

func Error(msg string, err error, kv ...any) {
	current().Error().Err(err).Fields(fields(kv)).Msg(msg)
}

func current() *zerolog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	return &l
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(LevelDebug):
		return zerolog.DebugLevel
	case string(LevelWarn), "WARNING":
		return zerolog.WarnLevel
	case string(LevelError):
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// fields turns key, value, key, value... into a map. Non-string keys are
// skipped and a trailing odd value is ignored.
func fields(kv []any) map[string]any {
	if len(kv) < 2 {
		return nil
	}
	out := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out[key] = kv[i+1]
	}
	return out
}
