// Package logger arma el zerolog del proceso: JSON en producción, consola en development,
// y un sublogger por componente para los casos de uso, el worker y el HTTP.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config viene de LOG_LEVEL, APP_ENV y APP_NAME.
type Config struct {
	Env    string
	Level  string
	App    string
	Output io.Writer // nil = stdout
}

// Logger zerolog con el campo app fijo. Los eventos (Info, Warn, Fatal...) son los de zerolog.
type Logger struct {
	zerolog.Logger
}

// New construye el logger y lo instala como log.Logger global.
func New(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	if cfg.Env == "development" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}
	zctx := zerolog.New(out).Level(level(cfg.Level)).With().Timestamp()
	if cfg.App != "" {
		zctx = zctx.Str("app", cfg.App)
	}
	l := &Logger{Logger: zctx.Logger()}
	log.Logger = l.Logger
	return l
}

// level acepta los nombres de zerolog; vacío o desconocido queda en info.
func level(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Component sublogger con component=name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.With().Str("component", name).Logger()
}
