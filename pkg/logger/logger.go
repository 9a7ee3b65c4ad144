// Package logger — структурированное логирование маркетплейса на базе zerolog.
// В production пишет JSON, в development — читаемый консольный вывод.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// log — глобальный логгер процесса.
var log zerolog.Logger

// Config — параметры инициализации логгера.
type Config struct {
	// Level: debug, info, warn, error. По умолчанию info.
	Level string
	// Pretty включает ConsoleWriter вместо JSON.
	Pretty bool
	// Service добавляется полем "service" в каждую запись.
	Service string
	// Output по умолчанию os.Stdout.
	Output io.Writer
}

func init() {
	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	Init(Config{
		Level:  level,
		Pretty: strings.EqualFold(os.Getenv("LOG_PRETTY"), "true"),
	})
}

// Init настраивает глобальный логгер. Вызывается первым делом в main.
func Init(cfg Config) {
	var out io.Writer = os.Stdout
	if cfg.Output != nil {
		out = cfg.Output
	}
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	level := ParseLevel(cfg.Level)
	zctx := zerolog.New(out).Level(level).With().Timestamp().Caller()
	if cfg.Service != "" {
		zctx = zctx.Str("service", cfg.Service)
	}
	log = zctx.Logger()

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339
}

// ParseLevel переводит строку в zerolog.Level; неизвестное значение даёт info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// Debug — отладочные подробности (SQL-условия переходов, ответы шлюзов).
func Debug() *zerolog.Event { return log.Debug() }

// Info — штатные события: переход применён, вебхук принят.
func Info() *zerolog.Event { return log.Info() }

// Warn — бизнес-отказы и деградация (Redis недоступен, fail-open).
func Warn() *zerolog.Event { return log.Warn() }

// Error — отказы хранилища и внешних систем.
func Error() *zerolog.Event { return log.Error() }

// Fatal пишет запись и завершает процесс с кодом 1.
func Fatal() *zerolog.Event { return log.Fatal() }

// With возвращает контекст для построения дочернего логгера.
func With() zerolog.Context { return log.With() }

// Logger возвращает копию глобального логгера.
func Logger() zerolog.Logger { return log }

// SetGlobalLogger подменяет глобальный логгер (используется в тестах).
func SetGlobalLogger(l zerolog.Logger) { log = l }
