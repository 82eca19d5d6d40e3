package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// envDev enables debug logging with source locations; anything else runs at
// info.
const envDev = "dev"

// Setup installs a JSON slog handler as the process default and returns it.
// Every line carries the service name, and the environment when one is
// configured. The dev environment lowers the level to debug and annotates
// lines with their source location.
func Setup(service, env string) *slog.Logger {
	env = strings.TrimSpace(env)
	level := slog.LevelInfo
	if env == envDev {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		AddSource:   env == envDev,
		ReplaceAttr: renameAttr,
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	base := slog.New(handler.WithAttrs(attrs))
	slog.SetDefault(base)
	redirectStdLog(handler.WithAttrs(attrs))
	return base
}

// renameAttr maps slog's default keys onto the field names the log pipeline
// indexes on.
func renameAttr(_ []string, attr slog.Attr) slog.Attr {
	switch attr.Key {
	case slog.TimeKey:
		attr.Key = "timestamp"
	case slog.LevelKey:
		attr = slog.String("severity", strings.ToUpper(attr.Value.String()))
	case slog.MessageKey:
		attr.Key = "message"
	}
	return attr
}

// redirectStdLog routes the standard library logger through the structured
// handler so dependency log output stays machine-parseable.
func redirectStdLog(handler slog.Handler) {
	bridge := slog.NewLogLogger(handler, slog.LevelInfo)
	bridge.SetFlags(0)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")
}
