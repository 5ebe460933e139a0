// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// Setup configures logrus once at startup. Output always goes to stderr so
// stdout stays free for the MCP stdio transport.
func Setup(level, format string) {
	configure(logrus.StandardLogger(), os.Stderr, level, format)
}

func configure(l *logrus.Logger, out io.Writer, level, format string) {
	l.SetOutput(out)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
}

// AsynqLevel maps a log level name to the asynq worker log level.
func AsynqLevel(level string) asynq.LogLevel {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return asynq.DebugLevel
	case "warn", "warning":
		return asynq.WarnLevel
	case "error":
		return asynq.ErrorLevel
	case "fatal", "panic":
		return asynq.FatalLevel
	default:
		return asynq.InfoLevel
	}
}

// Writer returns a writer that feeds the standard logger at info level,
// used for fiber's access log.
func Writer() io.Writer {
	return logrus.StandardLogger().WriterLevel(logrus.InfoLevel)
}
