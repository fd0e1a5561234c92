package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures where and how loud a component logger writes.
type Options struct {
	Level   string // debug, info, warn, error
	Dir     string // log directory; empty disables the rotating file writer
	Console io.Writer
}

// New creates a component logger with a [prefix] on every message.
func New(prefix string, opts Options) zerolog.Logger {
	console := opts.Console
	if console == nil {
		console = os.Stdout
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        console,
		TimeFormat: "2006-01-02 15:04:05",
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("[%s] %v", prefix, i)
		},
	}

	var writer io.Writer = consoleWriter
	if opts.Dir != "" {
		rotatingLogFile := &lumberjack.Logger{
			Filename: filepath.Join(opts.Dir, "ferrite.log"),
			MaxSize:  10,
			MaxAge:   15,
			Compress: true,
		}
		fileWriter := zerolog.ConsoleWriter{
			Out:        rotatingLogFile,
			TimeFormat: "2006-01-02 15:04:05",
			NoColor:    true,
			FormatLevel: func(i interface{}) string {
				return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
			},
			FormatMessage: func(i interface{}) string {
				return fmt.Sprintf("[%s] %v", prefix, i)
			},
		}
		writer = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	}

	l := zerolog.New(writer).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	switch opts.Level {
	case "debug":
		l = l.Level(zerolog.DebugLevel)
	case "info":
		l = l.Level(zerolog.InfoLevel)
	case "warn":
		l = l.Level(zerolog.WarnLevel)
	case "error":
		l = l.Level(zerolog.ErrorLevel)
	}
	return l
}
