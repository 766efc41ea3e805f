package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Level  string
	File   string
	Format string
}

var Logger zerolog.Logger
var logFile *os.File

func InitLogger(opts Options) {
	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if opts.File == "" || opts.File == "none" || opts.File == "disabled" {
		logFile = nil
	} else {
		logFile, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open log file, using stdout only")
			logFile = nil
		}
	}

	var writers []io.Writer
	if opts.Format == "pretty" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, os.Stdout)
	}
	if logFile != nil {
		writers = append(writers, logFile)
	}

	Logger = zerolog.New(io.MultiWriter(writers...)).With().
		Timestamp().
		Logger()

	log.Logger = Logger

	ev := Logger.Info().Str("log_level", level.String())
	if logFile != nil {
		ev.Str("log_file", opts.File).Msg("Logger initialized - writing to console and file")
	} else {
		ev.Msg("Logger initialized - writing to console only")
	}
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
}

func GetLogger() zerolog.Logger {
	return Logger
}

// Component returns a child logger tagged with the subsystem name.
func Component(name string) zerolog.Logger {
	return Logger.With().Str("component", name).Logger()
}

// Session is the FIX message log of one participant.
func Session(source string) zerolog.Logger {
	return Logger.With().
		Str("component", "fix").
		Str("session", "FIX_"+source).
		Logger()
}
