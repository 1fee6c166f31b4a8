package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var logFile *os.File

// Init configures the global zerolog logger. Output goes to stderr as
// a console stream and, when logFilePath is non-empty, to a JSON log
// file as well. Unknown level strings fall back to info.
func Init(level, logFilePath string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	writers := []io.Writer{zerolog.ConsoleWriter{Out: os.Stderr}}
	if logFilePath != "" {
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		writers = append(writers, logFile)
	}
	log.Logger = log.Output(zerolog.MultiLevelWriter(writers...))
	return nil
}

// Cleanup closes the log file when the application is done using it.
func Cleanup() {
	if logFile != nil {
		logFile.Close()
	}
}
