// Package logging provides the logrus helpers shared by the usage library
// and its CLI host. The library itself only logs at debug level: telemetry
// must stay silent inside host applications unless explicitly asked not to.
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// component tags every entry so usage log lines are filterable when the
// host application shares the global logrus logger.
const component = "usage"

// LogDebug logs a debug message. This is the only level the library core
// uses: dropped hits, persistence failures, and suppressed sends are all
// debug-level events.
func LogDebug(msg string) {
	log.WithFields(log.Fields{"component": component}).Debug(msg)
}

// LogInfo logs an informational message. Used by the CLI host, not by the
// library core.
func LogInfo(msg string) {
	log.WithFields(log.Fields{"component": component}).Info(msg)
}

// LogError logs a recoverable error that does not terminate the program.
func LogError(msg string) {
	log.WithFields(log.Fields{"component": component}).Error(msg)
}

// PrepareLogs routes log output to both stdout and the given file with JSON
// formatting. Intended for the CLI host; libraries embedding a Session
// should leave the global logger alone.
//
// Returns an error if the log file cannot be opened or created.
func PrepareLogs(logName string) error {
	logFile, err := os.OpenFile(logName, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %v", err)
	}
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	log.SetFormatter(&log.JSONFormatter{PrettyPrint: true})
	return nil
}
