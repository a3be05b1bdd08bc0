// Package logger configures the process-wide logrus logger.
package logger

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup applies level and format ("text" or "json"). An unknown level falls
// back to info.
func Setup(level, format string) {
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	log.SetOutput(os.Stdout)

	lvl, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("unknown log level, using info")
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
