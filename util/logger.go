package util

import (
	"os"

	"github.com/sirupsen/logrus"
)

// InitLogLevel sets the level of Logger from level, falling back to the LOG_LEVEL environment variable
// when level is empty. Unparseable levels are reported and ignored.
func InitLogLevel(level string) {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}
	if level == "" {
		return
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Logger.WithError(err).Warn("invalid log level")
		return
	}
	Logger.SetLevel(lvl)
}

// Logger is global logger for the application
var Logger = logrus.New()
