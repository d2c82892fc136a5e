package util

import (
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestInitLogLevel(t *testing.T) {
	ass := assert.New(t)
	Logger.Out = io.Discard
	defer Logger.SetLevel(logrus.InfoLevel)

	InitLogLevel("debug")
	ass.Equal(logrus.DebugLevel, Logger.GetLevel())

	InitLogLevel("not a level")
	ass.Equal(logrus.DebugLevel, Logger.GetLevel(), "invalid level should be ignored")

	os.Setenv("LOG_LEVEL", "warn")
	defer os.Unsetenv("LOG_LEVEL")
	InitLogLevel("")
	ass.Equal(logrus.WarnLevel, Logger.GetLevel())
}
