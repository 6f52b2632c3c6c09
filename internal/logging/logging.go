package logging

import (
	"github.com/sirupsen/logrus"

	"social_automation/internal/config"
)

// New builds the process-wide logger. Components receive it through their
// constructors; nothing else in the tree touches logrus globals.
func New() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(config.LogLevel())
	return logger
}
