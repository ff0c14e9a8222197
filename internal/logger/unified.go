package logger

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// LogType is the value of the log_type field the output hook routes on
type LogType string

const (
	UserLog LogType = "user"
	OpLog   LogType = "op"
)

// UnifiedLogger owns the logrus logger behind both the User and Op
// channels. Setup reconfigures it in place.
type UnifiedLogger struct {
	mu     sync.RWMutex
	logger *logrus.Logger
}

var (
	shared     *UnifiedLogger
	sharedOnce sync.Once
)

// GetLogger returns the process-wide logger. Before Setup runs it writes
// plain user-style lines to stdout at info level.
func GetLogger() *UnifiedLogger {
	sharedOnce.Do(func() {
		l := logrus.New()
		l.SetOutput(os.Stdout)
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(&CLIFormatter{DisableTimestamp: true, DisableLevel: true})
		shared = &UnifiedLogger{logger: l}
	})
	return shared
}

// GetInternalLogger returns the underlying logrus logger
func (l *UnifiedLogger) GetInternalLogger() *logrus.Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.logger
}
