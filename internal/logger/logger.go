package logger

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	User *UserLogger // Clean build progress for users (stdout)
	Op   *OpLogger   // Detailed operational logs (stderr)

	log *UnifiedLogger
)

// init ensures loggers are never nil
func init() {
	log = GetLogger()
	User = &UserLogger{logger: log.GetInternalLogger()}
	Op = &OpLogger{logger: log.GetInternalLogger()}
}

type UserLogger struct {
	logger *logrus.Logger
}

type OpLogger struct {
	logger *logrus.Logger
}

func (u *UserLogger) entry(emoji string) *logrus.Entry {
	fields := logrus.Fields{"log_type": string(UserLog)}
	if emoji != "" {
		fields["emoji"] = emoji
	}
	return u.logger.WithFields(fields)
}

func (u *UserLogger) Info(msg string) {
	u.entry("").Info(msg)
}

func (u *UserLogger) Infof(format string, args ...interface{}) {
	u.entry("").Infof(format, args...)
}

func (u *UserLogger) Error(msg string) {
	u.entry("❌").Error(msg)
}

func (u *UserLogger) Errorf(format string, args ...interface{}) {
	u.entry("❌").Errorf(format, args...)
}

func (u *UserLogger) Warn(msg string) {
	u.entry("⚠️").Warn(msg)
}

func (u *UserLogger) Warnf(format string, args ...interface{}) {
	u.entry("⚠️").Warnf(format, args...)
}

// Build-specific methods with their own markers

func (u *UserLogger) Starting(msg string) {
	u.entry("🚀").Info(msg)
}

func (u *UserLogger) Startingf(format string, args ...interface{}) {
	u.entry("🚀").Infof(format, args...)
}

func (u *UserLogger) Success(msg string) {
	u.entry("✅").Info(msg)
}

func (u *UserLogger) Successf(format string, args ...interface{}) {
	u.entry("✅").Infof(format, args...)
}

func (u *UserLogger) Taskf(format string, args ...interface{}) {
	u.entry("⚙️").Infof(format, args...)
}

func (u *UserLogger) Watchf(format string, args ...interface{}) {
	u.entry("👀").Infof(format, args...)
}

func (u *UserLogger) Reloadf(format string, args ...interface{}) {
	u.entry("🔄").Infof(format, args...)
}

func (u *UserLogger) Cleanf(format string, args ...interface{}) {
	u.entry("🧹").Infof(format, args...)
}

// OpLogger methods without emojis - clean operational logs
func (o *OpLogger) Info(msg string) {
	o.logger.WithField("log_type", string(OpLog)).Info(msg)
}

func (o *OpLogger) Infof(format string, args ...interface{}) {
	o.logger.WithField("log_type", string(OpLog)).Infof(format, args...)
}

func (o *OpLogger) Error(msg string) {
	o.logger.WithField("log_type", string(OpLog)).Error(msg)
}

func (o *OpLogger) Errorf(format string, args ...interface{}) {
	o.logger.WithField("log_type", string(OpLog)).Errorf(format, args...)
}

func (o *OpLogger) Warn(msg string) {
	o.logger.WithField("log_type", string(OpLog)).Warn(msg)
}

func (o *OpLogger) Warnf(format string, args ...interface{}) {
	o.logger.WithField("log_type", string(OpLog)).Warnf(format, args...)
}

func (o *OpLogger) Debug(msg string) {
	o.logger.WithField("log_type", string(OpLog)).Debug(msg)
}

func (o *OpLogger) Debugf(format string, args ...interface{}) {
	o.logger.WithField("log_type", string(OpLog)).Debugf(format, args...)
}

func (o *OpLogger) WithFields(fields map[string]interface{}) *logrus.Entry {
	// Copy so callers can reuse their map
	f := make(logrus.Fields, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f["log_type"] = string(OpLog)
	return o.logger.WithFields(f)
}

// Task returns an operational entry tagged with the task it belongs to
func (o *OpLogger) Task(name string) *logrus.Entry {
	return o.logger.WithFields(logrus.Fields{
		"log_type": string(OpLog),
		"task":     name,
	})
}

// CLIFormatter provides clean output for CLI applications
type CLIFormatter struct {
	DisableTimestamp bool
	DisableLevel     bool
	DisableColors    bool
}

func (f *CLIFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b bytes.Buffer

	// Simple clean format: just the message for user-facing logs
	if f.DisableLevel && f.DisableTimestamp {
		b.WriteString(entry.Message)
		b.WriteByte('\n')
		return b.Bytes(), nil
	}

	if !f.DisableTimestamp {
		b.WriteString(entry.Time.Format("15:04:05"))
		b.WriteByte(' ')
	}

	if !f.DisableLevel {
		levelColor := ""
		resetColor := ""
		if !f.DisableColors {
			switch entry.Level {
			case logrus.ErrorLevel:
				levelColor = "\033[31m" // Red
			case logrus.WarnLevel:
				levelColor = "\033[33m" // Yellow
			case logrus.InfoLevel:
				levelColor = "\033[36m" // Cyan
			case logrus.DebugLevel:
				levelColor = "\033[37m" // White
			}
			resetColor = "\033[0m"
		}

		b.WriteString(levelColor)
		b.WriteString(strings.ToUpper(entry.Level.String()))
		b.WriteString(resetColor)
		b.WriteString(": ")
	}

	b.WriteString(entry.Message)

	// Fields in stable order, log routing keys omitted
	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k == "log_type" || k == "emoji" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", k, entry.Data[k]))
	}

	b.WriteByte('\n')
	return b.Bytes(), nil
}

// Setup configures logging for the CLI, writing user logs to stdout and
// operational logs to stderr.
func Setup(verbose bool, jsonLogs bool, quiet bool) {
	SetupWithWriters(verbose, jsonLogs, quiet, os.Stdout, os.Stderr)
}

// SetupWithWriters is Setup with explicit destinations for both channels.
func SetupWithWriters(verbose, jsonLogs, quiet bool, userW, opW io.Writer) {
	// Environment variables override CLI flags
	if envLogMode := os.Getenv("LOG_MODE"); envLogMode != "" {
		switch envLogMode {
		case "quiet":
			quiet = true
			verbose = false
		case "verbose", "debug":
			verbose = true
			quiet = false
		}
	}

	if envLogFormat := os.Getenv("LOG_FORMAT"); envLogFormat != "" {
		switch envLogFormat {
		case "json":
			jsonLogs = true
		case "text":
			jsonLogs = false
		}
	}

	ul := GetLogger()
	internalLogger := ul.GetInternalLogger()

	var level logrus.Level
	if quiet {
		level = logrus.ErrorLevel
	} else if verbose {
		level = logrus.DebugLevel
	} else {
		level = logrus.InfoLevel
	}

	// Output is handled by the router hook
	internalLogger.Hooks = make(logrus.LevelHooks)
	internalLogger.SetOutput(io.Discard)
	internalLogger.SetLevel(level)

	hook := NewOutputRouterHook()
	hook.UserWriter = userW
	hook.OpWriter = opW

	if jsonLogs {
		internalLogger.SetFormatter(&logrus.JSONFormatter{})
		hook.UserFormatter = &logrus.JSONFormatter{}
		hook.OpFormatter = &logrus.JSONFormatter{}
	} else {
		internalLogger.SetFormatter(&logrus.TextFormatter{})

		hook.UserFormatter = &CLIFormatter{
			DisableTimestamp: true,
			DisableLevel:     true,
		}

		colors := isTerminal(opW)
		if verbose {
			hook.OpFormatter = &logrus.TextFormatter{
				FullTimestamp: true,
				ForceColors:   colors,
			}
		} else {
			hook.OpFormatter = &CLIFormatter{
				DisableTimestamp: true,
				DisableColors:    !colors,
			}
		}
	}

	internalLogger.AddHook(hook)

	User = &UserLogger{logger: internalLogger}
	Op = &OpLogger{logger: internalLogger}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
