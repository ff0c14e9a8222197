package logger

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerInitialization(t *testing.T) {
	assert.NotNil(t, User, "User logger should not be nil after init")
	assert.NotNil(t, Op, "Op logger should not be nil after init")
	assert.Same(t, GetLogger(), GetLogger())
}

func TestLoggerSetup(t *testing.T) {
	tests := []struct {
		name     string
		verbose  bool
		jsonLogs bool
		quiet    bool
		level    logrus.Level
	}{
		{"Default", false, false, false, logrus.InfoLevel},
		{"Verbose", true, false, false, logrus.DebugLevel},
		{"Quiet", false, false, true, logrus.ErrorLevel},
		{"JSON", false, true, false, logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_MODE", "")
			t.Setenv("LOG_FORMAT", "")
			var userBuf, opBuf bytes.Buffer
			SetupWithWriters(tt.verbose, tt.jsonLogs, tt.quiet, &userBuf, &opBuf)

			require.NotNil(t, User)
			require.NotNil(t, Op)
			assert.Equal(t, tt.level, GetLogger().GetInternalLogger().GetLevel())
		})
	}
}

func TestRouting_UserAndOpChannels(t *testing.T) {
	t.Setenv("LOG_MODE", "")
	t.Setenv("LOG_FORMAT", "")
	var userBuf, opBuf bytes.Buffer
	SetupWithWriters(false, false, false, &userBuf, &opBuf)

	User.Successf("built %d files", 3)
	Op.WithFields(map[string]interface{}{"task": "styles"}).Warn("slow step")

	assert.Equal(t, "✅ built 3 files\n", userBuf.String())
	assert.Contains(t, opBuf.String(), "slow step")
	assert.Contains(t, opBuf.String(), "task=styles")
	assert.NotContains(t, opBuf.String(), "log_type")
}

func TestOpTask_TagsEntries(t *testing.T) {
	t.Setenv("LOG_MODE", "")
	t.Setenv("LOG_FORMAT", "")
	var userBuf, opBuf bytes.Buffer
	SetupWithWriters(false, false, false, &userBuf, &opBuf)

	Op.Task("sprites").WithField("step", "svgsprite").Warn("retrying")

	assert.Empty(t, userBuf.String())
	assert.Contains(t, opBuf.String(), "retrying")
	assert.Contains(t, opBuf.String(), "task=sprites")
	assert.Contains(t, opBuf.String(), "step=svgsprite")
}

func TestRouting_JSON(t *testing.T) {
	t.Setenv("LOG_MODE", "")
	t.Setenv("LOG_FORMAT", "")
	var userBuf, opBuf bytes.Buffer
	SetupWithWriters(false, true, false, &userBuf, &opBuf)

	User.Info("hello")

	assert.True(t, strings.HasPrefix(userBuf.String(), "{"), userBuf.String())
	assert.Contains(t, userBuf.String(), `"msg":"hello"`)
}

func TestSetup_EnvOverridesQuiet(t *testing.T) {
	t.Setenv("LOG_MODE", "quiet")
	var userBuf, opBuf bytes.Buffer
	SetupWithWriters(true, false, false, &userBuf, &opBuf)

	User.Info("suppressed")
	assert.Empty(t, userBuf.String())
	assert.Equal(t, logrus.ErrorLevel, GetLogger().GetInternalLogger().GetLevel())
}

func TestCLIFormatter_FieldsSorted(t *testing.T) {
	f := &CLIFormatter{DisableTimestamp: true, DisableColors: true}
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Level:   logrus.InfoLevel,
		Message: "step done",
		Data:    logrus.Fields{"z": 1, "a": 2, "log_type": "op"},
	}

	out, err := f.Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "INFO: step done a=2 z=1\n", string(out))
}
