package progress

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReport(t *testing.T) {
	r := NewReporter()

	line := r.Report(Info{
		Root:           "default",
		Stage:          1,
		TotalStages:    3,
		TotalTasks:     4,
		CompletedTasks: 2,
		FailedTasks:    1,
		ElapsedTime:    3 * time.Second,
		StageTasks:     []string{"compile", "bundle"},
	})

	assert.Contains(t, line, "Stage 2/3 of default: 2/4 tasks completed (50.0%), 1 failed")
	assert.Contains(t, line, "Elapsed: 3.0s")
	assert.Contains(t, line, "ETA: 1.0s")
	assert.Contains(t, line, "Stage: compile, bundle")
	assert.NotContains(t, line, "skipped")
}

func TestReport_NoETAWhenDone(t *testing.T) {
	line := NewReporter().Report(Info{Root: "a", TotalStages: 1, TotalTasks: 1, CompletedTasks: 1, ElapsedTime: time.Second})
	assert.NotContains(t, line, "ETA")
	assert.Contains(t, line, "(100.0%)")
}

func TestCalculateETA(t *testing.T) {
	assert.Equal(t, 30*time.Second, CalculateETA(1, 4, 10*time.Second))
	assert.Zero(t, CalculateETA(0, 4, time.Second))
	assert.Zero(t, CalculateETA(4, 4, time.Second))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", FormatDuration(250*time.Millisecond))
	assert.Equal(t, "1.5s", FormatDuration(1500*time.Millisecond))
	assert.Equal(t, "2m 5s", FormatDuration(125*time.Second))
	assert.Equal(t, "1h 1m", FormatDuration(61*time.Minute))
}
