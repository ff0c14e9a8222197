// Package progress formats run progress for the build log.
package progress

import (
	"fmt"
	"strings"
	"time"
)

// Info is a snapshot of a run taken after a stage finished
type Info struct {
	Root        string
	Stage       int // zero-based index of the finished stage
	TotalStages int

	TotalTasks     int
	CompletedTasks int
	FailedTasks    int
	SkippedTasks   int

	ElapsedTime time.Duration

	// StageTasks names the tasks of the finished stage
	StageTasks []string
}

// Reporter formats progress lines
type Reporter struct {
	startTime time.Time
}

// NewReporter creates a reporter whose clock starts now
func NewReporter() *Reporter {
	return &Reporter{startTime: time.Now()}
}

// Elapsed returns the time since the reporter was created
func (r *Reporter) Elapsed() time.Duration {
	return time.Since(r.startTime)
}

// Report renders one progress line, with the tasks of the stage on a
// second line
func (r *Reporter) Report(info Info) string {
	percentage := 0.0
	if info.TotalTasks > 0 {
		percentage = float64(info.CompletedTasks) / float64(info.TotalTasks) * 100
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Stage %d/%d of %s: %d/%d tasks completed (%.1f%%)",
		info.Stage+1, info.TotalStages, info.Root, info.CompletedTasks, info.TotalTasks, percentage))
	if info.FailedTasks > 0 {
		sb.WriteString(fmt.Sprintf(", %d failed", info.FailedTasks))
	}
	if info.SkippedTasks > 0 {
		sb.WriteString(fmt.Sprintf(", %d skipped", info.SkippedTasks))
	}
	sb.WriteString(fmt.Sprintf(" | Elapsed: %s", FormatDuration(info.ElapsedTime)))

	done := info.CompletedTasks + info.FailedTasks + info.SkippedTasks
	if eta := CalculateETA(done, info.TotalTasks, info.ElapsedTime); eta > 0 {
		sb.WriteString(fmt.Sprintf(" | ETA: %s", FormatDuration(eta)))
	}

	if len(info.StageTasks) > 0 {
		sb.WriteString(fmt.Sprintf("\n   Stage: %s", strings.Join(info.StageTasks, ", ")))
	}
	return sb.String()
}

// CalculateETA estimates time remaining based on current progress
func CalculateETA(done, total int, elapsed time.Duration) time.Duration {
	if done <= 0 || total <= 0 || done >= total {
		return 0
	}
	perTask := elapsed / time.Duration(done)
	return perTask * time.Duration(total-done)
}

// FormatDuration formats a duration for humans. Runs are usually short, so
// durations under a second keep millisecond precision.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
