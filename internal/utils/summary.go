package utils

import (
	"fmt"
	"time"

	"github.com/maxkimambo/assetpipe/internal/dag"
	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
)

// RunSummary renders the outcome of a run as a message box: the counts per
// status and one line per failure.
func RunSummary(result *dag.ExecutionResult) *Box {
	elapsed := result.ExecutionTime.Round(time.Millisecond)
	total := len(result.Tasks)

	if result.Success {
		return NewBox(SuccessMessage, fmt.Sprintf("Built %s in %v", result.Root, elapsed)).
			AddLine(fmt.Sprintf("%d/%d tasks completed", total, total))
	}

	box := NewBox(ErrorMessage, fmt.Sprintf("Build of %s failed after %v", result.Root, elapsed))
	box.AddLine(fmt.Sprintf("%d completed, %d failed, %d skipped, %d cancelled",
		result.Count(dag.StatusCompleted),
		result.Count(dag.StatusFailed),
		result.Count(dag.StatusSkipped),
		result.Count(dag.StatusCancelled)))
	for _, err := range result.Failures {
		box.AddBullet(buildErrors.Summary(err))
	}
	if len(result.Failures) == 0 && result.Error != nil {
		box.AddBullet(result.Error.Error())
	}
	return box
}
