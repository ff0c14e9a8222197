package errors

import (
	"fmt"
	"strings"
)

// NewUnknownDependencyError creates an error for a dependency on an undeclared task
func NewUnknownDependencyError(task, dependency string) *BuildError {
	return NewBuildError(KindUnknownDependency,
		fmt.Sprintf("depends on unknown task %q", dependency)).
		WithTask(task).
		WithContext("dependency", dependency).
		WithTroubleshooting(
			"Check the spelling of the name in depends_on",
			"Declare the missing task or remove it from depends_on",
			"Run 'assetpipe tasks' to list the declared tasks",
		)
}

// NewCyclicDependencyError creates an error describing a dependency cycle.
// The cycle is reported in traversal order and closed on its first task.
func NewCyclicDependencyError(cycle []string) *BuildError {
	return NewBuildError(KindCyclicDependency,
		fmt.Sprintf("dependency cycle detected: %s", strings.Join(cycle, " -> "))).
		WithContext("cycle", cycle).
		WithTroubleshooting(
			"Remove one of the depends_on entries that form the cycle",
			"Serial tasks order their dependencies; check for a reversed pair",
		)
}

// NewUnknownRootError creates an error for a requested task that does not exist
func NewUnknownRootError(root string) *BuildError {
	return NewBuildError(KindUnknownRoot,
		fmt.Sprintf("task %q is not declared", root)).
		WithContext("task", root).
		WithTroubleshooting("Run 'assetpipe tasks' to list the declared tasks")
}

// NewDuplicateTaskError creates an error for a task declared twice
func NewDuplicateTaskError(task string) *BuildError {
	return NewBuildError(KindDuplicateTask, "declared more than once").
		WithTask(task)
}

// NewInvalidTaskError creates an error for an inconsistent task declaration
func NewInvalidTaskError(task, reason string) *BuildError {
	return NewBuildError(KindInvalidTask, reason).WithTask(task)
}

// NewInvalidConfigError creates an error for build file and option problems
func NewInvalidConfigError(message string, cause error) *BuildError {
	return NewBuildError(KindInvalidConfig, message).WithCause(cause)
}

// NewNoMatchesError creates an error for source patterns that matched nothing
func NewNoMatchesError(task string, patterns []string) *BuildError {
	return NewBuildError(KindNoMatches,
		fmt.Sprintf("no files match %s", strings.Join(patterns, ", "))).
		WithTask(task).
		WithContext("patterns", patterns).
		WithTroubleshooting(
			"Check that the patterns are relative to the project directory",
			"Set allow_empty = true if the sources are optional",
		)
}

// NewStepFailure creates an error for a failed pipeline step
func NewStepFailure(task string, index int, step string, cause error) *BuildError {
	e := NewBuildError(KindStepFailure, "").
		WithTask(task).
		WithCause(cause)
	e.StepIndex = index
	e.Step = step
	return e
}

// NewDestinationWriteFailure creates an error for an output that could not be written
func NewDestinationWriteFailure(task, path string, cause error) *BuildError {
	return NewBuildError(KindDestinationWriteFailure,
		fmt.Sprintf("cannot write %s", path)).
		WithTask(task).
		WithContext("path", path).
		WithCause(cause).
		WithTroubleshooting(
			"Check permissions on the destination directory",
			"Make sure no other process holds the file open",
		)
}
