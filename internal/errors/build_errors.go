package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind identifies the class of a build error
type Kind string

const (
	// KindUnknownDependency is reported when a task depends on an undeclared task
	KindUnknownDependency Kind = "UNKNOWN_DEPENDENCY"
	// KindCyclicDependency is reported when the dependency graph contains a cycle
	KindCyclicDependency Kind = "CYCLIC_DEPENDENCY"
	// KindUnknownRoot is reported when the requested root task is not declared
	KindUnknownRoot Kind = "UNKNOWN_ROOT"
	// KindDuplicateTask is reported when two tasks share a name
	KindDuplicateTask Kind = "DUPLICATE_TASK"
	// KindInvalidTask is reported when a task declaration is inconsistent
	KindInvalidTask Kind = "INVALID_TASK"
	// KindInvalidConfig is reported for build file and option errors
	KindInvalidConfig Kind = "INVALID_CONFIG"
	// KindNoMatches is reported when a required source pattern matched nothing
	KindNoMatches Kind = "NO_MATCHES"
	// KindStepFailure is reported when a pipeline step fails
	KindStepFailure Kind = "STEP_FAILURE"
	// KindDestinationWriteFailure is reported when an output cannot be written
	KindDestinationWriteFailure Kind = "DESTINATION_WRITE_FAILURE"
)

// Sentinels for errors.Is checks. They match any BuildError of the same kind.
var (
	ErrUnknownDependency       = &BuildError{Kind: KindUnknownDependency}
	ErrCyclicDependency        = &BuildError{Kind: KindCyclicDependency}
	ErrUnknownRoot             = &BuildError{Kind: KindUnknownRoot}
	ErrDuplicateTask           = &BuildError{Kind: KindDuplicateTask}
	ErrInvalidTask             = &BuildError{Kind: KindInvalidTask}
	ErrInvalidConfig           = &BuildError{Kind: KindInvalidConfig}
	ErrNoMatches               = &BuildError{Kind: KindNoMatches}
	ErrStepFailure             = &BuildError{Kind: KindStepFailure}
	ErrDestinationWriteFailure = &BuildError{Kind: KindDestinationWriteFailure}
)

// BuildError represents a structured error with context and troubleshooting information
type BuildError struct {
	Kind            Kind
	Message         string
	Task            string
	StepIndex       int
	Step            string
	Context         map[string]interface{}
	Troubleshooting []string
	Cause           error
}

// Error returns a single-line description of the error
func (e *BuildError) Error() string {
	var sb strings.Builder

	if e.Task != "" {
		sb.WriteString(fmt.Sprintf("task %q: ", e.Task))
	}
	if e.Kind == KindStepFailure {
		sb.WriteString(fmt.Sprintf("step %d (%s) failed", e.StepIndex, e.Step))
	} else if e.Message != "" {
		sb.WriteString(e.Message)
	} else {
		sb.WriteString(strings.ToLower(strings.ReplaceAll(string(e.Kind), "_", " ")))
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// Unwrap returns the underlying cause for error chain compatibility
func (e *BuildError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a sentinel of the same kind
func (e *BuildError) Is(target error) bool {
	t, ok := target.(*BuildError)
	if !ok {
		return false
	}
	return t.Message == "" && t.Task == "" && t.Cause == nil && t.Kind == e.Kind
}

// NewBuildError creates a new build error of the given kind
func NewBuildError(kind Kind, message string) *BuildError {
	return &BuildError{
		Kind:            kind,
		Message:         message,
		StepIndex:       -1,
		Context:         make(map[string]interface{}),
		Troubleshooting: []string{},
	}
}

// WithTask records the task the error belongs to
func (e *BuildError) WithTask(task string) *BuildError {
	e.Task = task
	return e
}

// WithContext adds context information to the error
func (e *BuildError) WithContext(key string, value interface{}) *BuildError {
	e.Context[key] = value
	return e
}

// WithTroubleshooting adds troubleshooting steps to the error
func (e *BuildError) WithTroubleshooting(steps ...string) *BuildError {
	e.Troubleshooting = append(e.Troubleshooting, steps...)
	return e
}

// WithCause adds the underlying error
func (e *BuildError) WithCause(err error) *BuildError {
	e.Cause = err
	return e
}

// AsBuildError extracts the first BuildError from err's chain
func AsBuildError(err error) (*BuildError, bool) {
	var be *BuildError
	if stderrors.As(err, &be) {
		return be, true
	}
	return nil, false
}

// IsConfigurationError reports errors that are detected before any task runs
func IsConfigurationError(err error) bool {
	be, ok := AsBuildError(err)
	if !ok {
		return false
	}
	switch be.Kind {
	case KindUnknownDependency, KindCyclicDependency, KindUnknownRoot,
		KindDuplicateTask, KindInvalidTask, KindInvalidConfig:
		return true
	}
	return false
}

// RootCause walks the chain down to the innermost cause of a step failure.
// Other errors are returned unchanged.
func RootCause(err error) error {
	be, ok := AsBuildError(err)
	if !ok || be.Kind != KindStepFailure || be.Cause == nil {
		return err
	}
	return be.Cause
}
