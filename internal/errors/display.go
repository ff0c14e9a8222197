package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Summary renders the single-line report used for a failed task
func Summary(err error) string {
	be, ok := AsBuildError(err)
	if !ok {
		return err.Error()
	}
	if be.Task == "" {
		return fmt.Sprintf("[%s] %s", be.Kind, be.Error())
	}
	cause := be.Message
	if be.Kind == KindStepFailure {
		cause = fmt.Sprintf("step %d (%s)", be.StepIndex, be.Step)
	}
	if be.Cause != nil {
		if cause != "" {
			cause += ": "
		}
		cause += firstLine(be.Cause.Error())
	}
	return fmt.Sprintf("%s: %s", be.Task, cause)
}

// FormatForCLI formats an error for command-line display with proper spacing
func FormatForCLI(err error) string {
	be, ok := AsBuildError(err)
	if !ok {
		return fmt.Sprintf("\nError: %v\n", err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("\nError [%s]\n", be.Kind))
	sb.WriteString(fmt.Sprintf("  %s\n", be.Error()))

	if len(be.Context) > 0 {
		keys := make([]string, 0, len(be.Context))
		for k := range be.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %v\n", k, be.Context[k]))
		}
	}

	if len(be.Troubleshooting) > 0 {
		sb.WriteString("\nHow to resolve:\n")
		for i, step := range be.Troubleshooting {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
		}
	}

	return sb.String()
}

// ShouldDisplayTroubleshooting determines if troubleshooting info should be shown
func ShouldDisplayTroubleshooting(err error) bool {
	if be, ok := AsBuildError(err); ok {
		return len(be.Troubleshooting) > 0
	}
	return false
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
