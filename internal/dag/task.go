package dag

import (
	"context"
	"fmt"
)

// Mode describes how a task relates to its dependencies
type Mode int

const (
	// ModeParallel groups dependencies that may run concurrently
	ModeParallel Mode = iota
	// ModeSerial runs dependencies one after another in declared order
	ModeSerial
	// ModeLeaf carries an action of its own
	ModeLeaf
)

// String returns a string representation of the Mode
func (m Mode) String() string {
	switch m {
	case ModeParallel:
		return "parallel-group"
	case ModeSerial:
		return "serial-chain"
	case ModeLeaf:
		return "leaf-action"
	default:
		return "unknown"
	}
}

// ParseMode parses the build file spelling of a group mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "parallel", "parallel-group":
		return ModeParallel, nil
	case "serial", "serial-chain":
		return ModeSerial, nil
	case "leaf", "leaf-action":
		return ModeLeaf, nil
	}
	return ModeParallel, fmt.Errorf("unknown mode %q (want parallel or serial)", s)
}

// ActionFunc is the execution body of a leaf task.
type ActionFunc func(ctx context.Context) error

// Task is a named, dependency-aware unit of build work
type Task struct {
	Name string
	// DependsOn is order-insensitive for parallel groups and leaves, and
	// defines execution order for serial chains.
	DependsOn   []string
	Mode        Mode
	Action      ActionFunc
	Description string
	// BestEffort keeps a failure of this task from halting the run
	BestEffort bool
}
