// Package config loads the build file: options, tasks, watch bindings and
// the dev server settings.
package config

import (
	"github.com/zclconf/go-cty/cty"

	"github.com/maxkimambo/assetpipe/internal/dag"
	"github.com/maxkimambo/assetpipe/internal/matcher"
)

// DefaultFile is the build file looked up when none is given
const DefaultFile = "Assetfile.hcl"

// DefaultPort of the dev server
const DefaultPort = 3000

// DefaultServeDir is served when neither a server block nor any task
// destination names the output tree
const DefaultServeDir = "dist"

// BuildFile is the evaluated content of a build file
type BuildFile struct {
	// Path of the build file; ProjectDir is its directory
	Path       string
	ProjectDir string

	Options Options
	Server  ServerConfig
	Tasks   []TaskConfig
	Watches []WatchConfig

	// Warnings are non-fatal findings, already logged
	Warnings []string
}

// Task returns the task named name
func (b *BuildFile) Task(name string) (TaskConfig, bool) {
	for _, t := range b.Tasks {
		if t.Name == name {
			return t, true
		}
	}
	return TaskConfig{}, false
}

// TaskConfig is one task block
type TaskConfig struct {
	Name        string
	Description string
	DependsOn   []string
	Mode        dag.Mode

	Sources    []string
	Order      matcher.Order
	AllowEmpty bool
	Dest       string
	Live       bool
	Steps      []StepConfig

	Clean []string

	BestEffort bool
}

// HasPipeline reports whether the task processes sources
func (t TaskConfig) HasPipeline() bool { return len(t.Sources) > 0 }

// StepConfig is one step block with its attributes evaluated
type StepConfig struct {
	Type    string
	Enabled bool
	Attrs   map[string]cty.Value
}

// WatchConfig is one watch block
type WatchConfig struct {
	Patterns []string
	Task     string
	Reload   bool
	Deps     bool
}

// ServerConfig is the server block
type ServerConfig struct {
	Dir  string
	Port int
}
