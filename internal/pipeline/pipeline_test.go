package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
	"github.com/maxkimambo/assetpipe/internal/matcher"
	"github.com/maxkimambo/assetpipe/internal/resource"
	"github.com/maxkimambo/assetpipe/internal/transform"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(name)))
	require.NoError(t, err)
	return string(data)
}

// appendStep appends suffix to every resource's content
func appendStep(suffix string) Step {
	return Step{
		Name:    "append-" + suffix,
		Enabled: true,
		Transform: func(ctx context.Context, in []resource.Resource, cfg transform.Config) ([]resource.Resource, error) {
			out := make([]resource.Resource, len(in))
			for i, r := range in {
				data, err := r.Bytes()
				if err != nil {
					return nil, err
				}
				out[i] = r.WithBytes(append(append([]byte(nil), data...), suffix...))
			}
			return out, nil
		},
	}
}

func failingStep(err error) Step {
	return Step{
		Name:    "broken",
		Enabled: true,
		Transform: func(ctx context.Context, in []resource.Resource, cfg transform.Config) ([]resource.Resource, error) {
			return nil, err
		},
	}
}

func TestRun_StepOrderPreserved(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.txt": "x"})

	runner := NewRunner(root, nil)
	p := &Pipeline{
		Task:    "text",
		Sources: []string{"src/*.txt"},
		Steps:   []Step{appendStep("A"), appendStep("B"), appendStep("C")},
		Dest:    "dist",
	}

	result, err := runner.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Matched)
	assert.Equal(t, []string{"dist/a.txt"}, result.Written)
	assert.Equal(t, "xABC", readFile(t, root, "dist/a.txt"))

	p.Steps = []Step{appendStep("C"), appendStep("B"), appendStep("A")}
	_, err = runner.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "xCBA", readFile(t, root, "dist/a.txt"))
}

func TestRun_PathsRelativeToGlobBase(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/fonts/a.woff":     "a",
		"src/fonts/sub/b.woff": "b",
	})

	result, err := NewRunner(root, nil).Run(context.Background(), &Pipeline{
		Task:    "fonts",
		Sources: []string{"src/fonts/**/*.woff"},
		Dest:    "dist/fonts",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"dist/fonts/a.woff", "dist/fonts/sub/b.woff"}, result.Written)
	assert.Equal(t, "b", readFile(t, root, "dist/fonts/sub/b.woff"))
}

func TestRun_DisabledStepSkipped(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.txt": "x"})

	skip := appendStep("B")
	skip.Enabled = false

	result, err := NewRunner(root, nil).Run(context.Background(), &Pipeline{
		Task:    "text",
		Sources: []string{"src/*.txt"},
		Steps:   []Step{appendStep("A"), skip},
		Dest:    "dist",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"append-B"}, result.Disabled)
	assert.Equal(t, "xA", readFile(t, root, "dist/a.txt"))
}

func TestRun_StepFailure(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.txt": "x"})

	cause := fmt.Errorf("unexpected token")
	_, err := NewRunner(root, nil).Run(context.Background(), &Pipeline{
		Task:    "compile",
		Sources: []string{"src/*.txt"},
		Steps:   []Step{appendStep("A"), failingStep(cause), appendStep("C")},
		Dest:    "dist",
	})

	require.Error(t, err)
	assert.True(t, stderrors.Is(err, buildErrors.ErrStepFailure))
	assert.True(t, stderrors.Is(err, cause))

	be, ok := buildErrors.AsBuildError(err)
	require.True(t, ok)
	assert.Equal(t, "compile", be.Task)
	assert.Equal(t, 1, be.StepIndex)
	assert.Equal(t, "broken", be.Step)

	_, statErr := os.Stat(filepath.Join(root, "dist", "a.txt"))
	assert.True(t, os.IsNotExist(statErr), "nothing is written after a failure")
}

func TestRun_PanicAndMalformedOutput(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.txt": "x"})

	tests := []struct {
		name string
		fn   transform.Func
		want string
	}{
		{
			name: "panic",
			fn: func(ctx context.Context, in []resource.Resource, cfg transform.Config) ([]resource.Resource, error) {
				var m map[string]int
				m["boom"] = 1
				return in, nil
			},
			want: "panic",
		},
		{
			name: "zero resource",
			fn: func(ctx context.Context, in []resource.Resource, cfg transform.Config) ([]resource.Resource, error) {
				return []resource.Resource{{}}, nil
			},
			want: "malformed output",
		},
		{
			name: "escaping path",
			fn: func(ctx context.Context, in []resource.Resource, cfg transform.Config) ([]resource.Resource, error) {
				return []resource.Resource{in[0].WithPath("../../etc/passwd")}, nil
			},
			want: "escapes the destination",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(root, nil).Run(context.Background(), &Pipeline{
				Task:    "bad",
				Sources: []string{"src/*.txt"},
				Steps:   []Step{{Name: tt.name, Transform: tt.fn, Enabled: true}},
				Dest:    "dist",
			})
			require.Error(t, err)
			assert.True(t, stderrors.Is(err, buildErrors.ErrStepFailure))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_NoMatches(t *testing.T) {
	root := t.TempDir()
	runner := NewRunner(root, nil)

	_, err := runner.Run(context.Background(), &Pipeline{
		Task:    "vendors",
		Sources: []string{"src/libs/*.js"},
		Dest:    "dist/js",
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, buildErrors.ErrNoMatches))
	be, _ := buildErrors.AsBuildError(err)
	assert.Equal(t, "vendors", be.Task)

	result, err := runner.Run(context.Background(), &Pipeline{
		Task:    "vendors",
		Sources: []string{"src/libs/*.js"},
		Match:   matcher.Options{AllowEmpty: true},
		Dest:    "dist/js",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Written)
}

func TestRun_DestinationWriteFailure(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/a.txt": "x",
		"dist":      "a file where a directory is expected",
	})

	_, err := NewRunner(root, nil).Run(context.Background(), &Pipeline{
		Task:    "text",
		Sources: []string{"src/*.txt"},
		Dest:    "dist",
	})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, buildErrors.ErrDestinationWriteFailure))
}

func TestRun_CancelledBetweenSteps(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.txt": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	ranSecond := false

	stopper := Step{
		Name:    "stopper",
		Enabled: true,
		Transform: func(stepCtx context.Context, in []resource.Resource, cfg transform.Config) ([]resource.Resource, error) {
			cancel()
			assert.NoError(t, stepCtx.Err(), "running step is not interrupted")
			return in, nil
		},
	}
	second := Step{
		Name:    "second",
		Enabled: true,
		Transform: func(ctx context.Context, in []resource.Resource, cfg transform.Config) ([]resource.Resource, error) {
			ranSecond = true
			return in, nil
		},
	}

	_, err := NewRunner(root, nil).Run(ctx, &Pipeline{
		Task:    "text",
		Sources: []string{"src/*.txt"},
		Steps:   []Step{stopper, second},
		Dest:    "dist",
	})
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.False(t, ranSecond)
}

func TestRun_LiveReload(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/styles/main.css": "a{}"})

	var reloaded [][]string
	runner := NewRunner(root, func(_ context.Context, paths []string) { reloaded = append(reloaded, paths) })

	p := &Pipeline{
		Task:    "styles",
		Sources: []string{"src/styles/main.css"},
		Dest:    "dist/css",
		Live:    true,
	}
	_, err := runner.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"dist/css/main.css"}}, reloaded)

	p.Live = false
	_, err = runner.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, reloaded, 1)
}

func TestRun_StepsSeeProjectDir(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a.txt": "x"})

	var seen string
	_, err := NewRunner(root, nil).Run(context.Background(), &Pipeline{
		Task:    "text",
		Sources: []string{"src/*.txt"},
		Steps: []Step{{Name: "probe", Enabled: true, Transform: func(ctx context.Context, in []resource.Resource, cfg transform.Config) ([]resource.Resource, error) {
			seen = cfg.Dir()
			return in, nil
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, root, seen)
}

func TestClean(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"dist/css/a.css": "a",
		"src/a.scss":     "b",
	})
	runner := NewRunner(root, nil)

	removed, err := runner.Clean(context.Background(), "clean", []string{"dist", "missing"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dist"}, removed)
	assert.NoDirExists(t, filepath.Join(root, "dist"))
	assert.FileExists(t, filepath.Join(root, "src", "a.scss"))

	for _, bad := range []string{"..", ".", "../elsewhere", "/tmp", ""} {
		_, err := runner.Clean(context.Background(), "clean", []string{bad})
		assert.True(t, stderrors.Is(err, buildErrors.ErrInvalidTask), "path %q", bad)
	}
	assert.DirExists(t, root)
}
