package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	buildErrors "github.com/maxkimambo/assetpipe/internal/errors"
	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/resource"
)

// materialize writes resources below p.Dest and returns the written paths
// relative to the project directory, in resource order.
func (r *Runner) materialize(p *Pipeline, resources []resource.Resource) ([]string, error) {
	if p.Dest == "" {
		return nil, nil
	}

	destDir := r.abs(p.Dest)
	written := make([]string, 0, len(resources))
	for _, res := range resources {
		rel := filepath.ToSlash(filepath.Join(p.Dest, filepath.FromSlash(res.Path())))

		data, err := res.Bytes()
		if err != nil {
			return written, buildErrors.NewDestinationWriteFailure(p.Task, rel, err)
		}
		target := filepath.Join(destDir, filepath.FromSlash(res.Path()))
		if err := writeAtomic(target, data); err != nil {
			return written, buildErrors.NewDestinationWriteFailure(p.Task, rel, err)
		}
		written = append(written, rel)
	}

	if len(written) > 0 {
		logger.User.Taskf("%s: wrote %d file(s) to %s", p.Task, len(written), p.Dest)
	}
	return written, nil
}

// writeAtomic writes data to a temporary file next to target and renames it
// into place, so readers never observe a partial file.
func writeAtomic(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return err
	}
	return os.Rename(tmpName, target)
}

// Clean removes paths recursively. Paths must lie strictly inside the
// project directory. Missing paths are not an error.
func (r *Runner) Clean(ctx context.Context, task string, paths []string) ([]string, error) {
	var removed []string
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := r.CheckInside(p); err != nil {
			return removed, buildErrors.NewInvalidTaskError(task, err.Error())
		}

		target := r.abs(p)
		if _, err := os.Lstat(target); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(target); err != nil {
			return removed, buildErrors.NewDestinationWriteFailure(task, p, err)
		}
		logger.User.Cleanf("%s: removed %s", task, p)
		removed = append(removed, p)
	}
	return removed, nil
}

// CheckInside verifies that p, relative to the project directory, names
// something strictly below it.
func (r *Runner) CheckInside(p string) error {
	if p == "" || filepath.IsAbs(p) {
		return fmt.Errorf("path %q must be relative to the project directory", p)
	}
	rel, err := filepath.Rel(r.projectDir, r.abs(p))
	if err != nil {
		return err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("refusing to touch %q outside the project directory", p)
	}
	return nil
}

func (r *Runner) abs(p string) string {
	return filepath.Join(r.projectDir, filepath.FromSlash(p))
}
