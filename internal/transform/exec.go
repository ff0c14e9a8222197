package transform

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/maxkimambo/assetpipe/internal/logger"
	"github.com/maxkimambo/assetpipe/internal/resource"
)

// Exec pipes every selected resource through an external command: content on
// stdin, stdout becomes the new content. Arguments may use {{path}} and
// {{source}}. "extname" renames outputs, "dir" sets the working directory
// relative to the project, "env" adds environment variables and "kinds"
// restricts the inputs.
func Exec(ctx context.Context, in []resource.Resource, cfg Config) ([]resource.Resource, error) {
	command, err := cfg.Strings("command")
	if err != nil {
		return nil, err
	}
	if len(command) == 0 || command[0] == "" {
		return nil, fmt.Errorf("exec requires a command")
	}
	extname, err := cfg.String("extname", "")
	if err != nil {
		return nil, err
	}
	dir, err := cfg.String("dir", "")
	if err != nil {
		return nil, err
	}
	env, err := cfg.StringMap("env")
	if err != nil {
		return nil, err
	}
	kinds, err := cfg.Strings("kinds")
	if err != nil {
		return nil, err
	}

	workDir := cfg.Dir()
	if dir != "" {
		if filepath.IsAbs(dir) || workDir == "" {
			workDir = dir
		} else {
			workDir = filepath.Join(workDir, dir)
		}
	}

	selected := selectKinds(kinds)
	out := make([]resource.Resource, 0, len(in))
	for _, r := range in {
		if !selected(r) {
			out = append(out, r)
			continue
		}
		data, err := r.Bytes()
		if err != nil {
			return nil, err
		}

		expand := strings.NewReplacer("{{path}}", r.Path(), "{{source}}", r.Meta().Source)
		args := make([]string, len(command)-1)
		for i, a := range command[1:] {
			args[i] = expand.Replace(a)
		}

		result, err := run(ctx, workDir, env, command[0], args, data)
		if err != nil {
			return nil, fmt.Errorf("%s on %s: %w", command[0], r.Path(), err)
		}

		next := r.WithBytes(result)
		if extname != "" {
			p := r.Path()
			next = next.WithPath(strings.TrimSuffix(p, path.Ext(p)) + extname)
		}
		out = append(out, next)
	}
	return out, nil
}

func run(ctx context.Context, dir string, env map[string]string, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(stdin)

	if len(env) > 0 {
		keys := make([]string, 0, len(env))
		for k := range env {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		cmd.Env = os.Environ()
		for _, k := range keys {
			cmd.Env = append(cmd.Env, k+"="+env[k])
		}
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Op.WithFields(map[string]interface{}{
		"command": name,
		"args":    args,
		"dir":     dir,
	}).Debug("Running external transformer")

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
