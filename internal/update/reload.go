package update

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
)

// Reloader restarts the application on the installed binary.
type Reloader interface {
	Reload(ctx context.Context, binaryPath string) error
}

// ExecReloader replaces the current process image. On success it does not
// return.
type ExecReloader struct {
	Args []string // argv for the new image; defaults to os.Args
	Env  []string // defaults to os.Environ()

	exec func(argv0 string, argv []string, envv []string) error
}

func (r *ExecReloader) Reload(ctx context.Context, binaryPath string) error {
	args := r.Args
	if len(args) == 0 {
		args = os.Args
	}
	env := r.Env
	if env == nil {
		env = os.Environ()
	}
	execFn := r.exec
	if execFn == nil {
		execFn = syscall.Exec
	}
	if err := execFn(binaryPath, args, env); err != nil {
		return fmt.Errorf("exec %s: %w", binaryPath, err)
	}
	return nil
}

// CommandRunner abstracts exec.Command calls for testability.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// CommandReloader restarts a managed application with a shell command,
// e.g. "systemctl restart myapp". {binary} expands to the binary path.
type CommandReloader struct {
	Command string
	Runner  CommandRunner
}

func (r *CommandReloader) Reload(ctx context.Context, binaryPath string) error {
	if strings.TrimSpace(r.Command) == "" {
		return fmt.Errorf("no reload command configured")
	}
	runner := r.Runner
	if runner == nil {
		runner = execRunner{}
	}
	cmdline := strings.ReplaceAll(r.Command, "{binary}", binaryPath)
	out, err := runner.Run(ctx, "sh", "-c", cmdline)
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("reload command failed: %w: %s", err, msg)
		}
		return fmt.Errorf("reload command failed: %w", err)
	}
	return nil
}
