package sysinfo

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Compose controls services through the docker or podman compose CLI. The
// compose directory must have passed path validation before a Compose is
// constructed; it is used verbatim as the working directory.
type Compose struct {
	dir     string
	runtime string // "docker" or "podman"
	log     *slog.Logger
}

// NewCompose creates a controller for the compose project in dir.
func NewCompose(dir, runtime string, log *slog.Logger) *Compose {
	if log == nil {
		log = slog.Default()
	}
	return &Compose{dir: dir, runtime: runtime, log: log}
}

func (c *Compose) command(ctx context.Context, args ...string) *exec.Cmd {
	var cmd *exec.Cmd
	switch c.runtime {
	case "podman":
		cmd = exec.CommandContext(ctx, "podman-compose", args...)
	default:
		cmd = exec.CommandContext(ctx, "docker", append([]string{"compose"}, args...)...)
	}
	cmd.Dir = c.dir
	return cmd
}

func (c *Compose) run(ctx context.Context, args ...string) error {
	cmd := c.command(ctx, args...)
	c.log.Info("compose", "runtime", c.runtime, "args", args, "dir", c.dir)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("compose %v: %w (%s)", args, err, string(out))
	}
	return nil
}

// Restart stops then starts a service; an empty service name targets the
// whole stack.
func (c *Compose) Restart(ctx context.Context, service string) error {
	stop := []string{"stop"}
	start := []string{"start"}
	if service != "" {
		stop = append(stop, service)
		start = append(start, service)
	}
	if err := c.run(ctx, stop...); err != nil {
		return err
	}
	return c.run(ctx, start...)
}

// Recreate tears containers down and brings them back up. An empty service
// name recreates the whole stack (down + up); a named service is
// force-recreated in place.
func (c *Compose) Recreate(ctx context.Context, service string) error {
	if service == "" {
		if err := c.run(ctx, "down"); err != nil {
			return err
		}
		return c.run(ctx, "up", "-d")
	}
	return c.run(ctx, "up", "-d", "--force-recreate", service)
}
