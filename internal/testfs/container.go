//go:build e2e

package testfs

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// Container is a disposable Alpine sandbox one tmpfs volume per testfs.Volume
// is mounted into, so each Volume gets a distinct st_dev and the binary under
// test can be exercised against genuine mount-point boundaries (which it
// reports as EXDEV and does not descend) that a single shared filesystem can
// never reproduce.
type Container struct {
	cli *client.Client
	id  string
}

// NewContainer pulls cfg.Image if needed, then creates and starts a
// container from cfg/hostCfg. The caller must call Close when done.
func NewContainer(ctx context.Context, cfg *container.Config, hostCfg *container.HostConfig) (*Container, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if err := ensureImage(ctx, cli, cfg.Image); err != nil {
		cli.Close()
		return nil, err
	}

	resp, err := cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, "")
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("create container: %w", err)
	}
	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		cli.Close()
		return nil, fmt.Errorf("start container: %w", err)
	}

	return &Container{cli: cli, id: resp.ID}, nil
}

// ensureImage pulls name, relying on the local image cache to make repeat
// test runs fast after the first pull.
func ensureImage(ctx context.Context, cli *client.Client, name string) error {
	reader, err := cli.ImagePull(ctx, name, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", name, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// Run execs cmd inside the container, feeding it stdin if non-nil, and
// reports its stdout, stderr and exit code. This is the only way
// this harness talks to the container: both the "sow" and "reap"
// testfs-helper subcommands and the dupedog binary itself run through it.
func (c *Container) Run(ctx context.Context, cmd []string, stdin []byte) (stdout, stderr string, exitCode int, err error) {
	exec, err := c.cli.ContainerExecCreate(ctx, c.id, container.ExecOptions{
		Cmd:          cmd,
		AttachStdin:  stdin != nil,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", "", 0, fmt.Errorf("exec create: %w", err)
	}

	conn, err := c.cli.ContainerExecAttach(ctx, exec.ID, container.ExecStartOptions{})
	if err != nil {
		return "", "", 0, fmt.Errorf("exec attach: %w", err)
	}
	defer conn.Close()

	if stdin != nil {
		if _, err := conn.Conn.Write(stdin); err != nil {
			return "", "", 0, fmt.Errorf("write stdin: %w", err)
		}
		if err := conn.CloseWrite(); err != nil {
			return "", "", 0, fmt.Errorf("close stdin: %w", err)
		}
	}

	var outBuf, errBuf bytes.Buffer
	_, _ = stdcopy.StdCopy(&outBuf, &errBuf, conn.Reader)

	inspect, err := c.cli.ContainerExecInspect(ctx, exec.ID)
	if err != nil {
		return "", "", 0, fmt.Errorf("exec inspect: %w", err)
	}

	return outBuf.String(), errBuf.String(), inspect.ExitCode, nil
}

// Close stops the container (AutoRemove in hostCfg deletes it) and releases
// the Docker client.
func (c *Container) Close(ctx context.Context) error {
	if c.cli == nil {
		return nil
	}
	defer c.cli.Close()
	return c.cli.ContainerStop(ctx, c.id, container.StopOptions{})
}
