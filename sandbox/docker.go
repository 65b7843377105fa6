package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	containerWorkdir = "/work"
	stdinFile        = "stdin.txt"
	// Killed or removed containers get this long to report their exit.
	containerGrace = 5 * time.Second
)

// dockerAPI is the subset of the Docker client used by DockerToolchain.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerKill(ctx context.Context, containerID, signal string) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ImagePull(ctx context.Context, refStr string, options image.PullOptions) (io.ReadCloser, error)
}

// DockerToolchain compiles and runs programs inside short-lived containers.
// The workspace is bind-mounted at /work, so the Docker daemon must share
// the host filesystem with this process.
type DockerToolchain struct {
	api           dockerAPI
	image         string
	compiler      string
	flags         []string
	maxOutput     int
	memoryLimitMB int
	pidsLimit     int64
	logger        *slog.Logger
}

var _ Toolchain = (*DockerToolchain)(nil)

// DockerOption configures a DockerToolchain.
type DockerOption func(*DockerToolchain)

// WithDockerCompiler sets the compiler binary inside the image. Default: "gcc".
func WithDockerCompiler(bin string, flags ...string) DockerOption {
	return func(t *DockerToolchain) {
		t.compiler = bin
		t.flags = flags
	}
}

// WithDockerLimits sets per-container output, memory (MB) and process caps.
func WithDockerLimits(maxOutput, memoryLimitMB int, pids int64) DockerOption {
	return func(t *DockerToolchain) {
		t.maxOutput = maxOutput
		t.memoryLimitMB = memoryLimitMB
		t.pidsLimit = pids
	}
}

// WithDockerLogger sets the structured logger. Default: discard.
func WithDockerLogger(l *slog.Logger) DockerOption {
	return func(t *DockerToolchain) { t.logger = l }
}

// NewDockerToolchain connects to the Docker daemon configured by the
// environment (DOCKER_HOST and friends) and uses image for both stages.
func NewDockerToolchain(image string, opts ...DockerOption) (*DockerToolchain, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return newDockerToolchain(cli, image, opts...), nil
}

func newDockerToolchain(api dockerAPI, image string, opts ...DockerOption) *DockerToolchain {
	t := &DockerToolchain{
		api:       api,
		image:     image,
		compiler:  "gcc",
		maxOutput: 64 * 1024,
		pidsLimit: 64,
	}
	for _, o := range opts {
		o(t)
	}
	if t.logger == nil {
		t.logger = slog.New(slog.DiscardHandler)
	}
	return t
}

// Pull fetches the image. Containers fail to start until it is present.
func (t *DockerToolchain) Pull(ctx context.Context) error {
	rc, err := t.api.ImagePull(ctx, t.image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("docker pull %s: %w", t.image, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return fmt.Errorf("docker pull %s: %w", t.image, err)
	}
	return nil
}

func (t *DockerToolchain) Compile(ctx context.Context, dir string, timeout time.Duration) (ProcessResult, error) {
	cmd := append([]string{t.compiler, sourceFile, "-o", binaryFile}, t.flags...)
	return t.run(ctx, dir, cmd, timeout, 0)
}

func (t *DockerToolchain) Execute(ctx context.Context, dir string, stdin []byte, timeout time.Duration) (ProcessResult, error) {
	cmd := []string{"./" + binaryFile}
	if stdin != nil {
		if err := os.WriteFile(filepath.Join(dir, stdinFile), stdin, 0o640); err != nil {
			return ProcessResult{ExitCode: -1}, fmt.Errorf("write %s: %w", stdinFile, err)
		}
		cmd = []string{"sh", "-c", "exec ./" + binaryFile + " < " + stdinFile}
	}
	return t.run(ctx, dir, cmd, timeout, t.memoryLimitMB)
}

// run executes cmd in a fresh container and always removes it.
func (t *DockerToolchain) run(ctx context.Context, dir string, cmd []string, timeout time.Duration, memoryMB int) (ProcessResult, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ProcessResult{ExitCode: -1}, fmt.Errorf("workspace path: %w", err)
	}

	pids := t.pidsLimit
	hostCfg := &container.HostConfig{
		Binds:       []string{abs + ":" + containerWorkdir},
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:    int64(memoryMB) << 20,
			PidsLimit: &pids,
		},
	}
	created, err := t.api.ContainerCreate(ctx, &container.Config{
		Image:           t.image,
		Cmd:             cmd,
		WorkingDir:      containerWorkdir,
		NetworkDisabled: true,
	}, hostCfg, nil, nil, "")
	if err != nil {
		return ProcessResult{ExitCode: -1}, fmt.Errorf("docker create: %w", err)
	}
	id := created.ID
	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), containerGrace)
		defer cancel()
		if err := t.api.ContainerRemove(rmCtx, id, container.RemoveOptions{Force: true}); err != nil {
			t.logger.Warn("sandbox: remove container", "id", id, "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Wait must be registered before start so a fast exit is not missed.
	statusCh, errCh := t.api.ContainerWait(runCtx, id, container.WaitConditionNextExit)
	if err := t.api.ContainerStart(runCtx, id, container.StartOptions{}); err != nil {
		return ProcessResult{ExitCode: -1}, fmt.Errorf("docker start: %w", err)
	}

	var res ProcessResult
	select {
	case st := <-statusCh:
		if st.Error != nil {
			return ProcessResult{ExitCode: -1}, fmt.Errorf("docker wait: %s", st.Error.Message)
		}
		res.ExitCode = int(st.StatusCode)
	case err := <-errCh:
		if !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ProcessResult{ExitCode: -1}, fmt.Errorf("docker wait: %w", err)
		}
		res.TimedOut = true
	case <-runCtx.Done():
		if !errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ProcessResult{ExitCode: -1}, runCtx.Err()
		}
		res.TimedOut = true
	}

	if res.TimedOut {
		res.ExitCode = -1
		killCtx, cancel := context.WithTimeout(context.Background(), containerGrace)
		defer cancel()
		if err := t.api.ContainerKill(killCtx, id, "KILL"); err != nil {
			t.logger.Debug("sandbox: kill container", "id", id, "error", err)
		}
	}

	logCtx, cancelLogs := context.WithTimeout(context.Background(), containerGrace)
	defer cancelLogs()
	stdout, stderr, err := t.logs(logCtx, id)
	if err != nil {
		return ProcessResult{ExitCode: -1}, err
	}
	res.Stdout, res.Stderr = stdout, stderr
	return res, nil
}

func (t *DockerToolchain) logs(ctx context.Context, id string) (string, string, error) {
	rc, err := t.api.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", "", fmt.Errorf("docker logs: %w", err)
	}
	defer rc.Close()

	stdout := &limitedWriter{limit: t.maxOutput}
	stderr := &limitedWriter{limit: t.maxOutput}
	if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil {
		return "", "", fmt.Errorf("docker logs: %w", err)
	}
	return stdout.String(), stderr.String(), nil
}
