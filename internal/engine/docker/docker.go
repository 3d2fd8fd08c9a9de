// Package docker runs the document engine inside sandboxed Docker
// containers.
//
// Each call takes a warm container from a Pool, runs the engine command in
// it with `docker exec`, writes one JSON request to the command's stdin and
// reads one JSON response from its stdout. The container is removed
// afterwards, so no state survives between calls.
//
//	request:  {"op":"validate","content":"..."}
//	response: {"ok":true,"report":{...}}
//	          {"ok":true,"output":"..."}
//	          {"ok":false,"error":"..."}
package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/chrisokchen/bbdsl-platform/internal/engine"
)

const (
	opValidate = "validate"
	opExport   = "export"
	opDiff     = "diff"
)

type request struct {
	Op       string                `json:"op"`
	Content  string                `json:"content"`
	ContentB string                `json:"content_b,omitempty"`
	Format   string                `json:"format,omitempty"`
	Export   *engine.ExportOptions `json:"export,omitempty"`
	Diff     *engine.DiffOptions   `json:"diff,omitempty"`
}

type response struct {
	OK     bool          `json:"ok"`
	Error  string        `json:"error,omitempty"`
	Report engine.Report `json:"report,omitempty"`
	Output string        `json:"output,omitempty"`
}

// Engine implements engine.Engine on top of Docker.
type Engine struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

var _ engine.Engine = (*Engine)(nil)

// New connects to the Docker daemon, makes sure the engine image is present
// and starts the container pool.
func New(cfg Config, logger *slog.Logger) (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring engine image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		cli.Close()
		return nil, fmt.Errorf("failed to pull image %s: %w", cfg.Image, err)
	}
	// The pull only finishes once the progress stream is drained.
	_, _ = io.Copy(io.Discard, reader)
	reader.Close()
	logger.Info("engine image is ready")

	e := &Engine{
		cli:    cli,
		config: cfg,
		logger: logger,
		pool:   NewPool(cli, cfg, logger),
	}
	e.pool.Start()
	return e, nil
}

// Close stops the pool and the Docker client.
func (e *Engine) Close() error {
	e.pool.Stop()
	return e.cli.Close()
}

func (e *Engine) Validate(ctx context.Context, text string) (engine.Report, error) {
	resp, err := e.call(ctx, request{Op: opValidate, Content: text})
	if err != nil {
		return nil, err
	}
	return resp.Report, nil
}

func (e *Engine) Export(ctx context.Context, text, format string, opts engine.ExportOptions) (string, error) {
	resp, err := e.call(ctx, request{Op: opExport, Content: text, Format: format, Export: &opts})
	if err != nil {
		return "", err
	}
	return resp.Output, nil
}

func (e *Engine) Diff(ctx context.Context, textA, textB string, opts engine.DiffOptions) (engine.Report, error) {
	resp, err := e.call(ctx, request{Op: opDiff, Content: textA, ContentB: textB, Diff: &opts})
	if err != nil {
		return nil, err
	}
	return resp.Report, nil
}

// call runs one request in a fresh container. The whole exchange, including
// waiting for a container, is bounded by the configured timeout.
func (e *Engine) call(ctx context.Context, req request) (*response, error) {
	start := time.Now()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding engine request: %w", err)
	}
	payload = append(payload, '\n')

	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	containerID, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, unavailable("no engine container ready", err)
	}
	defer e.pool.Remove(containerID)

	execResp, err := e.cli.ContainerExecCreate(ctx, containerID, container.ExecOptions{
		AttachStdin:  true,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          e.config.Command,
	})
	if err != nil {
		return nil, unavailable("creating exec", err)
	}

	attach, err := e.cli.ContainerExecAttach(ctx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, unavailable("attaching to exec", err)
	}
	defer attach.Close()

	if _, err := attach.Conn.Write(payload); err != nil {
		return nil, unavailable("writing request", err)
	}
	if err := attach.CloseWrite(); err != nil {
		return nil, unavailable("closing stdin", err)
	}

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return nil, unavailable("reading response", err)
		}
	case <-ctx.Done():
		e.logger.Warn("engine call timed out",
			slog.String("op", req.Op),
			slog.Duration("timeout", e.config.Timeout),
		)
		return nil, unavailable("timed out", ctx.Err())
	}

	exitCode := 0
	if inspect, err := e.cli.ContainerExecInspect(ctx, execResp.ID); err == nil {
		exitCode = inspect.ExitCode
	}

	e.logger.Debug("engine call finished",
		slog.String("op", req.Op),
		slog.Int("exit_code", exitCode),
		slog.Duration("duration", time.Since(start)),
	)
	return decodeResponse(stdout.Bytes(), stderr.Bytes(), exitCode)
}

// decodeResponse turns the command's output into a response. A response
// with ok=false is the engine refusing the document; anything that is not
// a response at all means the engine itself is broken.
func decodeResponse(stdout, stderr []byte, exitCode int) (*response, error) {
	out := bytes.TrimSpace(stdout)
	if len(out) == 0 {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = "no output"
		}
		return nil, fmt.Errorf("%w: engine exited with code %d: %s", engine.ErrUnavailable, exitCode, msg)
	}

	var resp response
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed engine response: %v", engine.ErrUnavailable, err)
	}
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "unknown error"
		}
		return nil, &engine.InputError{Message: msg}
	}
	return &resp, nil
}

func unavailable(what string, err error) error {
	return fmt.Errorf("%w: %s: %v", engine.ErrUnavailable, what, err)
}
