package discovery

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"

	"go.uber.org/zap"
)

// externalLine matches masscan's greppable-ish output shape:
// "Host: <ip> () Ports: <port>/open/tcp//"
var externalLine = regexp.MustCompile(`Host:\s*(\S+)\s*\(\)\s*Ports:\s*(\d+)/open/tcp`)

// ExternalGenerator wraps a masscan-compatible subprocess, parsing its
// stdout line by line and terminating the stream when the subprocess
// exits. It has no way to know the target count ahead of time, so
// Estimate always reports unknown, per spec.md §4.5.
type ExternalGenerator struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	log     *zap.Logger

	started bool
	done    bool
}

// NewExternal builds a generator around the given command and argument
// list (e.g. masscan binary path plus its CIDR/port/rate flags). The
// subprocess is not started until the first call to Next.
func NewExternal(name string, args []string, log *zap.Logger) *ExternalGenerator {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExternalGenerator{
		cmd: exec.Command(name, args...),
		log: log,
	}
}

func (g *ExternalGenerator) start(ctx context.Context) error {
	g.cmd = exec.CommandContext(ctx, g.cmd.Path, g.cmd.Args[1:]...)
	stdout, err := g.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("discovery: external generator stdout pipe: %w", err)
	}
	if err := g.cmd.Start(); err != nil {
		return fmt.Errorf("discovery: starting external scanner: %w", err)
	}
	g.scanner = bufio.NewScanner(stdout)
	g.started = true
	return nil
}

func (g *ExternalGenerator) Next(ctx context.Context) (Target, bool, error) {
	if g.done {
		return Target{}, false, nil
	}
	if !g.started {
		if err := g.start(ctx); err != nil {
			g.done = true
			return Target{}, false, err
		}
	}

	for g.scanner.Scan() {
		line := g.scanner.Text()
		m := externalLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		port, err := strconv.Atoi(m[2])
		if err != nil {
			g.log.Warn("external scanner produced unparseable port", zap.String("line", line))
			continue
		}
		return Target{IP: m[1], Port: port}, true, nil
	}

	if err := g.scanner.Err(); err != nil && err != io.EOF {
		g.done = true
		_ = g.cmd.Wait()
		return Target{}, false, fmt.Errorf("discovery: reading external scanner output: %w", err)
	}

	g.done = true
	if err := g.cmd.Wait(); err != nil {
		g.log.Warn("external scanner exited with error", zap.Error(err))
	}
	return Target{}, false, nil
}

func (g *ExternalGenerator) Estimate() (int64, bool) {
	return 0, false
}
