package upscale

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
)

// Command wraps an external tool. Whatever is not piped to the caller is
// captured so it can be logged when the tool fails.
type Command struct {
	cmd    *exec.Cmd
	name   string
	output bytes.Buffer
	stdin  io.WriteCloser
	stdout io.ReadCloser
}

func NewCommandContext(ctx context.Context, cmdName string, args ...string) *Command {
	cmd := exec.CommandContext(ctx, cmdName, args...)

	c := Command{cmd: cmd, name: cmdName + " " + strings.Join(args, " ")}
	return &c
}

func (c *Command) Name() string {
	return c.name
}

func (c *Command) GetStdin() (io.WriteCloser, error) {
	if c.stdin == nil {
		stdin, err := c.cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		c.stdin = stdin
	}
	return c.stdin, nil
}

func (c *Command) GetStdout() (io.ReadCloser, error) {
	if c.stdout == nil {
		stdout, err := c.cmd.StdoutPipe()
		if err != nil {
			return nil, err
		}
		c.stdout = stdout
	}
	return c.stdout, nil
}

func (c *Command) Start() error {
	if c.stdout == nil {
		c.cmd.Stdout = &c.output
	}
	c.cmd.Stderr = &c.output

	return c.cmd.Start()
}

func (c *Command) Wait() error {
	return c.cmd.Wait()
}

func (c *Command) CombinedOutput() (string, error) {
	if err := c.Start(); err != nil {
		return "", err
	}

	err := c.Wait()
	return c.GetOutput(), err
}

// Output runs the command and returns stdout alone, with stderr captured
// separately for diagnostics.
func (c *Command) Output() ([]byte, string, error) {
	var stdout bytes.Buffer
	c.cmd.Stdout = &stdout
	c.cmd.Stderr = &c.output

	err := c.cmd.Run()
	return stdout.Bytes(), c.GetOutput(), err
}

func (c *Command) GetOutput() string {
	return c.output.String()
}
