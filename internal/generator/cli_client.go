package generator

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CLIClient shells out to the claude CLI for local generation.
type CLIClient struct {
	cliPath string
}

func NewCLIClient(cliPath string) *CLIClient {
	if cliPath == "" {
		cliPath = "claude"
	}
	return &CLIClient{cliPath: cliPath}
}

func (c *CLIClient) args(req Request) []string {
	return []string{
		"--print",
		"--output-format", "text",
		"--system-prompt", req.System,
		"--max-turns", "1",
	}
}

func (c *CLIClient) Generate(ctx context.Context, req Request) (*LLMResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	cmd := exec.CommandContext(ctx, c.cliPath, c.args(req)...)
	cmd.Stdin = strings.NewReader(req.User)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("claude CLI error: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	responseText := strings.TrimSpace(stdout.String())
	if responseText == "" {
		return nil, fmt.Errorf("claude CLI returned empty response")
	}

	return &LLMResponse{Content: responseText}, nil
}
