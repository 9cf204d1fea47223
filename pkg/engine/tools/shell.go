package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"AgentCore/pkg/engine/api"
)

// ShellTool executes shell commands
type ShellTool struct {
	*BaseTool
	workspaceRoot  string
	timeout        time.Duration
	maxOutputBytes int
}

// NewShellTool creates a new shell tool
func NewShellTool(workspaceRoot string) *ShellTool {
	return &ShellTool{
		BaseTool: NewBaseTool(
			"shell",
			"Execute a shell command in the workspace. Use for running build commands, tests, git operations, or any CLI tools.",
			[]ParameterDef{
				{Name: "command", Type: "string", Description: "Shell command to execute", Required: true},
				{Name: "timeout", Type: "integer", Description: "Timeout in seconds (default: 120)", Required: false},
			},
			api.KindMutator,
		),
		workspaceRoot:  workspaceRoot,
		timeout:        120 * time.Second,
		maxOutputBytes: 100 * 1024,
	}
}

func (t *ShellTool) ShouldConfirm(ctx context.Context, args api.Args) (*api.ConfirmationDetails, error) {
	command := GetStringArg(args, "command", "")
	return &api.ConfirmationDetails{
		Title:       "Execute shell command",
		Description: "Runs in " + t.workspaceRoot,
		Command:     command,
	}, nil
}

func (t *ShellTool) Execute(ctx context.Context, args api.Args, onOutput func(string)) (api.ToolResult, error) {
	command := GetStringArg(args, "command", "")
	if command == "" {
		return errorResult(api.ErrToolArgsInvalid, "command is required"), nil
	}

	timeoutSecs := GetIntArg(args, "timeout", 120)
	timeout := time.Duration(timeoutSecs) * time.Second
	if timeout > 300*time.Second {
		timeout = 300 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = t.workspaceRoot

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var output strings.Builder
	if stdout.Len() > 0 {
		stdoutStr := stdout.String()
		if len(stdoutStr) > t.maxOutputBytes {
			stdoutStr = stdoutStr[:t.maxOutputBytes] + "\n\n... (stdout truncated)"
		}
		output.WriteString(stdoutStr)
	}
	if stderr.Len() > 0 {
		stderrStr := stderr.String()
		if len(stderrStr) > t.maxOutputBytes/2 {
			stderrStr = stderrStr[:t.maxOutputBytes/2] + "\n\n... (stderr truncated)"
		}
		for _, line := range strings.Split(strings.TrimSpace(stderrStr), "\n") {
			output.WriteString("[stderr] " + line + "\n")
		}
	}
	if onOutput != nil && output.Len() > 0 {
		onOutput(output.String())
	}

	if ctx.Err() == context.DeadlineExceeded {
		return api.ToolResult{
			Content:   output.String() + fmt.Sprintf("\n\nError: Command timed out after %d seconds", timeoutSecs),
			Error:     "timeout",
			ErrorKind: api.ErrToolExecuteFailed,
		}, nil
	}
	if err != nil {
		exitCode := -1
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		}
		return api.ToolResult{
			Content:   output.String() + fmt.Sprintf("\n\nExit code: %d", exitCode),
			Error:     fmt.Sprintf("exit code %d", exitCode),
			ErrorKind: api.ErrToolExecuteFailed,
		}, nil
	}

	if output.Len() == 0 {
		return successResult("<command completed with no output>"), nil
	}
	return successResult(output.String()), nil
}
