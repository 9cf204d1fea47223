package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"AgentCore/pkg/engine/api"
)

// ReadFileTool reads file contents
type ReadFileTool struct {
	*BaseTool
	workspaceRoot string
	maxBytes      int64
}

// NewReadFileTool creates a new read_file tool
func NewReadFileTool(workspaceRoot string) *ReadFileTool {
	return &ReadFileTool{
		BaseTool: NewBaseTool(
			"read_file",
			"Read the contents of a file. Returns the file content as text. For large files, content may be truncated.",
			[]ParameterDef{
				{Name: "path", Type: "string", Description: "Path to the file to read (relative to workspace)", Required: true},
				{Name: "start_line", Type: "integer", Description: "Start line number (1-indexed, optional)", Required: false},
				{Name: "end_line", Type: "integer", Description: "End line number (1-indexed, inclusive, optional)", Required: false},
			},
			api.KindReadOnly,
		),
		workspaceRoot: workspaceRoot,
		maxBytes:      500 * 1024,
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args api.Args, onOutput func(string)) (api.ToolResult, error) {
	path := GetStringArg(args, "path", "")
	if path == "" {
		return errorResult(api.ErrToolArgsInvalid, "path is required"), nil
	}

	startLine := GetIntArg(args, "start_line", 0)
	endLine := GetIntArg(args, "end_line", 0)

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		return errorResult(api.ErrWorkspaceEscape, err.Error()), nil
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errorResult(api.ErrToolExecuteFailed, "file does not exist: "+path), nil
		}
		return errorResult(api.ErrToolExecuteFailed, err.Error()), nil
	}
	if info.IsDir() {
		return errorResult(api.ErrToolExecuteFailed, "path is a directory, not a file: "+path), nil
	}
	if info.Size() > t.maxBytes && startLine == 0 && endLine == 0 {
		return errorResult(api.ErrToolExecuteFailed, fmt.Sprintf(
			"file is too large (%s). Use start_line and end_line to read specific portions.",
			formatSize(info.Size()))), nil
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return errorResult(api.ErrToolExecuteFailed, err.Error()), nil
	}

	if startLine > 0 || endLine > 0 {
		lines := strings.Split(string(content), "\n")
		if startLine < 1 {
			startLine = 1
		}
		if endLine < startLine {
			endLine = len(lines)
		}
		if startLine > len(lines) {
			return errorResult(api.ErrToolExecuteFailed, fmt.Sprintf(
				"start_line (%d) exceeds file length (%d lines)", startLine, len(lines))), nil
		}
		if endLine > len(lines) {
			endLine = len(lines)
		}

		var result strings.Builder
		for i, line := range lines[startLine-1 : endLine] {
			result.WriteString(fmt.Sprintf("%4d: %s\n", startLine+i, line))
		}
		return successResult(result.String()), nil
	}

	contentStr := string(content)
	if int64(len(content)) > t.maxBytes {
		contentStr = contentStr[:t.maxBytes] + "\n\n... (content truncated)"
	}
	return successResult(contentStr), nil
}
