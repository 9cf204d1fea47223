package tools

import (
	"context"
	"os"
	"path/filepath"

	"AgentCore/pkg/engine/api"
)

// WriteFileTool creates or overwrites files
type WriteFileTool struct {
	*BaseTool
	workspaceRoot string
}

// NewWriteFileTool creates a new write_file tool
func NewWriteFileTool(workspaceRoot string) *WriteFileTool {
	return &WriteFileTool{
		BaseTool: NewBaseTool(
			"write_file",
			"Create a new file or overwrite an existing file with the specified content. Creates parent directories if needed.",
			[]ParameterDef{
				{Name: "path", Type: "string", Description: "Path to the file to create/overwrite (relative to workspace)", Required: true},
				{Name: "content", Type: "string", Description: "Content to write to the file", Required: true},
			},
			api.KindMutator,
		),
		workspaceRoot: workspaceRoot,
	}
}

func (t *WriteFileTool) ShouldConfirm(ctx context.Context, args api.Args) (*api.ConfirmationDetails, error) {
	path := GetStringArg(args, "path", "")
	content := GetStringArg(args, "content", "")
	if len(content) > 1000 {
		content = content[:1000] + "\n... (truncated)"
	}
	return &api.ConfirmationDetails{
		Title:       "Write file: " + path,
		Description: "This operation creates or overwrites a file on disk.",
		Diff:        content,
	}, nil
}

func (t *WriteFileTool) Execute(ctx context.Context, args api.Args, onOutput func(string)) (api.ToolResult, error) {
	path := GetStringArg(args, "path", "")
	if path == "" {
		return errorResult(api.ErrToolArgsInvalid, "path is required"), nil
	}
	content := GetStringArg(args, "content", "")

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		return errorResult(api.ErrWorkspaceEscape, err.Error()), nil
	}

	_, statErr := os.Stat(absPath)
	fileExists := statErr == nil

	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return errorResult(api.ErrToolExecuteFailed, "failed to create directory: "+err.Error()), nil
	}
	if err := os.WriteFile(absPath, []byte(content), 0644); err != nil {
		return errorResult(api.ErrToolExecuteFailed, err.Error()), nil
	}

	if fileExists {
		return successResult("File overwritten: " + path), nil
	}
	return successResult("File created: " + path), nil
}
