package tools

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"AgentCore/pkg/engine/api"
)

// ListDirTool lists directory contents
type ListDirTool struct {
	*BaseTool
	workspaceRoot string
}

// NewListDirTool creates a new list_dir tool
func NewListDirTool(workspaceRoot string) *ListDirTool {
	return &ListDirTool{
		BaseTool: NewBaseTool(
			"list_dir",
			"List the contents of a directory. Directories are suffixed with a slash.",
			[]ParameterDef{
				{Name: "path", Type: "string", Description: "Directory path (relative to workspace, defaults to workspace root)", Required: false},
			},
			api.KindReadOnly,
		),
		workspaceRoot: workspaceRoot,
	}
}

func (t *ListDirTool) Execute(ctx context.Context, args api.Args, onOutput func(string)) (api.ToolResult, error) {
	path := GetStringArg(args, "path", ".")

	absPath, err := resolvePathInWorkspace(t.workspaceRoot, path)
	if err != nil {
		return errorResult(api.ErrWorkspaceEscape, err.Error()), nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return errorResult(api.ErrToolExecuteFailed, "directory does not exist: "+path), nil
		}
		return errorResult(api.ErrToolExecuteFailed, err.Error()), nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return successResult("<empty directory>"), nil
	}
	return successResult(fmt.Sprintf("%s (%d entries)\n%s", path, len(names), strings.Join(names, "\n"))), nil
}
