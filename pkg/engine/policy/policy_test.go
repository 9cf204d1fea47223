package policy

import (
	"context"
	"errors"
	"testing"

	"AgentCore/pkg/engine/api"
)

type fakeTool struct {
	name string
	kind api.ToolKind
}

func (t fakeTool) Name() string       { return t.name }
func (t fakeTool) Kind() api.ToolKind { return t.kind }

func TestNeedConfirmationByMode(t *testing.T) {
	p := NewDefaultPolicy()
	reader := fakeTool{"read_file", api.KindReadOnly}
	writer := fakeTool{"write_file", api.KindMutator}

	cases := []struct {
		name string
		mode api.ApprovalMode
		tool Tool
		want bool
	}{
		{"suggest confirms reads", api.ModeSuggest, reader, true},
		{"suggest confirms writes", api.ModeSuggest, writer, true},
		{"auto passes reads", api.ModeAuto, reader, false},
		{"auto confirms writes", api.ModeAuto, writer, true},
		{"full-auto passes writes", api.ModeFullAuto, writer, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := p.NeedConfirmation(context.Background(), Context{ApprovalMode: tc.mode}, tc.tool, nil)
			if got != tc.want {
				t.Errorf("NeedConfirmation = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNeedConfirmationDangerousShell(t *testing.T) {
	p := NewDefaultPolicy()
	shell := fakeTool{"shell", api.KindMutator}
	pctx := Context{ApprovalMode: api.ModeAuto}

	args := api.Args{"command": "sudo systemctl restart nginx"}
	if !p.NeedConfirmation(context.Background(), pctx, shell, args) {
		t.Error("dangerous command should require confirmation")
	}
}

func TestValidateAllowedToolsRestriction(t *testing.T) {
	p := NewDefaultPolicy()
	pctx := Context{AllowedTools: []string{"read_file"}}

	if err := p.Validate(context.Background(), pctx, fakeTool{"read_file", api.KindReadOnly}, nil); err != nil {
		t.Errorf("allowed tool rejected: %v", err)
	}

	err := p.Validate(context.Background(), pctx, fakeTool{"shell", api.KindMutator}, nil)
	var perr *PolicyError
	if !errors.As(err, &perr) || perr.Code != api.ErrPolicyDenied {
		t.Fatalf("got %v, want policy_denied", err)
	}
}

func TestValidateWorkspaceBoundary(t *testing.T) {
	p := NewDefaultPolicy()
	pctx := Context{WorkspaceRoot: "/work/project"}
	tool := fakeTool{"write_file", api.KindMutator}

	if err := p.Validate(context.Background(), pctx, tool, api.Args{"path": "src/main.go"}); err != nil {
		t.Errorf("relative in-workspace path rejected: %v", err)
	}
	if err := p.Validate(context.Background(), pctx, tool, api.Args{"path": "/work/project/sub/file"}); err != nil {
		t.Errorf("absolute in-workspace path rejected: %v", err)
	}

	err := p.Validate(context.Background(), pctx, tool, api.Args{"path": "../outside"})
	var perr *PolicyError
	if !errors.As(err, &perr) || perr.Code != api.ErrWorkspaceEscape {
		t.Fatalf("escape got %v, want workspace_escape", err)
	}

	if err := p.Validate(context.Background(), pctx, tool, api.Args{"path": "/etc/passwd"}); err == nil {
		t.Error("absolute path outside workspace should be denied")
	}
}
