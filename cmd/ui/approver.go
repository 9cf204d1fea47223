package ui

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"AgentCore/pkg/engine/api"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"
)

// CLIApprover implements interactive tool confirmation for the terminal.
type CLIApprover struct {
	// Reader for input (defaults to os.Stdin)
	Reader *bufio.Reader
}

// NewCLIApprover creates a new CLI approver
func NewCLIApprover() *CLIApprover {
	return &CLIApprover{
		Reader: bufio.NewReader(os.Stdin),
	}
}

// Confirm prompts the user with an interactive approval UI.
func (c *CLIApprover) Confirm(ctx context.Context, call api.ToolCallRequest, details *api.ConfirmationDetails) (api.ConfirmationOutcome, error) {
	fmt.Println()
	fmt.Println("\033[33m╭──────────────────────────────────────────────────────────╮\033[0m")
	fmt.Println("\033[33m│\033[0m  \033[1;33m⚠️  Tool Action Requires Approval\033[0m                        \033[33m│\033[0m")
	fmt.Println("\033[33m╰──────────────────────────────────────────────────────────╯\033[0m")
	fmt.Println()

	if details != nil {
		fmt.Printf("\033[1m%s\033[0m\n", details.Title)
		if details.Description != "" {
			fmt.Printf("\033[1mDetails:\033[0m %s\n", details.Description)
		}
		if details.Command != "" {
			fmt.Printf("\033[1mCommand:\033[0m %s\n", details.Command)
		}
		if details.Diff != "" {
			fmt.Println()
			fmt.Println(details.Diff)
		}
	} else {
		fmt.Printf("\033[1mTool:\033[0m %s\n", call.Name)
		if len(call.Args) > 0 {
			fmt.Println("\033[1mArguments:\033[0m")
			for k, v := range call.Args {
				vStr := fmt.Sprintf("%v", v)
				if len(vStr) > 100 {
					vStr = vStr[:100] + "..."
				}
				fmt.Printf("  %s: %s\n", k, vStr)
			}
		}
	}

	fmt.Println()

	if err := ctx.Err(); err != nil {
		return api.OutcomeCancel, err
	}

	// Try interactive mode first
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return c.interactiveApproval()
	}

	// Fallback to a simple prompt
	return c.simpleApproval()
}

// interactiveApproval uses bubbletea for selection
func (c *CLIApprover) interactiveApproval() (api.ConfirmationOutcome, error) {
	model := initialApprovalModel()
	p := tea.NewProgram(model)

	finalModel, err := p.Run()
	if err != nil {
		return c.simpleApproval()
	}

	m, ok := finalModel.(approvalModel)
	if !ok || m.cancelled {
		fmt.Println("\033[31m✗ Rejected\033[0m")
		return api.OutcomeCancel, nil
	}

	return outcomeForSelection(m.selected), nil
}

// approvalModel is the bubbletea model for the approval prompt
type approvalModel struct {
	options   []string
	selected  int
	cancelled bool
	chosen    bool
}

func initialApprovalModel() approvalModel {
	return approvalModel{
		options:  []string{"Approve", "Reject", "Always approve this tool"},
		selected: 0,
	}
}

func (m approvalModel) Init() tea.Cmd {
	return nil
}

func (m approvalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.cancelled = true
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			} else {
				m.selected = len(m.options) - 1
			}
		case "down", "j":
			if m.selected < len(m.options)-1 {
				m.selected++
			} else {
				m.selected = 0
			}
		case "enter":
			m.chosen = true
			return m, tea.Quit
		case "a", "A":
			m.selected = 0
			m.chosen = true
			return m, tea.Quit
		case "r", "R":
			m.selected = 1
			m.chosen = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m approvalModel) View() string {
	s := strings.Builder{}

	for i, opt := range m.options {
		cursor := " "
		if m.selected == i {
			cursor = "❯"
		}

		checked := "☐"
		if m.selected == i {
			checked = "☑"
		}

		var line string
		if m.selected == i {
			switch i {
			case 0:
				line = fmt.Sprintf("%s \033[1;32m%s %s\033[0m", cursor, checked, opt)
			case 1:
				line = fmt.Sprintf("%s \033[1;31m%s %s\033[0m", cursor, checked, opt)
			case 2:
				line = fmt.Sprintf("%s \033[1;34m%s %s\033[0m", cursor, checked, opt)
			default:
				line = fmt.Sprintf("%s %s %s", cursor, checked, opt)
			}
		} else {
			line = fmt.Sprintf("  \033[2m%s %s\033[0m", checked, opt)
		}

		s.WriteString(line + "\n")
	}

	return s.String()
}

func outcomeForSelection(selected int) api.ConfirmationOutcome {
	switch selected {
	case 0:
		fmt.Println("\033[32m✓ Approved\033[0m")
		return api.OutcomeProceed
	case 1:
		fmt.Println("\033[31m✗ Rejected\033[0m")
		return api.OutcomeCancel
	case 2:
		fmt.Println("\033[34m✓ Always approving this tool\033[0m")
		return api.OutcomeProceedAlways
	}
	fmt.Println("\033[31m✗ Rejected\033[0m")
	return api.OutcomeCancel
}

// simpleApproval for non-interactive terminals
func (c *CLIApprover) simpleApproval() (api.ConfirmationOutcome, error) {
	fmt.Println("  (A)pprove  |  (R)eject  |  Always approve (all)")
	fmt.Print("\nChoice [A/r/all]: ")

	input, err := c.Reader.ReadString('\n')
	if err != nil {
		return api.OutcomeCancel, err
	}

	input = strings.TrimSpace(strings.ToLower(input))

	switch input {
	case "", "a", "approve", "y", "yes":
		fmt.Println("\033[32m✓ Approved\033[0m")
		return api.OutcomeProceed, nil
	case "r", "reject", "n", "no":
		fmt.Println("\033[31m✗ Rejected\033[0m")
		return api.OutcomeCancel, nil
	case "all", "always":
		fmt.Println("\033[34m✓ Always approving this tool\033[0m")
		return api.OutcomeProceedAlways, nil
	default:
		fmt.Println("\033[33m? Defaulting to Approve\033[0m")
		return api.OutcomeProceed, nil
	}
}
