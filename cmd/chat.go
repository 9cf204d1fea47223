package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"AgentCore/cmd/ui"
	"AgentCore/pkg/engine/api"
	"AgentCore/pkg/engine/llm"
	"AgentCore/pkg/engine/policy"
	"AgentCore/pkg/engine/prompts"
	"AgentCore/pkg/engine/runtime"
	"AgentCore/pkg/engine/scheduler"
	"AgentCore/pkg/engine/store"
	"AgentCore/pkg/engine/telemetry"
	"AgentCore/pkg/engine/tools"
	"AgentCore/pkg/logger"
)

// fallbackModel is the cheaper model switched to after sustained quota
// pressure on the configured one.
const fallbackModel = "gemini-2.5-flash"

var fullAutoFlag bool

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().BoolVar(&fullAutoFlag, "full-auto", false, "Run every tool call without asking for approval")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if fullAutoFlag {
		cfg.ApprovalMode = string(api.ModeFullAuto)
	}

	client, err := llm.NewGeminiClientFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("initializing model client (is GEMINI_API_KEY set?): %w", err)
	}

	agent, orch := buildAgent(client)

	printChatBanner(cfg.Model, cfg.WorkspaceRoot, cfg.ApprovalMode)

	var inputHistory []string
	for {
		in, err := ui.ReadInputWithHistory("\n💬 You: ", inputHistory)
		if err != nil {
			return fmt.Errorf("input error: %w", err)
		}
		if in.Cancelled {
			return nil
		}

		text := strings.TrimSpace(in.Value)
		if text == "" {
			continue
		}
		if len(inputHistory) == 0 || inputHistory[len(inputHistory)-1] != text {
			inputHistory = append(inputHistory, text)
		}

		switch strings.ToLower(text) {
		case "/quit", "/exit", "/q":
			fmt.Println("\nGoodbye.")
			return nil
		case "/help", "/?":
			fmt.Println("\nCommands:")
			for _, c := range ui.DefaultCommands {
				fmt.Printf("  %-10s %s\n", c.Name, c.Description)
			}
			continue
		case "/stats":
			fmt.Printf("\nHistory entries: %d (curated: %d)\n",
				orch.History().Len(), len(orch.History().Curated()))
			continue
		case "/compress":
			fmt.Println("\n🔄 Compressing conversation history...")
			orch.Compressor().ResetFailure()
			info, err := orch.Compressor().TryCompress(ctx, cfg.Model, "manual", true)
			if err != nil {
				fmt.Printf("❌ Compression failed: %v\n", err)
			} else {
				fmt.Printf("✅ %s: %d → %d tokens\n", info.Status, info.OriginalTokenCount, info.NewTokenCount)
			}
			continue
		}

		reason, err := runTurn(ctx, agent, text)
		if err != nil {
			fmt.Printf("\n❌ Error: %v\n", err)
			continue
		}
		if reason != "stop" && reason != "" {
			fmt.Printf("\n⏹  Turn ended: %s\n", reason)
		}
	}
}

// buildAgent wires the registry, scheduler and orchestrator from the
// resolved config.
func buildAgent(client llm.Client) (*runtime.Agent, *runtime.Orchestrator) {
	registry := tools.NewRegistry()
	registry.MustRegister(tools.NewReadFileTool(cfg.WorkspaceRoot))
	registry.MustRegister(tools.NewWriteFileTool(cfg.WorkspaceRoot))
	registry.MustRegister(tools.NewListDirTool(cfg.WorkspaceRoot))
	registry.MustRegister(tools.NewShellTool(cfg.WorkspaceRoot))

	loader := prompts.NewLoader(cfg.WorkspaceRoot)

	orch := runtime.NewOrchestrator(runtime.Options{
		Client:            client,
		Registry:          registry,
		Loader:            loader,
		Sink:              telemetry.LogSink{},
		EventLog:          store.NewMemoryEventLog(),
		Model:             cfg.Model,
		SystemInstruction: loader.Get(prompts.System),
		AuthMode:          cfg.AuthMode,
		MaxSessionTurns:   cfg.MaxSessionTurns,
		RetryPolicy: llm.RetryPolicy{
			MaxAttempts:             cfg.Retry.MaxAttempts,
			InitialDelayMS:          cfg.Retry.InitialDelayMS,
			BackoffFactor:           cfg.Retry.BackoffFactor,
			MaxDelayMS:              cfg.Retry.MaxDelayMS,
			Jitter:                  true,
			Consecutive429Threshold: cfg.Retry.Consecutive429Threshold,
		},
		Fallback: quotaFallback,
	})
	orch.Compressor().TokenThreshold = cfg.Compression.TokenThreshold
	orch.Compressor().PreserveFraction = cfg.Compression.PreserveFraction

	sched := scheduler.New(scheduler.Options{
		Registry: registry,
		PolicyContext: policy.Context{
			ApprovalMode:  cfg.GetApprovalMode(),
			WorkspaceRoot: cfg.WorkspaceRoot,
		},
		Confirmer: ui.NewCLIApprover(),
		OnUpdate:  printToolUpdate,
	})

	agent := runtime.NewAgent(orch, sched)
	return agent, orch
}

// runTurn drives one user message, showing a spinner until the first event
// arrives.
func runTurn(ctx context.Context, agent *runtime.Agent, text string) (string, error) {
	stop, done := ui.StartLoading("Thinking...")
	var once sync.Once
	stopSpinner := func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}
	defer stopSpinner()

	agent.OnEvent = func(e api.Event) {
		stopSpinner()
		printEvent(e)
	}
	return agent.Run(ctx, text)
}

// quotaFallback downgrades to the flash model after sustained 429s, once.
func quotaFallback(ctx context.Context, attemptedModel, authMode string, err error) (string, bool) {
	if attemptedModel == fallbackModel {
		return "", false
	}
	logger.Warn("Chat", "Quota exhausted, switching model", map[string]any{
		"from": attemptedModel,
		"to":   fallbackModel,
	})
	ui.Printf("\n⚠️  Quota exhausted on %s, falling back to %s\n", attemptedModel, fallbackModel)
	return fallbackModel, true
}

var contentPrefixPrinted bool

func printEvent(e api.Event) {
	switch e.Type {
	case api.EventThought:
		if e.Thought != nil && strings.TrimSpace(e.Thought.Text) != "" {
			ui.Printf("\n🤔 %s\n", e.Thought.Text)
		}

	case api.EventContent:
		if e.Content == nil || e.Content.Text == "" {
			return
		}
		if !contentPrefixPrinted {
			ui.Print("\n🤖 Agent: ")
			contentPrefixPrinted = true
		}
		ui.Print(e.Content.Text)

	case api.EventToolCallRequest:
		if e.ToolCallRequest != nil {
			ui.Printf("\n\n🔧 tool_call %s\n", e.ToolCallRequest.Name)
		}

	case api.EventChatCompressed:
		if e.Compression != nil {
			ui.Printf("\n📦 History compressed: %d → %d tokens\n",
				e.Compression.OriginalTokenCount, e.Compression.NewTokenCount)
		}

	case api.EventLoopDetected:
		kind := ""
		if e.LoopDetected != nil {
			kind = string(e.LoopDetected.Kind)
		}
		ui.Printf("\n🔁 Loop detected (%s), turn aborted\n", kind)

	case api.EventMaxSessionTurns:
		ui.Print("\n⏹  Session turn limit reached\n")

	case api.EventError:
		if e.Error != nil {
			ui.Printf("\n❌ %s: %s\n", e.Error.Code, e.Error.Message)
		}

	case api.EventFinished:
		if contentPrefixPrinted {
			ui.Print("\n")
		}
		contentPrefixPrinted = false
	}
}

// toolSpinners maps executing call ids to their inline spinner stop/done
// channels. Updates are serialized by the scheduler's announce lock.
var toolSpinners = map[string][2]chan struct{}{}

func printToolUpdate(c *scheduler.ToolCall) {
	if sp, ok := toolSpinners[c.Request.CallID]; ok && c.Status.Terminal() {
		close(sp[0])
		<-sp[1]
		delete(toolSpinners, c.Request.CallID)
	}

	switch c.Status {
	case api.StatusExecuting:
		stop, done := ui.StartInlineSpinner(c.Request.Name)
		toolSpinners[c.Request.CallID] = [2]chan struct{}{stop, done}
	case api.StatusSuccess:
		ui.Printf("\n✓ %s done\n", c.Request.Name)
	case api.StatusError:
		ui.Printf("\n✗ %s failed: %s\n", c.Request.Name, c.Result.Error)
	case api.StatusCancelled:
		ui.Printf("\n✗ %s cancelled\n", c.Request.Name)
	}
}

func printChatBanner(model, workspace, mode string) {
	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      🤖 AgentCore Chat                        ║")
	fmt.Println("╠═══════════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Model:     %-50s ║\n", model)
	fmt.Printf("║  Workspace: %-50s ║\n", truncateLeft(workspace, 50))
	fmt.Printf("║  Approval:  %-50s ║\n", mode)
	fmt.Println("╠═══════════════════════════════════════════════════════════════╣")
	fmt.Println("║  Commands:                                                    ║")
	fmt.Println("║    /help      Show all commands                               ║")
	fmt.Println("║    /compress  Force-compress the conversation history         ║")
	fmt.Println("║    /stats     Show session counters                           ║")
	fmt.Println("║    /quit      Exit session                                    ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
}

func truncateLeft(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return "..." + s[len(s)-max+3:]
}
