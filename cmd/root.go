package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"AgentCore/pkg/config"
	"AgentCore/pkg/logger"
)

// Global flags
var (
	configFlag       string
	modelFlag        string
	approvalModeFlag string
	workspaceFlag    string
)

// cfg is resolved once flags are parsed, before any subcommand runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "agentcore",
	Short: "AgentCore - an interactive coding agent control loop",
	Long: `AgentCore drives a model-in-the-loop coding session: it streams model
output, schedules tool calls through a confirmation pipeline, compresses
history when the context window fills up, and guards against loops and
quota exhaustion.

Global Flags:
  --config         Path to a YAML config file
  --model          Model to use (e.g. gemini-2.5-pro)
  --approval-mode  suggest | auto | full-auto
  --workspace      Workspace root for file tools`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = loadConfig()
		if err != nil {
			return err
		}

		logPath := cfg.Log.Path
		if logPath == "" {
			logPath = fmt.Sprintf("logs/%s.log", time.Now().Format("20060102"))
		}
		if err := logger.Init(logPath, logger.ParseLevel(cfg.Log.Level), "agentcore"); err != nil {
			fmt.Fprintln(os.Stderr, "logger init failed:", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "Model to use")
	rootCmd.PersistentFlags().StringVar(&approvalModeFlag, "approval-mode", "", "Approval mode: suggest, auto or full-auto")
	rootCmd.PersistentFlags().StringVar(&workspaceFlag, "workspace", "", "Workspace root for file tools")
}

// Execute runs the root command.
func Execute() {
	// Best effort; a missing .env is fine.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers flag values on top of file and environment configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}
	if modelFlag != "" {
		cfg.Model = modelFlag
	}
	if approvalModeFlag != "" {
		cfg.ApprovalMode = approvalModeFlag
	}
	if workspaceFlag != "" {
		cfg.WorkspaceRoot = workspaceFlag
	}
	if cfg.WorkspaceRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		cfg.WorkspaceRoot = wd
	}
	return cfg, nil
}
