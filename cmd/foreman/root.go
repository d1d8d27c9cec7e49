package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "foreman",
	Short: "Delegate work to role-scoped coding agents",
	Long: `Foreman launches Claude Code agents under named role profiles and
tracks their progress as they stream output back.

Two orchestration modes are available:

  run       Delegate a single task to one role. Repeat dispatches to the
            same role continue the same conversation.
  pipeline  Run a fixed chain of roles in order, feeding each step's
            output into the next step's prompt.

Role profiles are YAML files (name, tools, instructions) loaded from the
profiles directory and hot-reloaded while foreman is running.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(pipelineCmd)
	rootCmd.AddCommand(rolesCmd)
	rootCmd.AddCommand(versionCmd)
}

// CheckAgentCLI verifies the agent binary is installed and on PATH.
func CheckAgentCLI(binary string) error {
	if _, err := exec.LookPath(binary); err != nil {
		return fmt.Errorf(`agent CLI %q not found in PATH

foreman drives the Claude Code CLI. Install it with:

  npm install -g @anthropic-ai/claude-code

or point agent.binary in your config at another compatible CLI`, binary)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
