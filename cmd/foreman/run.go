package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/strategy"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var runHeadless bool

var runCmd = &cobra.Command{
	Use:   "run <role> <task>",
	Short: "Delegate a task to a single role",
	Long: `Delegate a task to one named role from the profile catalog.

The role's profile controls which tools the child process may use and
what instructions it receives. Dispatches to the same role continue
the same conversation, so follow-up tasks keep prior context:

  foreman run scout "find where retries are configured"
  foreman run scout "now check whether tests cover that path"

A role runs one task at a time. Delegating to a role that is already
running reports busy without launching a second process.`,
	Args: cobra.ExactArgs(2),
	RunE: runDelegate,
}

func init() {
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without the live status display")
}

func runDelegate(cmd *cobra.Command, args []string) error {
	role, task := args[0], args[1]

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	dispatcher := strategy.NewDispatcher(rt.registry, rt.tracker, rt.runner, rt.logger)
	dispatcher.Timeout = rt.cfg.Agent.DispatchTimeout

	outcome, err := withStatusUI(rt, runHeadless, false, func(ctx context.Context) models.Outcome {
		return dispatcher.Delegate(ctx, role, task)
	})
	if err != nil {
		return err
	}
	return printOutcome(outcome)
}
