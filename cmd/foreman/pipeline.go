package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/foreman/internal/strategy"
	"github.com/ShayCichocki/foreman/pkg/models"
)

var pipelineHeadless bool

var pipelineCmd = &cobra.Command{
	Use:   "pipeline <task>",
	Short: "Run the configured role pipeline on a task",
	Long: `Run the pipeline of roles defined in config, in order, feeding each
step's output into the next step's prompt.

Steps are configured under pipeline.steps:

  pipeline:
    steps:
      - role: scout
        template: "Investigate: {{PREVIOUS_OUTPUT}}"
      - role: builder
        template: "Implement this plan:\n{{PREVIOUS_OUTPUT}}\n\nOriginal request: {{ORIGINAL_TASK}}"

The first step's {{PREVIOUS_OUTPUT}} is the task itself. A failing
step stops the pipeline; later steps are never launched.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func init() {
	pipelineCmd.Flags().BoolVar(&pipelineHeadless, "headless", false, "Run without the live status display")
}

func runPipeline(cmd *cobra.Command, args []string) error {
	task := args[0]

	rt, err := newRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	if len(rt.cfg.Pipeline.Steps) == 0 {
		return fmt.Errorf("no pipeline steps configured; add pipeline.steps to your config")
	}

	pipeline := strategy.NewPipeline(rt.registry, rt.tracker, rt.runner, rt.cfg.Pipeline.Steps, rt.logger)
	pipeline.Timeout = rt.cfg.Agent.DispatchTimeout

	outcome, err := withStatusUI(rt, pipelineHeadless, true, func(ctx context.Context) models.Outcome {
		return pipeline.Run(ctx, task)
	})
	if err != nil {
		return err
	}
	return printOutcome(outcome)
}
