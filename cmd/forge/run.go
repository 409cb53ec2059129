package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dataforge-ai/forge/internal/progress"
	"github.com/dataforge-ai/forge/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run <job-config.json>",
	Short: "Run a single pipeline job from a config file",
	Long: `Run one job end to end without starting the HTTP server.

The config file is the JSON job config accepted by POST /api/jobs,
for example:

  {
    "urls": ["https://example.com/docs"],
    "generation": {"template": "qa", "examples_per_chunk": 3},
    "export": {"format": "jsonl", "version": "v1"}
  }`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var jobCfg store.JobConfig
		if err := json.Unmarshal(raw, &jobCfg); err != nil {
			return fmt.Errorf("invalid job config: %w", err)
		}
		if len(jobCfg.URLs) == 0 {
			return fmt.Errorf("job config has no urls")
		}
		jobCfg.Normalize()

		a, err := newApp(ctx, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		job := &store.Job{
			ID:        uuid.NewString(),
			Status:    store.StatusPending,
			Config:    jobCfg,
			CreatedAt: time.Now().UTC(),
		}
		if err := a.store.CreateJob(ctx, job); err != nil {
			return err
		}

		events, unsub := a.bus.Subscribe(progress.Channel(job.ID))
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range events {
				fmt.Printf("[%5.1f%%] %-9s %s\n", ev.Progress*100, ev.Stage, ev.Status)
				if progress.Terminal(ev.Status) {
					return
				}
			}
		}()

		runErr := a.orchestrator.Run(ctx, job.ID)
		// Unsubscribing closes the event channel, so the printer exits
		// even when the run died before publishing a terminal event.
		unsub()
		<-done
		if runErr != nil {
			return runErr
		}

		final, err := a.store.GetJob(ctx, job.ID)
		if err != nil {
			return err
		}
		if final.Status != store.StatusCompleted {
			return fmt.Errorf("job %s: %s", final.Status, final.Error)
		}

		exports, err := a.store.ListExports(ctx, job.ID)
		if err != nil {
			return err
		}
		for _, ex := range exports {
			fmt.Printf("exported %d records to %s\n", ex.RecordCount, ex.FilePath)
		}
		fmt.Printf("total cost: $%.4f\n", final.CostTotal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
