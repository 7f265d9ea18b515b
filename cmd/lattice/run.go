package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/latticehq/lattice"
	"github.com/latticehq/lattice/internal/config"
	"github.com/latticehq/lattice/internal/logging"
	"github.com/latticehq/lattice/pkg/domain"
)

// runCmd executes a workflow file from disk using passthrough runners and
// reports per-node outcomes.
var runCmd = &cobra.Command{
	Use:   "run <workflow.json>",
	Short: "Execute a workflow file",
	Long:  `Loads a workflow snapshot from a JSON file and executes it in dependency order, printing the outcome of every node.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgFile, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgFile, cmd.Flags())
		if err != nil {
			return err
		}
		logger := logging.New(logging.ParseLevel(cfg.LogLevel))

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read workflow file: %w", err)
		}
		var wf domain.Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return fmt.Errorf("failed to parse workflow: %w", err)
		}

		engine := lattice.New(
			lattice.WithLogger(logger),
			lattice.WithWorkers(cfg.Execution.Workers),
		)
		registerDefaultRunners(engine)
		if err := engine.LoadSnapshot(&wf); err != nil {
			return fmt.Errorf("invalid workflow: %w", err)
		}

		result, err := engine.RunWorkflow(cmd.Context())
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(result.Nodes))
		for id := range result.Nodes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			nr := result.Nodes[id]
			line := fmt.Sprintf("%-12s %s", nr.Status, id)
			if nr.Err != nil {
				line += "  (" + nr.Err.Error() + ")"
			}
			fmt.Println(line)
		}
		fmt.Printf("\nexecuted=%d failed=%d duration=%s\n", result.Executed, result.Failed, result.Duration)
		if result.Failed > 0 {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().Int("workers", 0, "Execution worker pool size")
	rootCmd.AddCommand(runCmd)
}
