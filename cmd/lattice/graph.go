package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/latticehq/lattice/internal/presentation/graph"
	"github.com/latticehq/lattice/pkg/domain"
)

// graphCmd renders a workflow file as a Mermaid diagram.
var graphCmd = &cobra.Command{
	Use:   "graph <workflow.json>",
	Short: "Export the workflow graph visualization",
	Long:  `Reads a workflow snapshot and outputs a Mermaid diagram (graph TD) with groups as subgraphs.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read workflow file: %w", err)
		}
		var wf domain.Workflow
		if err := json.Unmarshal(data, &wf); err != nil {
			return fmt.Errorf("failed to parse workflow: %w", err)
		}
		fmt.Print(graph.GenerateMermaid(&wf, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
