package lattice_test

import (
	"context"
	"fmt"
	"log"

	"github.com/latticehq/lattice"
	"github.com/latticehq/lattice/pkg/domain"
	"github.com/latticehq/lattice/pkg/ports"
)

// Example builds a two-node workflow, wires a runner for the text kind and
// executes the graph in dependency order.
func Example() {
	engine := lattice.New()

	// A runner receives the node's payload plus the outputs of its direct
	// upstream producers.
	engine.RegisterRunner(domain.KindText, ports.RunnerFunc(func(ctx context.Context, nc ports.NodeContext) (any, error) {
		text, _ := nc.Data["text"].(string)
		for _, up := range nc.Upstream {
			text = fmt.Sprintf("%v -> %s", up.Output, text)
		}
		return text, nil
	}))

	draft, err := engine.AddNode(domain.KindText, domain.Position{X: 0, Y: 0}, map[string]any{"text": "draft"})
	if err != nil {
		log.Fatal(err)
	}
	review, err := engine.AddNode(domain.KindText, domain.Position{X: 400, Y: 0}, map[string]any{"text": "review"})
	if err != nil {
		log.Fatal(err)
	}
	if _, err := engine.Connect(draft.ID, review.ID, "", ""); err != nil {
		log.Fatal(err)
	}

	res, err := engine.RunWorkflow(context.Background())
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("executed:", res.Executed)
	fmt.Println("review:", res.Nodes[review.ID].Output)
	// Output:
	// executed: 2
	// review: draft -> review
}

// Example_history shows that every mutation lands as one undoable entry.
func Example_history() {
	engine := lattice.New()

	n, err := engine.AddNode(domain.KindSticky, domain.Position{X: 10, Y: 10}, nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := engine.MoveNode(n.ID, domain.Position{X: 300, Y: 300}); err != nil {
		log.Fatal(err)
	}

	if _, err := engine.Undo(); err != nil {
		log.Fatal(err)
	}
	moved, err := engine.Node(n.ID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("after undo: %.0f,%.0f\n", moved.Position.X, moved.Position.Y)
	// Output:
	// after undo: 10,10
}
