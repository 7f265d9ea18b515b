package graph

import (
	"fmt"
	"strings"

	"github.com/latticehq/lattice/pkg/domain"
)

// StatusOverlay carries per-node execution statuses to visualize on the
// graph, usually taken from the workflow snapshot after a run.
type StatusOverlay struct {
	Statuses map[string]domain.ExecutionStatus
}

// GenerateMermaid produces a Mermaid flowchart from a workflow snapshot.
// Groups render as subgraphs containing their children; node shapes follow
// the kind:
// - sticky: [/Parallelogram/]
// - connector: ((Circle))
// - everything else: [Rectangle]
// Status classes are applied when an overlay is provided.
func GenerateMermaid(wf *domain.Workflow, overlay *StatusOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	children := make(map[string][]domain.Node)
	var roots []domain.Node
	for _, n := range wf.Nodes {
		if n.ParentID != "" {
			children[n.ParentID] = append(children[n.ParentID], n)
			continue
		}
		roots = append(roots, n)
	}

	for _, n := range roots {
		writeNode(&sb, n, children, 1)
	}

	for _, e := range wf.Edges {
		arrow := "-->"
		if e.SourceHandle != "" {
			safe := strings.ReplaceAll(e.SourceHandle, "\"", "'")
			arrow = fmt.Sprintf("-- \"%s\" -->", safe)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", sanitizeID(e.Source), arrow, sanitizeID(e.Target)))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Status Styles\n")
		sb.WriteString("    classDef success fill:#e8f5e9,stroke:#1b5e20,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef error fill:#ffebee,stroke:#b71c1c,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef running fill:#fff8e1,stroke:#f57f17,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef bypassed fill:#eceff1,stroke:#546e7a,stroke-dasharray:3,color:#000;\n")
		for _, n := range wf.Nodes {
			status, ok := overlay.Statuses[n.ID]
			if !ok || status == domain.StatusIdle {
				continue
			}
			sb.WriteString(fmt.Sprintf("    class %s %s;\n", sanitizeID(n.ID), status))
		}
	}

	return sb.String()
}

func writeNode(sb *strings.Builder, n domain.Node, children map[string][]domain.Node, depth int) {
	indent := strings.Repeat("    ", depth)
	safeID := sanitizeID(n.ID)

	if n.Kind == domain.KindGroup {
		sb.WriteString(fmt.Sprintf("%ssubgraph %s[\"%s\"]\n", indent, safeID, label(n)))
		for _, child := range children[n.ID] {
			writeNode(sb, child, children, depth+1)
		}
		sb.WriteString(indent + "end\n")
		return
	}

	opener, closer := "[", "]"
	switch n.Kind {
	case domain.KindSticky:
		opener, closer = "[/", "/]"
	case domain.KindConnector:
		opener, closer = "((", "))"
	}
	sb.WriteString(fmt.Sprintf("%s%s%s\"%s\"%s\n", indent, safeID, opener, label(n), closer))
}

// label prefers a data title over the raw id.
func label(n domain.Node) string {
	for _, key := range []string{"title", "label", "name"} {
		if v, ok := n.Data[key].(string); ok && v != "" {
			return strings.ReplaceAll(v, "\"", "'")
		}
	}
	return string(n.Kind) + ":" + shortID(n.ID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
