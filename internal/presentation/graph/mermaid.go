package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/insurai/pkg/domain"
	flowgraph "github.com/aretw0/insurai/pkg/graph"
)

// Overlay marks session data on top of a flow diagram.
type Overlay struct {
	// Current is the node a session is suspended at.
	Current string
	// Failed marks the session as finished with an error.
	Failed bool
}

// GenerateMermaid renders a compiled flow as a Mermaid flowchart.
// Shapes follow the node kind:
// - Start: ((Circle))
// - Capability: [[Subroutine]]
// - Input: [/Parallelogram/]
// - Terminal: {{Hexagon}}
// - Pure: [Rectangle]
func GenerateMermaid(g *flowgraph.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, node := range g.Nodes() {
		safeID := sanitizeMermaidID(node.Name)

		opener, closer := "[", "]"
		switch {
		case node.Name == g.Start():
			opener, closer = "((", "))"
		case node.Name == g.Terminal():
			opener, closer = "{{", "}}"
		case node.Kind == domain.KindInput:
			opener, closer = "[/", "/]"
		case node.Kind == domain.KindCapability:
			opener, closer = "[[", "]]"
		}

		label := node.Name
		if node.Input != "" {
			label += " <br/> ? " + node.Input
		}
		if node.Capability != "" {
			label += " <br/> ⚙ " + node.Capability
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, label, closer)

		edge, ok := g.Edge(node.Name)
		if !ok {
			continue
		}
		for _, to := range edge.Destinations() {
			arrow := "-->"
			if edge.Conditional() {
				cond := "when"
				if to == edge.Default {
					cond = "default"
				}
				arrow = fmt.Sprintf("-- \"%s\" -->", cond)
			}
			if to == node.Name {
				arrow = "-. \"retry\" .->"
			}
			fmt.Fprintf(&sb, "    %s %s %s\n", safeID, arrow, endID(g, to))
		}
	}
	if g.Terminal() == "" {
		sb.WriteString("    __end__((\"End\"))\n")
	}

	if overlay != nil && overlay.Current != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")
		class := "current"
		if overlay.Failed {
			class = "failed"
		}
		fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(overlay.Current), class)
	}

	return sb.String()
}

// endID points End edges at the terminal node when the flow has one.
func endID(g *flowgraph.Graph, to string) string {
	if to == domain.End && g.Terminal() != "" {
		return sanitizeMermaidID(g.Terminal())
	}
	return sanitizeMermaidID(to)
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
