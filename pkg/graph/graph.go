package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/insurai/pkg/domain"
)

// Graph is a compiled, immutable flow shared by every session that runs it.
type Graph struct {
	name     string
	start    string
	terminal string

	order []string
	nodes map[string]domain.Node
	edges map[string]domain.Edge

	unreachable []string
}

// Name returns the flow name.
func (g *Graph) Name() string { return g.name }

// Start returns the entry node.
func (g *Graph) Start() string { return g.start }

// Terminal returns the confirmation node, or "" when the flow has none.
func (g *Graph) Terminal() string { return g.terminal }

// Node looks up a node by name.
func (g *Graph) Node(name string) (domain.Node, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Edge returns the outgoing rule of a node.
func (g *Graph) Edge(from string) (domain.Edge, bool) {
	e, ok := g.edges[from]
	return e, ok
}

// Nodes returns the nodes in declaration order.
func (g *Graph) Nodes() []domain.Node {
	out := make([]domain.Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// Unreachable lists declared nodes no path from the start node can reach.
// The terminal node is never listed: every failure routes to it.
func (g *Graph) Unreachable() []string {
	return append([]string(nil), g.unreachable...)
}

// Route evaluates the outgoing rule of from against the post-transform state.
// A selector result outside the declared target set falls back to the default.
func (g *Graph) Route(ctx context.Context, from string, s *domain.State) string {
	e, ok := g.edges[from]
	if !ok {
		return domain.End
	}
	if !e.Conditional() {
		return e.To
	}
	target := e.Selector(ctx, s)
	if !slices.Contains(e.Targets, target) {
		return e.Default
	}
	return target
}

// Compile validates the declared nodes and edges into an executable Graph.
// It reports every violation at once in a *domain.GraphDefinitionError.
func (b *Builder) Compile() (*Graph, error) {
	var violations []string
	report := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	for _, name := range b.duplicates {
		report("node %q is declared more than once", name)
	}

	declared := func(name string) bool {
		_, ok := b.nodes[name]
		return ok
	}

	if b.start == "" {
		report("no start node designated")
	} else if !declared(b.start) {
		report("start node %q is not declared", b.start)
	}
	if b.terminal != "" && !declared(b.terminal) {
		report("terminal node %q is not declared", b.terminal)
	}

	for _, name := range b.order {
		n := b.nodes[name].node
		switch n.Kind {
		case domain.KindPure:
		case domain.KindInput:
			if n.Input == "" {
				report("node %q awaits input but names none", name)
			}
			if name == b.terminal {
				report("terminal node %q cannot await input", name)
			}
		case domain.KindCapability:
		case "":
			report("node %q has no behaviour (use Do, Ask or Call)", name)
		default:
			report("node %q has unknown kind %q", name, n.Kind)
		}
		if n.Capability != "" && n.Transform == nil {
			report("capability node %q has no transform", name)
		}
		if n.MaxLoops < 0 {
			report("node %q has a negative loop bound", name)
		}
	}

	edges := make(map[string]domain.Edge)
	for _, e := range b.edges {
		if !declared(e.From) {
			report("edge source %q is not declared", e.From)
			continue
		}
		if _, dup := edges[e.From]; dup {
			report("node %q has more than one outgoing rule", e.From)
			continue
		}
		edges[e.From] = e

		if e.Conditional() {
			if len(e.Targets) == 0 {
				report("conditional edge from %q has an empty target set", e.From)
			}
			for _, t := range e.Targets {
				if t != domain.End && !declared(t) {
					report("conditional edge from %q targets undeclared node %q", e.From, t)
				}
			}
			if !slices.Contains(e.Targets, e.Default) {
				report("conditional edge from %q has default %q outside its target set", e.From, e.Default)
			}
			continue
		}
		if e.To == "" {
			report("edge from %q has no target", e.From)
		} else if e.To != domain.End && !declared(e.To) {
			report("edge from %q targets undeclared node %q", e.From, e.To)
		}
	}

	for _, name := range b.order {
		_, hasEdge := edges[name]
		switch {
		case name == b.terminal && hasEdge:
			report("terminal node %q must not have outgoing edges", name)
		case name != b.terminal && !hasEdge:
			report("node %q has no outgoing edge", name)
		}
	}

	if len(violations) > 0 {
		return nil, &domain.GraphDefinitionError{Graph: b.name, Violations: violations}
	}

	g := &Graph{
		name:     b.name,
		start:    b.start,
		terminal: b.terminal,
		order:    append([]string(nil), b.order...),
		nodes:    make(map[string]domain.Node, len(b.nodes)),
		edges:    edges,
	}
	for name, nb := range b.nodes {
		g.nodes[name] = nb.node
	}
	g.unreachable = g.crawl()
	return g, nil
}

// crawl walks the graph from the start node and returns what it never visits.
func (g *Graph) crawl() []string {
	visited := map[string]bool{g.start: true}
	queue := []string{g.start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		e, ok := g.edges[current]
		if !ok {
			continue
		}
		for _, target := range e.Destinations() {
			if target == domain.End || visited[target] {
				continue
			}
			visited[target] = true
			queue = append(queue, target)
		}
	}

	var unreachable []string
	for _, name := range g.order {
		if !visited[name] && name != g.terminal {
			unreachable = append(unreachable, name)
		}
	}
	return unreachable
}
