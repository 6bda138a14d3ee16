package graph

import (
	"context"
	"sort"
	"strings"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/ports"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node    domain.Node
	builder *Builder
}

// Do sets the node transform. Nodes without another kind are pure.
func (n *NodeBuilder) Do(fn domain.Transform) *NodeBuilder {
	if n.node.Kind == "" {
		n.node.Kind = domain.KindPure
	}
	n.node.Transform = fn
	return n
}

// Ask marks the node as waiting for the named input. The supplied value is
// stored under the input name before the transform (if any) runs.
func (n *NodeBuilder) Ask(input string, prompt domain.PromptFunc) *NodeBuilder {
	n.node.Kind = domain.KindInput
	n.node.Input = input
	n.node.Prompt = prompt
	return n
}

// Call marks the node as invoking an external capability. On a node that
// awaits input, the transform runs under the capability contract once the
// input arrives.
func (n *NodeBuilder) Call(capability string, fn domain.Transform) *NodeBuilder {
	if n.node.Kind != domain.KindInput {
		n.node.Kind = domain.KindCapability
	}
	n.node.Capability = capability
	n.node.Transform = fn
	return n
}

// Requires declares the fields that must exist before the node runs.
func (n *NodeBuilder) Requires(fields ...string) *NodeBuilder {
	n.node.Requires = append(n.node.Requires, fields...)
	return n
}

// MaxLoops overrides the consecutive self-loop bound for this node.
func (n *NodeBuilder) MaxLoops(bound int) *NodeBuilder {
	n.node.MaxLoops = bound
	return n
}

// Go adds an unconditional transition to the target node.
func (n *NodeBuilder) Go(target string) *NodeBuilder {
	n.builder.edges = append(n.builder.edges, domain.Edge{
		From: n.node.Name,
		To:   target,
	})
	return n
}

// End routes the node to the terminal marker.
func (n *NodeBuilder) End() *NodeBuilder {
	return n.Go(domain.End)
}

// Branch adds a conditional transition. Any selector result outside targets
// is routed to def, which must itself be one of the targets.
func (n *NodeBuilder) Branch(sel domain.Selector, def string, targets ...string) *NodeBuilder {
	n.builder.edges = append(n.builder.edges, domain.Edge{
		From:     n.node.Name,
		Selector: sel,
		Targets:  targets,
		Default:  def,
	})
	return n
}

// Classify adds a conditional transition driven by a classifier.
// routes maps each label to its target; fallback is the label used when the
// classifier fails or answers outside the label set.
func (n *NodeBuilder) Classify(c ports.Classifier, request func(*domain.State) ports.Classification, routes map[string]string, fallback string) *NodeBuilder {
	labels := make([]string, 0, len(routes))
	for label := range routes {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	targets := make([]string, 0, len(labels))
	seen := make(map[string]bool)
	for _, label := range labels {
		if t := routes[label]; !seen[t] {
			seen[t] = true
			targets = append(targets, t)
		}
	}

	sel := ClassifierSelector(c, request, labels, routes, fallback)
	return n.Branch(sel, routes[fallback], targets...)
}

// ClassifierSelector builds a selector that asks c for one of labels and maps
// the answer through routes.
func ClassifierSelector(c ports.Classifier, request func(*domain.State) ports.Classification, labels []string, routes map[string]string, fallback string) domain.Selector {
	return func(ctx context.Context, s *domain.State) string {
		req := request(s)
		req.Labels = labels
		label, err := c.Classify(ctx, req)
		label = strings.ToLower(strings.TrimSpace(label))
		if err != nil {
			label = fallback
		}
		target, ok := routes[label]
		if !ok {
			return routes[fallback]
		}
		return target
	}
}
