package graph

import (
	"github.com/aretw0/insurai/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	name     string
	start    string
	terminal string

	order []string
	nodes map[string]*NodeBuilder
	edges []domain.Edge

	duplicates []string
}

// New creates a new graph builder for the named flow.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Start designates the entry node.
func (b *Builder) Start(name string) *Builder {
	b.start = name
	return b
}

// Terminal designates the confirmation node that runs exactly once when the
// flow ends, successfully or not.
func (b *Builder) Terminal(name string) *Builder {
	b.terminal = name
	return b
}

// Add declares a new node. Declaring the same name twice is reported by Compile.
func (b *Builder) Add(name string) *NodeBuilder {
	if nb, ok := b.nodes[name]; ok {
		b.duplicates = append(b.duplicates, name)
		return nb
	}
	nb := &NodeBuilder{
		node:    domain.Node{Name: name},
		builder: b,
	}
	b.nodes[name] = nb
	b.order = append(b.order, name)
	return nb
}
