package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/ports"
)

// Generator implements ports.Generator with a Reasoner.
type Generator struct {
	reasoner ports.Reasoner
}

var _ ports.Generator = (*Generator)(nil)

// NewGenerator creates a generator.
func NewGenerator(r ports.Reasoner) *Generator {
	return &Generator{reasoner: r}
}

// Generate returns a conversational reply. Empty replies count as failures.
func (g *Generator) Generate(ctx context.Context, req ports.Generation) (string, error) {
	var b strings.Builder
	if req.Context != "" {
		b.WriteString(req.Context)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "They just said: %q\n\nReply naturally in a few sentences.", req.Utterance)

	var messages []ports.Message
	if req.Persona != "" {
		messages = append(messages, ports.Message{Role: "system", Content: req.Persona})
	}
	messages = append(messages, ports.Message{Role: "user", Content: b.String()})

	out, err := g.reasoner.Complete(ctx, messages)
	if err != nil {
		return "", &domain.CapabilityError{Capability: "generator", Err: err}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &domain.CapabilityError{Capability: "generator", Err: fmt.Errorf("empty reply")}
	}
	return out, nil
}
