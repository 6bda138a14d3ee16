package capability

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/ports"
)

const defaultClassifierPersona = "You are an insurance assistant that classifies user intent."

// Classifier implements ports.Classifier with a Reasoner.
type Classifier struct {
	reasoner ports.Reasoner
}

var _ ports.Classifier = (*Classifier)(nil)

// NewClassifier creates a classifier.
func NewClassifier(r ports.Reasoner) *Classifier {
	return &Classifier{reasoner: r}
}

// Classify asks for a single label and returns it lowercased.
// The caller decides what to do with labels outside req.Labels.
func (c *Classifier) Classify(ctx context.Context, req ports.Classification) (string, error) {
	var b strings.Builder
	if req.Context != "" {
		b.WriteString(req.Context)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "User just said: %q\n\n", req.Utterance)
	b.WriteString("Classify the user's message into one of:\n")
	for _, l := range req.Labels {
		fmt.Fprintf(&b, "- %s\n", l)
	}
	b.WriteString("Reply with just one label.")

	persona := req.Instruction
	if persona == "" {
		persona = defaultClassifierPersona
	}

	out, err := c.reasoner.Complete(ctx, []ports.Message{
		{Role: "system", Content: persona},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return "", &domain.CapabilityError{Capability: "classifier", Err: err}
	}
	return normalizeLabel(out), nil
}

// normalizeLabel keeps the first line, lowercased, without quotes or a trailing dot.
func normalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.Trim(s, "\"'`. ")
	return strings.ToLower(s)
}
