package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const planChoiceSchema = `{
	"type": "object",
	"required": ["plan"],
	"properties": {
		"plan": {"type": "string", "enum": ["1", "2", "3"]},
		"reason": {"type": "string"}
	}
}`

// PlanAdvisor implements ports.PlanAdvisor with a Reasoner.
type PlanAdvisor struct {
	reasoner ports.Reasoner
	schema   *jsonschema.Schema
}

var _ ports.PlanAdvisor = (*PlanAdvisor)(nil)

// NewPlanAdvisor creates an advisor.
func NewPlanAdvisor(r ports.Reasoner) (*PlanAdvisor, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("plan_choice.json", strings.NewReader(planChoiceSchema)); err != nil {
		return nil, err
	}
	schema, err := c.Compile("plan_choice.json")
	if err != nil {
		return nil, err
	}
	return &PlanAdvisor{reasoner: r, schema: schema}, nil
}

// ChoosePlan asks for a JSON verdict such as {"plan":"2","reason":"..."}.
// Replies that are not valid against the plan schema are errors.
func (a *PlanAdvisor) ChoosePlan(ctx context.Context, req ports.PlanRequest) (ports.PlanChoice, error) {
	var b strings.Builder
	b.WriteString("You are an experienced insurance agent. You have 3 plans:\n\n")
	for i, p := range req.Plans {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p)
	}
	fmt.Fprintf(&b, "\nCustomer said: %q\n\n", req.Utterance)
	b.WriteString("Pick the most suitable plan based on their needs.\n")
	b.WriteString(`Reply in JSON like: {"plan":"2","reason":"Sounds like they want good coverage without breaking the bank"}`)

	out, err := a.reasoner.Complete(ctx, []ports.Message{
		{Role: "system", Content: "You are an insurance agent helping pick the right plan."},
		{Role: "user", Content: b.String()},
	})
	if err != nil {
		return ports.PlanChoice{}, &domain.CapabilityError{Capability: "plan advisor", Err: err}
	}
	return a.parse(out)
}

func (a *PlanAdvisor) parse(reply string) (ports.PlanChoice, error) {
	raw := stripFences(reply)

	var doc any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return ports.PlanChoice{}, fmt.Errorf("plan choice is not JSON: %w", err)
	}
	if dec.More() {
		return ports.PlanChoice{}, fmt.Errorf("plan choice has trailing data")
	}
	if err := a.schema.Validate(doc); err != nil {
		return ports.PlanChoice{}, fmt.Errorf("invalid plan choice: %w", err)
	}

	var choice ports.PlanChoice
	if err := json.Unmarshal([]byte(raw), &choice); err != nil {
		return ports.PlanChoice{}, fmt.Errorf("failed to decode plan choice: %w", err)
	}
	return choice, nil
}

// stripFences removes a ```json ... ``` wrapper some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
