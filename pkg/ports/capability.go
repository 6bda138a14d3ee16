package ports

import (
	"context"
	"time"

	"github.com/aretw0/insurai/pkg/domain"
)

// Message is one turn of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reasoner maps a prompt to a text completion.
type Reasoner interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// ReasonerFunc adapts a function to the Reasoner interface.
type ReasonerFunc func(ctx context.Context, messages []Message) (string, error)

// Complete calls f.
func (f ReasonerFunc) Complete(ctx context.Context, messages []Message) (string, error) {
	return f(ctx, messages)
}

// Classification asks for one label out of a closed set.
type Classification struct {
	// Instruction describes the categories to the classifier.
	Instruction string
	// Context is background information such as the conversation so far.
	Context string
	// Utterance is the text to classify.
	Utterance string
	// Labels is the closed answer set.
	Labels []string
}

// Classifier maps text plus context to one label of a fixed set.
// Callers apply their own fallback when the answer is outside the set.
type Classifier interface {
	Classify(ctx context.Context, req Classification) (string, error)
}

// Generation asks for a free-text reply.
type Generation struct {
	Persona   string
	Context   string
	Utterance string
}

// Generator produces a conversational reply.
type Generator interface {
	Generate(ctx context.Context, req Generation) (string, error)
}

// DocumentVerdict is the outcome of a claim document check.
type DocumentVerdict struct {
	Valid bool
	Info  string
}

// DocumentValidator checks that a claim document fits the insurance type.
type DocumentValidator interface {
	ValidateDocument(ctx context.Context, kind domain.InsuranceType, text string) (DocumentVerdict, error)
}

// PlanRequest describes the three plans offered and what the customer said.
type PlanRequest struct {
	Utterance string
	Plans     []string
}

// PlanChoice is the advisor's pick among the offered plans ("1", "2" or "3").
type PlanChoice struct {
	Plan   string `json:"plan"`
	Reason string `json:"reason"`
}

// PlanAdvisor picks a plan from a free-text request.
type PlanAdvisor interface {
	ChoosePlan(ctx context.Context, req PlanRequest) (PlanChoice, error)
}

// OneTimeCodes sends and verifies one-time codes.
// Verify consumes the stored code whatever the outcome.
type OneTimeCodes interface {
	Send(ctx context.Context, destination string) error
	Verify(ctx context.Context, destination, code string) (bool, error)
}

// CodeStore keeps pending one-time codes.
type CodeStore interface {
	Put(ctx context.Context, destination, code string, ttl time.Duration) error
	// Take returns and removes the pending code for destination.
	Take(ctx context.Context, destination string) (string, bool, error)
}

// SMSSender delivers text messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Attachment is a file sent along with an email.
type Attachment struct {
	Filename string
	Content  []byte
}

// Email is an outgoing message.
type Email struct {
	To          string
	Subject     string
	Text        string
	Attachments []Attachment
}

// Mailer delivers email.
type Mailer interface {
	SendEmail(ctx context.Context, email Email) error
}
