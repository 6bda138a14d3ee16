// Package support declares the support flow: Maya answers insurance
// questions from a small knowledge base until the customer is done, and
// hands claim problems over to a human.
package support

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/ports"
)

// Name is the flow name used by the engine.
const Name = "support"

// DefaultMaxFollowups bounds the consecutive follow-up questions of a session.
const DefaultMaxFollowups = 20

const mayaPersona = "You are Maya, a friendly and knowledgeable insurance support agent at InsurAI. " +
	"Talk like a real person: warm, knowledgeable but not pushy, with contractions and simple explanations without jargon. " +
	"Avoid being salesy, corporate buzzwords and long paragraphs. Say \"you\" instead of \"customer\"."

const fallbackAnswer = "I'm here to help you understand insurance better. What would you like to know about?"

// farewells end the conversation when sent as a follow-up.
var farewells = map[string]bool{
	"":          true,
	"thanks":    true,
	"thank you": true,
	"no":        true,
	"nope":      true,
	"i'm good":  true,
	"all good":  true,
	"that's it": true,
}

// Deps are the collaborators of the support flow.
type Deps struct {
	Classifier ports.Classifier
	Generator  ports.Generator
}

// Option configures the flow.
type Option func(*flow)

// WithMaxFollowups overrides DefaultMaxFollowups.
func WithMaxFollowups(n int) Option {
	return func(f *flow) {
		if n > 0 {
			f.maxFollowups = n
		}
	}
}

type flow struct {
	deps         Deps
	maxFollowups int
}

// New compiles the support flow.
func New(deps Deps, opts ...Option) (*graph.Graph, error) {
	if deps.Classifier == nil || deps.Generator == nil {
		return nil, errors.New("support flow needs a classifier and a generator")
	}
	f := &flow{deps: deps, maxFollowups: DefaultMaxFollowups}
	for _, opt := range opts {
		opt(f)
	}

	b := graph.New(Name).Start("Welcome").Terminal("Goodbye")

	b.Add("Welcome").
		Ask("name", domain.Prompt("Hi there! I'm Maya from InsurAI support. I'm here to help you understand insurance and answer any questions you have.\n"+
			"What should I call you?")).
		Do(welcome).
		Go("GetQuery")

	b.Add("GetQuery").
		Ask("user_query", domain.Prompt(strings.Join([]string{
			"So what can I help you with today? You can ask me about:",
			"- Health insurance - what it is, why you need it",
			"- Vehicle insurance - car, bike coverage",
			"- About InsurAI - our company and services",
			"- Or anything else insurance-related!",
			"What's on your mind?",
		}, "\n"))).
		Call("llm", f.processQuery).
		Go("Followup")

	b.Add("Followup").
		Ask("followup", domain.Prompt("Anything else you'd like to know? (or say 'thanks' if you're all set)")).
		Call("llm", f.followup).
		MaxLoops(f.maxFollowups).
		Branch(func(_ context.Context, s *domain.State) string {
			if s.Bool("satisfaction") || s.Bool("needs_human") {
				return domain.End
			}
			return "Followup"
		}, "Followup", "Followup", domain.End)

	b.Add("Goodbye").Do(goodbye)

	return b.Compile()
}

func welcome(_ context.Context, s *domain.State) error {
	name := strings.TrimSpace(s.TextOr("name", ""))
	if name == "" {
		name = "friend"
		s.Say("No worries!")
	} else {
		s.Sayf("Nice to meet you, %s!", name)
	}
	if err := s.Set("conversation", []any{}); err != nil {
		return err
	}
	return s.Set("name", name)
}

func (f *flow) processQuery(ctx context.Context, s *domain.State) error {
	query := strings.TrimSpace(s.TextOr("user_query", ""))
	s.Append("conversation", map[string]any{"role": "user", "content": query})

	topic := f.topic(ctx, s, query)
	if err := s.Set("current_topic", topic); err != nil {
		return err
	}
	if topic == TopicSatisfied {
		s.Say("Glad I could help! Is there anything else you'd like to know?")
		return s.Set("satisfaction", true)
	}
	f.answer(ctx, s, query, topic)
	return nil
}

func (f *flow) followup(ctx context.Context, s *domain.State) error {
	text := strings.ToLower(strings.TrimSpace(s.TextOr("followup", "")))
	if farewells[text] {
		s.Sayf("You're welcome, %s! Feel free to reach out anytime if you have more questions.", s.TextOr("name", "friend"))
		s.Say("Have a great day!")
		return s.Set("satisfaction", true)
	}

	if err := s.Set("user_query", text); err != nil {
		return err
	}
	s.Append("conversation", map[string]any{"role": "user", "content": text})

	topic := f.topic(ctx, s, text)
	if err := s.Set("current_topic", topic); err != nil {
		return err
	}
	f.answer(ctx, s, text, topic)

	if strings.Contains(text, "claim") && strings.Contains(text, "problem") {
		s.Say("Actually, for specific claim issues, let me connect you with one of our claims specialists who can look into your account directly.")
		return s.Set("needs_human", true)
	}
	return nil
}

// topic falls back to general_help on failures and unknown labels.
func (f *flow) topic(ctx context.Context, s *domain.State, query string) string {
	label, err := f.deps.Classifier.Classify(ctx, ports.Classification{
		Instruction: topicInstruction,
		Context:     conversationContext(s),
		Utterance:   query,
		Labels:      topics,
	})
	if err != nil {
		return TopicGeneral
	}
	for _, t := range topics {
		if label == t {
			return t
		}
	}
	return TopicGeneral
}

func (f *flow) answer(ctx context.Context, s *domain.State, query, topic string) {
	reply, err := f.deps.Generator.Generate(ctx, ports.Generation{
		Persona: mayaPersona,
		Context: fmt.Sprintf("You're talking to %s who needs help understanding insurance.\n\nContext about query type %q:\n%s\n\n%s",
			s.TextOr("name", "someone"), topic, Knowledge(topic), conversationContext(s)),
		Utterance: query,
	})
	if err != nil {
		reply = fallbackAnswer
	}
	s.Say(reply)
	s.Append("conversation", map[string]any{"role": "assistant", "content": reply, "category": topic})
}

func conversationContext(s *domain.State) string {
	turns, _ := s.Lookup("conversation")
	out, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return ""
	}
	return "Previous conversation:\n" + string(out)
}

func goodbye(_ context.Context, s *domain.State) error {
	if msg, failed := s.Failure(); failed {
		s.Sayf("Sorry, something went wrong on our end: %s", msg)
	}
	if s.Bool("needs_human") {
		s.Say("I'll have someone from our team call you within the next hour to help with your specific situation.")
	}
	s.Say("Thanks for choosing InsurAI! Remember, we're here 24/7 if you need anything.")
	return nil
}
