// Package onboarding declares the sales flow: Sarah collects the customer's
// details, quotes three plans, negotiates once and emails the policy.
package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"strings"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/flows/internal/format"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/ports"
)

// Name is the flow name used by the engine.
const Name = "onboarding"

// DefaultMaxNegotiationTurns bounds the consecutive turns spent in Negotiate.
const DefaultMaxNegotiationTurns = 8

// Intent labels of a negotiation reply.
const (
	IntentNegotiate  = "negotiate"
	IntentBenefits   = "benefits"
	IntentConfirm    = "confirm"
	IntentReject     = "reject"
	IntentReconsider = "reconsider"
	IntentOther      = "other"
)

var intents = []string{IntentNegotiate, IntentBenefits, IntentConfirm, IntentReject, IntentReconsider, IntentOther}

const sarahPersona = "You are Sarah, a friendly insurance agent having a natural phone conversation. " +
	"Talk like a real person: casual, warm and genuine, with contractions and natural phrases. " +
	"Avoid corporate speak, bullet points and being salesy. Say \"you\" instead of \"customer\". " +
	"Keep it short: one or two sentences."

const fallbackReply = "Hmm, let me think about that. This plan covers the main things - accidents, theft, roadside help. What do you think?"

// Deps are the collaborators of the onboarding flow.
type Deps struct {
	Classifier ports.Classifier
	Generator  ports.Generator
	Advisor    ports.PlanAdvisor
	Mailer     ports.Mailer
	Policies   ports.PolicyRepository
}

// Option configures the flow.
type Option func(*flow)

// WithMaxNegotiationTurns overrides DefaultMaxNegotiationTurns.
func WithMaxNegotiationTurns(turns int) Option {
	return func(f *flow) {
		if turns > 0 {
			f.maxTurns = turns
		}
	}
}

type flow struct {
	deps     Deps
	maxTurns int
}

// New compiles the onboarding flow.
func New(deps Deps, opts ...Option) (*graph.Graph, error) {
	if deps.Classifier == nil || deps.Generator == nil || deps.Advisor == nil || deps.Mailer == nil || deps.Policies == nil {
		return nil, errors.New("onboarding flow needs a classifier, generator, plan advisor, mailer and policy repository")
	}
	f := &flow{deps: deps, maxTurns: DefaultMaxNegotiationTurns}
	for _, opt := range opts {
		opt(f)
	}

	b := graph.New(Name).Start("AskName").Terminal("Farewell")

	b.Add("AskName").
		Ask("name", domain.Prompt("Hi there! I'm Sarah from InsurAI. I'm here to help you find the right insurance today.\n"+
			"Let's start with your name - what should I call you?")).
		Do(trim("name")).
		Go("AskPhone")

	b.Add("AskPhone").
		Ask("phone", domain.Prompt("And can I get your mobile number?")).
		Do(trim("phone")).
		Go("AskType")

	b.Add("AskType").
		Ask("insurance_choice", func(s *domain.State) string {
			return fmt.Sprintf("Nice to meet you, %s! So what brings you here today - looking for health insurance or something for your vehicle?",
				s.TextOr("name", "there"))
		}).
		Do(f.chooseType).
		Branch(func(_ context.Context, s *domain.State) string {
			if s.TextOr("insurance_type", "") == string(domain.InsuranceVehicle) {
				return "VehicleName"
			}
			return "HealthMembers"
		}, "HealthMembers", "VehicleName", "HealthMembers")

	b.Add("VehicleName").
		Ask("vehicle_name", domain.Prompt("What kind of vehicle are we talking about?")).
		Go("VehicleKms")
	b.Add("VehicleKms").
		Ask("kms", domain.Prompt("How many kilometers has it done so far?")).
		Go("VehicleAge")
	b.Add("VehicleAge").
		Ask("vehicle_age", domain.Prompt("And how old is it - in years?")).
		Go("VehicleEngine")
	b.Add("VehicleEngine").
		Ask("engine_cc", domain.Prompt("What's the engine size?")).
		Do(quoteVehicle).
		Go("PlanOptions")

	b.Add("HealthMembers").
		Ask("members", domain.Prompt("How many people do you want covered including yourself?")).
		Go("HealthAge")
	b.Add("HealthAge").
		Ask("average_age", domain.Prompt("What's the average age of everyone?")).
		Do(quoteHealth).
		Go("PlanOptions")

	b.Add("PlanOptions").
		Requires("base_premium", "base_coverage", "base_benefits").
		Ask("plan_choice", planPrompt).
		Call("plan_advisor", f.choosePlan).
		Branch(func(_ context.Context, s *domain.State) string {
			if s.Has("plan") {
				return "PolicyPresent"
			}
			return "PlanOptions"
		}, "PlanOptions", "PolicyPresent", "PlanOptions")

	b.Add("PolicyPresent").
		Do(presentPolicy).
		Go("Negotiate")

	b.Add("Negotiate").
		Ask("reply", domain.Prompt("What do you think?")).
		Call("llm", f.negotiate).
		MaxLoops(f.maxTurns).
		Branch(func(_ context.Context, s *domain.State) string {
			switch s.TextOr("intent", "") {
			case IntentConfirm:
				return "AskEmail"
			case IntentReconsider:
				return "PlanOptions"
			}
			return "Negotiate"
		}, "Negotiate", "AskEmail", "PlanOptions", "Negotiate")

	b.Add("AskEmail").
		Ask("email", domain.Prompt("Great! I'll need your email to send over the policy documents:")).
		Do(checkEmail).
		Branch(func(_ context.Context, s *domain.State) string {
			if s.Has("email") {
				return "EmailPolicy"
			}
			return "AskEmail"
		}, "AskEmail", "EmailPolicy", "AskEmail")

	b.Add("EmailPolicy").
		Requires("email", "plan", "premium", "coverage").
		Call("mailer", f.emailPolicy).
		End()

	b.Add("Farewell").Do(farewell)

	return b.Compile()
}

func trim(field string) domain.Transform {
	return func(_ context.Context, s *domain.State) error {
		v, _ := s.Text(field)
		return s.Set(field, strings.TrimSpace(v))
	}
}

func remember(s *domain.State, utterance string) {
	s.Append("conversation", map[string]any{"role": "user", "content": utterance})
}

func (f *flow) chooseType(_ context.Context, s *domain.State) error {
	choice := strings.TrimSpace(s.TextOr("insurance_choice", ""))
	remember(s, choice)

	lower := strings.ToLower(choice)
	kind := domain.InsuranceHealth
	if strings.Contains(lower, "vehicle") || strings.Contains(lower, "car") {
		kind = domain.InsuranceVehicle
	}
	if kind == domain.InsuranceVehicle {
		s.Say("Alright, let me get some details about your ride.")
	} else {
		s.Say("Great choice on the health insurance. Let me understand your family situation.")
	}
	return s.Set("insurance_type", string(kind))
}

func quoteVehicle(_ context.Context, s *domain.State) error {
	kms := format.ParseNumber(s.TextOr("kms", ""), 0)
	age := format.ParseNumber(s.TextOr("vehicle_age", ""), 0)
	cc := format.ParseNumber(s.TextOr("engine_cc", ""), 0)

	details := map[string]any{"name": s.TextOr("vehicle_name", ""), "kms": kms, "age": age, "cc": cc}
	premium := 5000 + age*200 + (kms/10000)*300
	return setQuote(s, details, float64(premium), 200000, "Accident cover, theft protection, roadside assistance")
}

func quoteHealth(_ context.Context, s *domain.State) error {
	members := format.ParseNumber(s.TextOr("members", ""), 1)
	age := format.ParseNumber(s.TextOr("average_age", ""), 30)

	details := map[string]any{"members": members, "age": age}
	premium := 8000 + members*2000 + (age/10)*1000
	return setQuote(s, details, float64(premium), 500000, "Hospitalization cover, critical illness cover, free annual health check-up")
}

func setQuote(s *domain.State, details map[string]any, premium, coverage float64, benefits string) error {
	if err := s.Set("details", details); err != nil {
		return err
	}
	if err := s.Set("base_premium", premium); err != nil {
		return err
	}
	if err := s.Set("base_coverage", coverage); err != nil {
		return err
	}
	return s.Set("base_benefits", benefits)
}

// Plan is one of the three offers built from a quote.
type Plan struct {
	Key      string
	Name     string
	Premium  float64
	Coverage float64
	Benefits string
}

// Plans derives the Basic, Standard and Premium offers from a base quote.
func Plans(premium, coverage float64, benefits string) []Plan {
	return []Plan{
		{Key: "1", Name: "Basic", Premium: math.Trunc(premium * 0.8), Coverage: math.Trunc(coverage * 0.8), Benefits: benefits},
		{Key: "2", Name: "Standard", Premium: math.Trunc(premium), Coverage: coverage, Benefits: benefits},
		{Key: "3", Name: "Premium", Premium: math.Trunc(premium * 1.2), Coverage: math.Trunc(coverage * 1.5), Benefits: benefits + ", legal protection cover"},
	}
}

func plansOf(s *domain.State) []Plan {
	premium, _ := s.Float("base_premium")
	coverage, _ := s.Float("base_coverage")
	return Plans(premium, coverage, s.TextOr("base_benefits", ""))
}

func planPrompt(s *domain.State) string {
	plans := plansOf(s)
	return strings.Join([]string{
		fmt.Sprintf("Okay %s, based on what you've told me, I've got three options for you:", s.TextOr("name", "there")),
		fmt.Sprintf("The Basic plan is %d rupees - covers the essentials, keeps costs down.", int(plans[0].Premium)),
		fmt.Sprintf("Standard is %d - that's what most people go with, good balance.", int(plans[1].Premium)),
		fmt.Sprintf("And Premium is %d - gives you everything plus legal cover too.", int(plans[2].Premium)),
		"What feels right to you? You can just say 1, 2, 3 or tell me what you're thinking:",
	}, "\n")
}

// choosePlan resolves the answer by key, then by plan name, then through
// the plan advisor. An unresolved answer leaves "plan" unset so the
// question is asked again.
func (f *flow) choosePlan(ctx context.Context, s *domain.State) error {
	answer := strings.TrimSpace(s.TextOr("plan_choice", ""))
	plans := plansOf(s)
	s.Delete("plan")

	for _, p := range plans {
		if answer == p.Key {
			return applyPlan(s, p)
		}
	}
	lower := strings.ToLower(answer)
	for _, p := range plans {
		if strings.Contains(lower, strings.ToLower(p.Name)) {
			return applyPlan(s, p)
		}
	}

	if p, reason, ok := f.advise(ctx, answer, plans); ok {
		s.Sayf("You know what, from what you're saying, I think the %s plan makes sense.", p.Name)
		if reason != "" {
			s.Say(reason)
		}
		return applyPlan(s, p)
	}
	s.Say("Sorry, I didn't quite catch that. Let me ask again.")
	return nil
}

// advise asks the plan advisor which offer fits the utterance.
func (f *flow) advise(ctx context.Context, utterance string, plans []Plan) (Plan, string, bool) {
	choice, err := f.deps.Advisor.ChoosePlan(ctx, ports.PlanRequest{
		Utterance: utterance,
		Plans: []string{
			"Basic - cheaper premium, basic coverage",
			"Standard - good balance, most popular",
			"Premium - higher premium, comprehensive coverage with extras",
		},
	})
	if err != nil {
		return Plan{}, "", false
	}
	for _, p := range plans {
		if choice.Plan == p.Key {
			return p, strings.TrimSpace(choice.Reason), true
		}
	}
	return Plan{}, "", false
}

func applyPlan(s *domain.State, p Plan) error {
	if err := s.Set("premium", p.Premium); err != nil {
		return err
	}
	if err := s.Set("coverage", p.Coverage); err != nil {
		return err
	}
	if err := s.Set("benefits", p.Benefits); err != nil {
		return err
	}
	return s.Set("plan", p.Name)
}

func presentPolicy(_ context.Context, s *domain.State) error {
	premium, _ := s.Float("premium")
	coverage, _ := s.Float("coverage")
	s.Sayf("Perfect! So here's what we've got for you, %s:", s.TextOr("name", "there"))
	s.Sayf("You'll pay %d rupees for this", int(premium))
	s.Sayf("Coverage up to %s rupees", format.Amount(coverage))
	s.Sayf("And you get: %s", s.TextOr("benefits", ""))
	return nil
}

func policyContext(s *domain.State) string {
	premium, _ := s.Float("premium")
	coverage, _ := s.Float("coverage")
	return fmt.Sprintf("Current policy: Premium INR %d, Coverage INR %s, Benefits: %s",
		int(premium), format.Amount(coverage), s.TextOr("benefits", ""))
}

func conversationContext(s *domain.State) string {
	turns, _ := s.Lookup("conversation")
	out, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return ""
	}
	return "Conversation so far:\n" + string(out)
}

// negotiate handles one customer reply to the presented policy.
func (f *flow) negotiate(ctx context.Context, s *domain.State) error {
	reply := strings.TrimSpace(s.TextOr("reply", ""))
	remember(s, reply)

	intent := f.classify(ctx, s, reply)
	if err := s.Set("intent", intent); err != nil {
		return err
	}

	switch intent {
	case IntentNegotiate:
		if s.Bool("discount_applied") {
			s.Say("I hear you on the price, but honestly this is already our best rate. You're getting solid coverage and we're really good with claims.")
			return nil
		}
		premium, _ := s.Float("premium")
		discounted := math.Round(premium*0.95*100) / 100
		if err := s.Set("premium", discounted); err != nil {
			return err
		}
		if err := s.Set("discount_applied", true); err != nil {
			return err
		}
		s.Sayf("You know what, let me see what I can do... I can bring it down to %d rupees. That's really the best I can offer.", int(discounted))

	case IntentConfirm:
		if err := s.Set("confirmed", true); err != nil {
			return err
		}
		s.Sayf("Excellent! I'm so glad we found something that works for you, %s. Let me get this sorted out.", s.TextOr("name", "there"))

	case IntentReject:
		_ = s.Set("confirmed", false)
		s.Say("No worries at all. If things change or you want to chat about options later, just give us a call, okay?")
		return &domain.ValidationError{Field: "reply", Message: "User rejected the policy."}

	case IntentReconsider:
		s.Delete("plan")
		p, reason, ok := f.advise(ctx, reply, plansOf(s))
		switch {
		case !ok:
			s.Say("Sure thing, let's look at the other options again.")
		case reason == "":
			s.Sayf("Actually, let me show you the %s plan instead.", p.Name)
		default:
			s.Sayf("Actually, let me show you the %s plan instead - %s.", p.Name, strings.TrimSuffix(reason, "."))
		}

	default:
		answer, err := f.deps.Generator.Generate(ctx, ports.Generation{
			Persona:   sarahPersona,
			Context:   fmt.Sprintf("You are talking to %s over the phone.\n\n%s\n\n%s", s.TextOr("name", "the customer"), policyContext(s), conversationContext(s)),
			Utterance: reply,
		})
		if err != nil {
			answer = fallbackReply
		}
		s.Say(answer)
	}
	return nil
}

// classify falls back to "other" on failures and unknown labels.
func (f *flow) classify(ctx context.Context, s *domain.State, reply string) string {
	label, err := f.deps.Classifier.Classify(ctx, ports.Classification{
		Instruction: "You are an insurance assistant that classifies user intent.",
		Context:     conversationContext(s) + "\n\n" + policyContext(s),
		Utterance:   reply,
		Labels:      intents,
	})
	if err != nil {
		return IntentOther
	}
	label = strings.ToLower(strings.TrimSpace(label))
	for _, known := range intents {
		if label == known {
			return label
		}
	}
	return IntentOther
}

func checkEmail(_ context.Context, s *domain.State) error {
	raw := strings.TrimSpace(s.TextOr("email", ""))
	addr, err := mail.ParseAddress(raw)
	if err != nil {
		s.Delete("email")
		s.Say("Hmm, that doesn't look like an email address. Could you type it again?")
		return nil
	}
	return s.Set("email", addr.Address)
}

func (f *flow) emailPolicy(ctx context.Context, s *domain.State) error {
	premium, _ := s.Float("premium")
	coverage, _ := s.Float("coverage")
	kind := domain.InsuranceType(s.TextOr("insurance_type", string(domain.InsuranceHealth)))

	policy := domain.IssuedPolicy{
		Name:          s.TextOr("name", "Customer"),
		Phone:         s.TextOr("phone", ""),
		Email:         s.TextOr("email", ""),
		InsuranceType: kind,
		Plan:          s.TextOr("plan", ""),
		Premium:       premium,
		Coverage:      coverage,
		Benefits:      s.TextOr("benefits", ""),
	}

	email := ports.Email{
		To:      policy.Email,
		Subject: fmt.Sprintf("Your %s %s Policy - All Set!", policy.Plan, title(string(kind))),
		Text:    policyEmail(policy),
		Attachments: []ports.Attachment{{
			Filename: "policy.txt",
			Content:  []byte(PolicyDocument(policy)),
		}},
	}
	if err := f.deps.Mailer.SendEmail(ctx, email); err != nil {
		return err
	}

	saved, err := f.deps.Policies.SavePolicy(ctx, policy)
	if err != nil {
		return &domain.CapabilityError{Capability: "policy store", Err: err}
	}
	if err := s.Set("policy_id", saved.ID); err != nil {
		return err
	}

	s.Sayf("Perfect! I've sent everything to %s. You should get it in a couple minutes.", policy.Email)
	return nil
}

func policyEmail(p domain.IssuedPolicy) string {
	return fmt.Sprintf(`Hi %s,

Great talking with you today! Thanks for trusting us with your insurance.

Here's what we set up for you:
- You'll pay INR %d
- Coverage up to INR %s
- Includes: %s

I've attached your official policy document. Keep it handy!

If you have any questions at all, just give me a call.

Best,
Sarah
InsurAI
`, p.Name, int(p.Premium), format.Amount(p.Coverage), p.Benefits)
}

// PolicyDocument renders the plain-text policy attached to the email.
func PolicyDocument(p domain.IssuedPolicy) string {
	var b strings.Builder
	b.WriteString("InsurAI Insurance Policy Document\n\n")
	fmt.Fprintf(&b, "Policy Holder: %s\n", p.Name)
	fmt.Fprintf(&b, "Policy Type: %s\n", title(string(p.InsuranceType)))
	fmt.Fprintf(&b, "Policy Name: %s\n", p.Plan)
	fmt.Fprintf(&b, "Premium: INR %s/year\n", format.Amount(p.Premium))
	fmt.Fprintf(&b, "Coverage: INR %s\n", format.Amount(p.Coverage))
	fmt.Fprintf(&b, "Benefits: %s\n\n", p.Benefits)
	b.WriteString("This is a system-generated insurance policy.\n")
	return b.String()
}

func farewell(_ context.Context, s *domain.State) error {
	msg, failed := s.Failure()
	switch {
	case !failed:
		s.Say("Thanks for choosing us today! Take care.")
	case s.TextOr("intent", "") != IntentReject:
		s.Sayf("Sorry, we couldn't finish setting up your policy: %s", msg)
	}
	return nil
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
