// Package flows assembles the three customer flows from their collaborators.
package flows

import (
	"errors"
	"fmt"

	"github.com/aretw0/insurai/pkg/capability"
	"github.com/aretw0/insurai/pkg/flows/claims"
	"github.com/aretw0/insurai/pkg/flows/onboarding"
	"github.com/aretw0/insurai/pkg/flows/support"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/ports"
)

// Deps are the collaborators shared by the flows.
type Deps struct {
	// Reasoner backs every language capability (classification, replies,
	// document checks and plan advice).
	Reasoner ports.Reasoner

	Repository ports.InsuranceRepository
	Policies   ports.PolicyRepository
	Codes      ports.OneTimeCodes
	Mailer     ports.Mailer

	// MaxNegotiationTurns bounds the onboarding negotiation (0 = default).
	MaxNegotiationTurns int
	// MaxFollowups bounds the support follow-up loop (0 = default).
	MaxFollowups int
}

// All compiles the claims, onboarding and support flows.
func All(deps Deps) ([]*graph.Graph, error) {
	if deps.Reasoner == nil {
		return nil, errors.New("flows need a reasoner")
	}

	advisor, err := capability.NewPlanAdvisor(deps.Reasoner)
	if err != nil {
		return nil, err
	}
	classifier := capability.NewClassifier(deps.Reasoner)
	generator := capability.NewGenerator(deps.Reasoner)

	claimsFlow, err := claims.New(claims.Deps{
		Repository: deps.Repository,
		Codes:      deps.Codes,
		Documents:  capability.NewDocumentValidator(deps.Reasoner),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build %s flow: %w", claims.Name, err)
	}

	onboardingFlow, err := onboarding.New(onboarding.Deps{
		Classifier: classifier,
		Generator:  generator,
		Advisor:    advisor,
		Mailer:     deps.Mailer,
		Policies:   deps.Policies,
	}, onboarding.WithMaxNegotiationTurns(deps.MaxNegotiationTurns))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s flow: %w", onboarding.Name, err)
	}

	supportFlow, err := support.New(support.Deps{
		Classifier: classifier,
		Generator:  generator,
	}, support.WithMaxFollowups(deps.MaxFollowups))
	if err != nil {
		return nil, fmt.Errorf("failed to build %s flow: %w", support.Name, err)
	}

	return []*graph.Graph{claimsFlow, onboardingFlow, supportFlow}, nil
}
