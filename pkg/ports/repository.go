package ports

import (
	"context"

	"github.com/aretw0/insurai/pkg/domain"
)

// InsuranceRepository is the relational store used by the claims flow.
type InsuranceRepository interface {
	// FindInsurance returns the enrolment with its policy and user.
	// Returns domain.ErrInsuranceNotFound when there is no match.
	FindInsurance(ctx context.Context, kind domain.InsuranceType, refID int64) (*domain.Insurance, error)

	// ListClaims returns the claims already raised against an enrolment.
	ListClaims(ctx context.Context, kind domain.InsuranceType, refID int64) ([]domain.Claim, error)

	// CreateClaim persists a claim. The ID, claim number and creation time
	// are assigned by the repository; the claim number never changes afterwards.
	CreateClaim(ctx context.Context, claim domain.Claim) (domain.Claim, error)
}

// PolicyRepository persists policies sold through onboarding.
type PolicyRepository interface {
	SavePolicy(ctx context.Context, policy domain.IssuedPolicy) (domain.IssuedPolicy, error)
}
