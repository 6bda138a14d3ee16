package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/insurai/pkg/domain"
)

type insuranceKey struct {
	kind  domain.InsuranceType
	refID int64
}

// Repository implements ports.InsuranceRepository and ports.PolicyRepository in memory.
type Repository struct {
	mu         sync.RWMutex
	insurances map[insuranceKey]domain.Insurance
	claims     []domain.Claim
	policies   []domain.IssuedPolicy
	now        func() time.Time
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		insurances: make(map[insuranceKey]domain.Insurance),
		now:        time.Now,
	}
}

// NewDemoRepository returns a repository holding the demo customer:
// health enrolment 1 (active), health enrolment 2 (inactive policy)
// and vehicle enrolment 1 (active).
func NewDemoRepository() *Repository {
	r := NewRepository()
	for _, ins := range DemoInsurances() {
		r.AddInsurance(ins)
	}
	return r
}

// DemoInsurances lists the enrolments of the demo customer.
func DemoInsurances() []domain.Insurance {
	user := domain.Insurance{
		UserID:    1,
		UserName:  "Demo User",
		UserEmail: "demo@example.com",
		UserPhone: "+916301989290",
		Status:    "active",
	}

	health := user
	health.RefID = 1
	health.Type = domain.InsuranceHealth
	health.PolicyName = "Health Premium"
	health.Premium = 12000
	health.Coverage = 500000
	health.PolicyActive = true

	stale := user
	stale.RefID = 2
	stale.Type = domain.InsuranceHealth
	stale.PolicyName = "Health Inactive"
	stale.Premium = 8000
	stale.Coverage = 100000

	vehicle := user
	vehicle.RefID = 1
	vehicle.Type = domain.InsuranceVehicle
	vehicle.PolicyName = "Vehicle Comprehensive"
	vehicle.Premium = 15000
	vehicle.Coverage = 700000
	vehicle.PolicyActive = true
	vehicle.VehicleNumber = "TS09AB1234"
	vehicle.VehicleType = "car"

	return []domain.Insurance{health, stale, vehicle}
}

// AddInsurance registers or replaces an enrolment.
func (r *Repository) AddInsurance(ins domain.Insurance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insurances[insuranceKey{ins.Type, ins.RefID}] = ins
}

// FindInsurance implements ports.InsuranceRepository.
func (r *Repository) FindInsurance(ctx context.Context, kind domain.InsuranceType, refID int64) (*domain.Insurance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ins, ok := r.insurances[insuranceKey{kind, refID}]
	if !ok {
		return nil, domain.ErrInsuranceNotFound
	}
	return &ins, nil
}

// ListClaims implements ports.InsuranceRepository.
func (r *Repository) ListClaims(ctx context.Context, kind domain.InsuranceType, refID int64) ([]domain.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Claim
	for _, c := range r.claims {
		if c.InsuranceType == kind && c.InsuranceRefID == refID {
			out = append(out, c)
		}
	}
	return out, nil
}

// CreateClaim implements ports.InsuranceRepository.
func (r *Repository) CreateClaim(ctx context.Context, claim domain.Claim) (domain.Claim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	claim.ID = int64(len(r.claims) + 1)
	claim.CreatedAt = r.now()
	claim.Number = domain.FormatClaimNumber(claim.CreatedAt.Year(), claim.ID)
	if claim.Status == "" {
		claim.Status = domain.ClaimStatusInitiated
	}
	r.claims = append(r.claims, claim)
	return claim, nil
}

// SavePolicy implements ports.PolicyRepository.
func (r *Repository) SavePolicy(ctx context.Context, policy domain.IssuedPolicy) (domain.IssuedPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	policy.ID = int64(len(r.policies) + 1)
	policy.IssuedAt = r.now()
	r.policies = append(r.policies, policy)
	return policy, nil
}

// Claims returns every stored claim.
func (r *Repository) Claims() []domain.Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.Claim(nil), r.claims...)
}

// Policies returns every issued policy.
func (r *Repository) Policies() []domain.IssuedPolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.IssuedPolicy(nil), r.policies...)
}
