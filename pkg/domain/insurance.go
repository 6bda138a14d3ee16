package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// InsuranceType distinguishes the two product lines.
type InsuranceType string

const (
	InsuranceHealth  InsuranceType = "health"
	InsuranceVehicle InsuranceType = "vehicle"
)

// ParseInsuranceType accepts "health" or "vehicle" in any case.
func ParseInsuranceType(s string) (InsuranceType, bool) {
	switch InsuranceType(strings.ToLower(strings.TrimSpace(s))) {
	case InsuranceHealth:
		return InsuranceHealth, true
	case InsuranceVehicle:
		return InsuranceVehicle, true
	}
	return "", false
}

// Insurance is a user's enrolment in a company policy.
type Insurance struct {
	RefID  int64         `json:"ref_id"`
	Type   InsuranceType `json:"type"`
	Status string        `json:"status"`

	UserID    int64  `json:"user_id"`
	UserName  string `json:"user_name"`
	UserEmail string `json:"user_email"`
	UserPhone string `json:"user_phone"`

	PolicyName   string  `json:"policy_name"`
	Coverage     float64 `json:"coverage"`
	Premium      float64 `json:"premium"`
	PolicyActive bool    `json:"policy_active"`

	VehicleNumber string `json:"vehicle_number,omitempty"`
	VehicleType   string `json:"vehicle_type,omitempty"`
}

// Active reports whether both the enrolment and the policy are active.
func (i Insurance) Active() bool {
	return i.PolicyActive && i.Status == "active"
}

// ClaimStatusInitiated is the status of a freshly raised claim.
const ClaimStatusInitiated = "initiated"

// Claim is a persisted claim request.
type Claim struct {
	ID     int64  `json:"id"`
	Number string `json:"claim_number"`

	UserID         int64         `json:"user_id"`
	InsuranceType  InsuranceType `json:"insurance_type"`
	InsuranceRefID int64         `json:"insurance_ref_id"`

	Reason         string  `json:"claim_reason"`
	DocumentText   string  `json:"document_text"`
	DocumentInfo   string  `json:"document_info"`
	DocumentDigest string  `json:"document_digest"`
	Amount         float64 `json:"claim_amount"`
	Reimbursement  float64 `json:"reimbursement"`
	Status         string  `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// FormatClaimNumber renders the immutable public identifier of a claim.
func FormatClaimNumber(year int, id int64) string {
	return fmt.Sprintf("CLM-%d-%05d", year, id)
}

// Reimbursement caps a claimed amount at the policy coverage.
func Reimbursement(amount, coverage float64) float64 {
	return math.Min(amount, coverage)
}

// IssuedPolicy is a policy sold through onboarding.
type IssuedPolicy struct {
	ID            int64         `json:"id"`
	Name          string        `json:"name"`
	Phone         string        `json:"phone"`
	Email         string        `json:"email"`
	InsuranceType InsuranceType `json:"insurance_type"`
	Plan          string        `json:"plan"`
	Premium       float64       `json:"premium"`
	Coverage      float64       `json:"coverage"`
	Benefits      string        `json:"benefits"`
	IssuedAt      time.Time     `json:"issued_at"`
}
