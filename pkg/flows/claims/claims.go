// Package claims declares the claims intake flow: the customer identifies an
// enrolment, proves ownership of the registered phone with a one-time code,
// describes the claim and gets a claim number back.
package claims

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/insurai/pkg/capability"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/flows/internal/format"
	"github.com/aretw0/insurai/pkg/graph"
	"github.com/aretw0/insurai/pkg/ports"
)

// Name is the flow name used by the engine.
const Name = "claims"

// Deps are the collaborators of the claims flow.
type Deps struct {
	Repository ports.InsuranceRepository
	Codes      ports.OneTimeCodes
	Documents  ports.DocumentValidator
}

// New compiles the claims flow.
func New(deps Deps) (*graph.Graph, error) {
	if deps.Repository == nil || deps.Codes == nil || deps.Documents == nil {
		return nil, errors.New("claims flow needs a repository, one-time codes and a document validator")
	}
	f := &flow{deps: deps}

	b := graph.New(Name).Start("Greet").Terminal("Confirm")

	b.Add("Greet").
		Ask("insurance_type", domain.Prompt("Welcome to the Claims Desk! Is this claim for Health or Vehicle insurance?")).
		Do(f.greet).
		Go("AskReference")

	b.Add("AskReference").
		Ask("insurance_ref_id", func(s *domain.State) string {
			kind := s.TextOr("insurance_type", "")
			return fmt.Sprintf("Please enter your User %s Insurance ID:", capitalize(kind))
		}).
		Do(f.reference).
		Go("VerifyInsurance")

	b.Add("VerifyInsurance").
		Requires("insurance_type", "insurance_ref_id").
		Call("repository", f.verifyInsurance).
		Go("ShowClaims")

	b.Add("ShowClaims").
		Call("repository", f.showClaims).
		Go("ConfirmRaise")

	b.Add("ConfirmRaise").
		Ask("raise_claim", func(s *domain.State) string {
			if claims, _ := s.Lookup("existing_claims"); len(asList(claims)) > 0 {
				return "Do you want to raise another claim? (yes/no)"
			}
			return "You have no existing claims. Do you want to raise one? (yes/no)"
		}).
		Do(f.confirmRaise).
		Go("SendCode")

	b.Add("SendCode").
		Call("otp", f.sendCode).
		Go("VerifyCode")

	b.Add("VerifyCode").
		Ask("otp", domain.Prompt("Enter the OTP you received:")).
		Call("otp", f.verifyCode).
		Go("ClaimAmount")

	b.Add("ClaimAmount").
		Ask("claim_amount", domain.Prompt("Enter claim amount:")).
		Do(f.amount).
		Go("ClaimReason")

	b.Add("ClaimReason").
		Ask("claim_reason", domain.Prompt("Enter claim reason:")).
		Go("ClaimDocument")

	b.Add("ClaimDocument").
		Ask("document_text", domain.Prompt("Provide claim document text:")).
		Go("ValidateDocument")

	b.Add("ValidateDocument").
		Requires("document_text").
		Call("document_validator", f.validateDocument).
		Go("SaveClaim")

	b.Add("SaveClaim").
		Requires("user_id", "claim_amount", "claim_reason", "document_info", "policy_coverage").
		Call("repository", f.saveClaim).
		End()

	b.Add("Confirm").Do(confirm)

	return b.Compile()
}

type flow struct {
	deps Deps
}

func (f *flow) greet(_ context.Context, s *domain.State) error {
	raw, _ := s.Text("insurance_type")
	kind, ok := domain.ParseInsuranceType(raw)
	if !ok {
		return &domain.ValidationError{Field: "insurance_type", Message: "Invalid insurance type."}
	}
	return s.Set("insurance_type", string(kind))
}

func (f *flow) reference(_ context.Context, s *domain.State) error {
	raw, _ := s.Text("insurance_ref_id")
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return &domain.ValidationError{Field: "insurance_ref_id", Message: "Insurance ID must be a positive number.", Err: err}
	}
	return s.Set("insurance_ref_id", id)
}

func (f *flow) verifyInsurance(ctx context.Context, s *domain.State) error {
	kind := domain.InsuranceType(s.TextOr("insurance_type", ""))
	refID, _ := s.Int("insurance_ref_id")

	ins, err := f.deps.Repository.FindInsurance(ctx, kind, int64(refID))
	if errors.Is(err, domain.ErrInsuranceNotFound) {
		return &domain.ValidationError{Field: "insurance_ref_id", Message: "Insurance not found.", Err: err}
	}
	if err != nil {
		return &domain.CapabilityError{Capability: "repository", Err: err}
	}
	if !ins.Active() {
		return &domain.ValidationError{
			Field:   "insurance_ref_id",
			Message: fmt.Sprintf("This %s insurance is inactive.", kind),
		}
	}

	for name, value := range map[string]any{
		"user_id":         ins.UserID,
		"user_name":       ins.UserName,
		"user_email":      ins.UserEmail,
		"user_phone":      ins.UserPhone,
		"policy_name":     ins.PolicyName,
		"policy_coverage": ins.Coverage,
		"policy_premium":  ins.Premium,
	} {
		if err := s.Set(name, value); err != nil {
			return err
		}
	}

	s.Sayf("User: %s | %s | %s", ins.UserName, ins.UserEmail, ins.UserPhone)
	s.Sayf("Policy: %s | Premium: ₹%s/yr | Coverage: ₹%s", ins.PolicyName, format.Amount(ins.Premium), format.Amount(ins.Coverage))
	if ins.VehicleNumber != "" {
		_ = s.Set("vehicle_number", ins.VehicleNumber)
		_ = s.Set("vehicle_type", ins.VehicleType)
		s.Sayf("Vehicle: %s | Plate: %s", ins.VehicleType, ins.VehicleNumber)
	}
	return nil
}

func (f *flow) showClaims(ctx context.Context, s *domain.State) error {
	kind := domain.InsuranceType(s.TextOr("insurance_type", ""))
	refID, _ := s.Int("insurance_ref_id")

	claims, err := f.deps.Repository.ListClaims(ctx, kind, int64(refID))
	if err != nil {
		return &domain.CapabilityError{Capability: "repository", Err: err}
	}

	existing := make([]any, 0, len(claims))
	for _, c := range claims {
		existing = append(existing, map[string]any{
			"claim_number": c.Number,
			"claim_amount": c.Amount,
			"claim_reason": c.Reason,
			"status":       c.Status,
		})
	}
	if err := s.Set("existing_claims", existing); err != nil {
		return err
	}

	if len(claims) > 0 {
		s.Say("You already have the following claims:")
		for _, c := range claims {
			s.Sayf("- %s | Amount: ₹%s | Reason: %s | Status: %s", c.Number, format.Amount(c.Amount), c.Reason, c.Status)
		}
	}
	return nil
}

func (f *flow) confirmRaise(_ context.Context, s *domain.State) error {
	answer, _ := s.Text("raise_claim")
	if format.Yes(answer) {
		return s.Set("raise_claim", true)
	}
	msg := "User chose not to raise a claim."
	if claims, _ := s.Lookup("existing_claims"); len(asList(claims)) > 0 {
		msg = "User chose not to raise another claim."
	}
	return &domain.ValidationError{Field: "raise_claim", Message: msg}
}

func (f *flow) sendCode(ctx context.Context, s *domain.State) error {
	phone := s.TextOr("user_phone", "")
	if phone == "" {
		return &domain.ValidationError{Field: "user_phone", Message: "User phone not found."}
	}
	if err := f.deps.Codes.Send(ctx, phone); err != nil {
		return err
	}
	s.Say("We've sent a one-time code to your registered mobile number.")
	return nil
}

// verifyCode checks the supplied code once and drops it from the state.
func (f *flow) verifyCode(ctx context.Context, s *domain.State) error {
	code, _ := s.Text("otp")
	s.Delete("otp")

	ok, err := f.deps.Codes.Verify(ctx, s.TextOr("user_phone", ""), code)
	if err != nil {
		return err
	}
	if err := s.Set("otp_verified", ok); err != nil {
		return err
	}
	if !ok {
		return &domain.ValidationError{Field: "otp", Message: "OTP verification failed."}
	}
	return nil
}

func (f *flow) amount(_ context.Context, s *domain.State) error {
	amount, ok := s.Float("claim_amount")
	if !ok {
		return &domain.ValidationError{Field: "claim_amount", Message: "Claim amount must be a number."}
	}
	return s.Set("claim_amount", amount)
}

func (f *flow) validateDocument(ctx context.Context, s *domain.State) error {
	kind := domain.InsuranceType(s.TextOr("insurance_type", ""))
	text := s.TextOr("document_text", "")

	verdict, err := f.deps.Documents.ValidateDocument(ctx, kind, text)
	if err != nil {
		return err
	}
	if !verdict.Valid {
		return &domain.ValidationError{Field: "document_text", Message: "Invalid document."}
	}
	if err := s.Set("document_info", verdict.Info); err != nil {
		return err
	}
	return s.Set("document_digest", capability.DocumentDigest(text))
}

// claimView is the typed slice of the state SaveClaim needs.
type claimView struct {
	UserID         int64   `mapstructure:"user_id"`
	InsuranceType  string  `mapstructure:"insurance_type"`
	InsuranceRefID int64   `mapstructure:"insurance_ref_id"`
	Amount         float64 `mapstructure:"claim_amount"`
	Reason         string  `mapstructure:"claim_reason"`
	DocumentText   string  `mapstructure:"document_text"`
	DocumentInfo   string  `mapstructure:"document_info"`
	DocumentDigest string  `mapstructure:"document_digest"`
	Coverage       float64 `mapstructure:"policy_coverage"`
}

func (f *flow) saveClaim(ctx context.Context, s *domain.State) error {
	var v claimView
	if err := s.Decode(&v); err != nil {
		return &domain.ValidationError{Message: "Claim failed: " + err.Error(), Err: err}
	}

	reimbursement := domain.Reimbursement(v.Amount, v.Coverage)
	if err := s.Set("reimbursement", reimbursement); err != nil {
		return err
	}

	claim, err := f.deps.Repository.CreateClaim(ctx, domain.Claim{
		UserID:         v.UserID,
		InsuranceType:  domain.InsuranceType(v.InsuranceType),
		InsuranceRefID: v.InsuranceRefID,
		Reason:         v.Reason,
		DocumentText:   v.DocumentText,
		DocumentInfo:   v.DocumentInfo,
		DocumentDigest: v.DocumentDigest,
		Amount:         v.Amount,
		Reimbursement:  reimbursement,
		Status:         domain.ClaimStatusInitiated,
	})
	if err != nil {
		return &domain.ValidationError{Message: "Claim failed: " + err.Error(), Err: err}
	}

	if err := s.Set("claim_id", claim.ID); err != nil {
		return err
	}
	return s.Set("claim_number", claim.Number)
}

// confirm reports the outcome. It runs once, on success or failure.
func confirm(_ context.Context, s *domain.State) error {
	if msg, failed := s.Failure(); failed {
		s.Say(msg)
		return nil
	}

	amount, _ := s.Float("claim_amount")
	reimbursement, _ := s.Float("reimbursement")
	s.Sayf("Claim %s initiated successfully for %s.", s.TextOr("claim_number", ""), s.TextOr("user_name", ""))
	s.Sayf("Amount: ₹%s | Reason: %s | Status: Initiated", format.Amount(amount), s.TextOr("claim_reason", ""))
	s.Sayf("Approved Reimbursement: ₹%s", format.Grouped(reimbursement))
	if s.TextOr("insurance_type", "") == string(domain.InsuranceVehicle) {
		s.Sayf("Vehicle: %s | Plate: %s", s.TextOr("vehicle_type", ""), s.TextOr("vehicle_number", ""))
	}
	return nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func asList(v any) []any {
	list, _ := v.([]any)
	return list
}
