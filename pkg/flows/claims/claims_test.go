package claims_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/insurai/internal/runtime"
	"github.com/aretw0/insurai/pkg/adapters/memory"
	"github.com/aretw0/insurai/pkg/capability"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/flows/claims"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDocuments struct {
	verdict ports.DocumentVerdict
	err     error
	calls   int
}

func (s *stubDocuments) ValidateDocument(context.Context, domain.InsuranceType, string) (ports.DocumentVerdict, error) {
	s.calls++
	return s.verdict, s.err
}

type fixture struct {
	repo   *memory.Repository
	outbox *memory.Outbox
	docs   *stubDocuments
	exec   *runtime.Executor

	res runtime.Result
	run func(domain.Input)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		repo:   memory.NewDemoRepository(),
		outbox: memory.NewOutbox(nil),
		docs:   &stubDocuments{verdict: ports.DocumentVerdict{Valid: true, Info: "Hospital bill, Apollo, 2 days"}},
		exec:   runtime.NewExecutor(),
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	codes := capability.NewOTP(memory.NewCodeStore(), f.outbox,
		capability.WithCodeGenerator(func() (string, error) { return "482913", nil }))
	g, err := claims.New(claims.Deps{Repository: f.repo, Codes: codes, Documents: f.docs})
	require.NoError(t, err)

	f.res, err = f.exec.Run(context.Background(), g, nil, "")
	require.NoError(t, err)
	f.run = func(in domain.Input) {
		t.Helper()
		require.Equal(t, domain.StatusSuspended, f.res.Status, "flow already finished: %v", f.res.State.Fields[domain.FieldError])
		require.Equal(t, in.Name, f.res.Awaiting)
		f.res, err = f.exec.Run(context.Background(), g, f.res.State, f.res.SuspendedAt, in)
		require.NoError(t, err)
	}
}

func (f *fixture) answer(name string, value any) runtime.Result {
	f.run(domain.Input{Name: name, Value: value})
	return f.res
}

func TestClaims_HappyPathCapsReimbursement(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	assert.Equal(t, "Welcome to the Claims Desk! Is this claim for Health or Vehicle insurance?", f.res.Prompt)

	res := f.answer("insurance_type", " Health ")
	assert.Equal(t, "Please enter your User Health Insurance ID:", res.Prompt)

	res = f.answer("insurance_ref_id", "1")
	assert.Contains(t, res.Messages, "User: Demo User | demo@example.com | +916301989290")
	assert.Equal(t, "You have no existing claims. Do you want to raise one? (yes/no)", res.Prompt)

	res = f.answer("raise_claim", "yes")
	assert.Equal(t, "otp", res.Awaiting)
	require.Len(t, f.outbox.SMS(), 1)
	assert.Equal(t, "+916301989290", f.outbox.SMS()[0].To)

	f.answer("otp", "482913")
	f.answer("claim_amount", "600000")
	f.answer("claim_reason", "Hospitalisation")
	res = f.answer("document_text", "Apollo hospital discharge summary")

	require.Equal(t, domain.StatusDone, res.Status)
	wantNumber := fmt.Sprintf("CLM-%d-00001", time.Now().Year())
	assert.Equal(t, []string{
		"Claim " + wantNumber + " initiated successfully for Demo User.",
		"Amount: ₹600000 | Reason: Hospitalisation | Status: Initiated",
		"Approved Reimbursement: ₹500,000",
	}, res.Messages)

	saved := f.repo.Claims()
	require.Len(t, saved, 1)
	assert.Equal(t, wantNumber, saved[0].Number)
	assert.Equal(t, 500000.0, saved[0].Reimbursement)
	assert.Equal(t, 600000.0, saved[0].Amount)
	assert.Equal(t, domain.ClaimStatusInitiated, saved[0].Status)
	assert.Equal(t, "Hospital bill, Apollo, 2 days", saved[0].DocumentInfo)
	assert.Equal(t, capability.DocumentDigest("Apollo hospital discharge summary"), saved[0].DocumentDigest)

	assert.True(t, res.State.Bool(domain.FieldSessionComplete))
	assert.False(t, res.State.Has("otp"), "the code must not stay in the session")
	assert.True(t, res.State.Bool("otp_verified"))
}

func TestClaims_VehicleConfirmationNamesThePlate(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.answer("insurance_type", "vehicle")
	res := f.answer("insurance_ref_id", "1")
	assert.Contains(t, res.Messages, "Vehicle: car | Plate: TS09AB1234")

	f.answer("raise_claim", "y")
	f.answer("otp", "482913")
	f.answer("claim_amount", 12000)
	f.answer("claim_reason", "Bumper damage")
	res = f.answer("document_text", "Garage invoice")

	require.Equal(t, domain.StatusDone, res.Status)
	assert.Contains(t, res.Messages, "Approved Reimbursement: ₹12,000")
	assert.Contains(t, res.Messages, "Vehicle: car | Plate: TS09AB1234")
}

func TestClaims_ExistingClaimsAreListed(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.CreateClaim(context.Background(), domain.Claim{
		UserID: 1, InsuranceType: domain.InsuranceHealth, InsuranceRefID: 1,
		Reason: "Checkup", Amount: 2500, Reimbursement: 2500, Status: domain.ClaimStatusInitiated,
	})
	require.NoError(t, err)

	f.start(t)
	f.answer("insurance_type", "health")
	res := f.answer("insurance_ref_id", "1")

	number := fmt.Sprintf("CLM-%d-00001", time.Now().Year())
	assert.Contains(t, res.Messages, "You already have the following claims:")
	assert.Contains(t, res.Messages, "- "+number+" | Amount: ₹2500 | Reason: Checkup | Status: initiated")
	assert.Equal(t, "Do you want to raise another claim? (yes/no)", res.Prompt)

	res = f.answer("raise_claim", "no")
	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	assert.Equal(t, []string{"User chose not to raise another claim."}, res.Messages)
	assert.Len(t, f.repo.Claims(), 1)
}

func TestClaims_FailuresShortCircuit(t *testing.T) {
	tests := []struct {
		name    string
		answers []domain.Input
		want    string
	}{
		{
			name:    "invalid insurance type",
			answers: []domain.Input{{Name: "insurance_type", Value: "life"}},
			want:    "Invalid insurance type.",
		},
		{
			name: "unknown enrolment",
			answers: []domain.Input{
				{Name: "insurance_type", Value: "health"},
				{Name: "insurance_ref_id", Value: "99"},
			},
			want: "Insurance not found.",
		},
		{
			name: "inactive policy",
			answers: []domain.Input{
				{Name: "insurance_type", Value: "health"},
				{Name: "insurance_ref_id", Value: "2"},
			},
			want: "This health insurance is inactive.",
		},
		{
			name: "declined",
			answers: []domain.Input{
				{Name: "insurance_type", Value: "health"},
				{Name: "insurance_ref_id", Value: "1"},
				{Name: "raise_claim", Value: "maybe"},
			},
			want: "User chose not to raise a claim.",
		},
		{
			name: "wrong code",
			answers: []domain.Input{
				{Name: "insurance_type", Value: "health"},
				{Name: "insurance_ref_id", Value: "1"},
				{Name: "raise_claim", Value: "yes"},
				{Name: "otp", Value: "000000"},
			},
			want: "OTP verification failed.",
		},
		{
			name: "negative amount",
			answers: []domain.Input{
				{Name: "insurance_type", Value: "health"},
				{Name: "insurance_ref_id", Value: "1"},
				{Name: "raise_claim", Value: "yes"},
				{Name: "otp", Value: "482913"},
				{Name: "claim_amount", Value: "-10"},
			},
			want: "claim_amount must not be negative",
		},
		{
			name: "non-finite amount",
			answers: []domain.Input{
				{Name: "insurance_type", Value: "health"},
				{Name: "insurance_ref_id", Value: "1"},
				{Name: "raise_claim", Value: "yes"},
				{Name: "otp", Value: "482913"},
				{Name: "claim_amount", Value: "NaN"},
			},
			want: "claim_amount must be a finite number",
		},
		{
			name: "infinite amount",
			answers: []domain.Input{
				{Name: "insurance_type", Value: "health"},
				{Name: "insurance_ref_id", Value: "1"},
				{Name: "raise_claim", Value: "yes"},
				{Name: "otp", Value: "482913"},
				{Name: "claim_amount", Value: "+Inf"},
			},
			want: "claim_amount must be a finite number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.start(t)
			for _, in := range tt.answers {
				f.answer(in.Name, in.Value)
			}
			assert.Equal(t, domain.StatusDoneWithError, f.res.Status)
			msg, _ := f.res.State.Failure()
			assert.Equal(t, tt.want, msg)
			assert.Equal(t, []string{tt.want}, f.res.Messages[len(f.res.Messages)-1:])
			assert.Empty(t, f.repo.Claims(), "no claim may be written on failure")
		})
	}
}

func TestClaims_RejectedDocument(t *testing.T) {
	f := newFixture(t)
	f.docs.verdict = ports.DocumentVerdict{Valid: false}
	f.start(t)

	f.answer("insurance_type", "health")
	f.answer("insurance_ref_id", "1")
	f.answer("raise_claim", "yes")
	f.answer("otp", "482913")
	f.answer("claim_amount", "100")
	f.answer("claim_reason", "Fever")
	res := f.answer("document_text", "a shopping list")

	assert.Equal(t, domain.StatusDoneWithError, res.Status)
	assert.Equal(t, []string{"Invalid document."}, res.Messages)
	assert.Equal(t, 1, f.docs.calls)
	assert.Empty(t, f.repo.Claims())
}

func TestClaims_ValidatorOutage(t *testing.T) {
	f := newFixture(t)
	f.docs.err = &domain.CapabilityError{Capability: "document_validator", Err: errors.New("502")}
	f.start(t)

	f.answer("insurance_type", "health")
	f.answer("insurance_ref_id", "1")
	f.answer("raise_claim", "yes")
	f.answer("otp", "482913")
	f.answer("claim_amount", "100")
	f.answer("claim_reason", "Fever")
	res := f.answer("document_text", "Discharge summary")

	msg, _ := res.State.Failure()
	assert.Equal(t, "The document_validator service is unavailable right now. Please try again later.", msg)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := claims.New(claims.Deps{})
	assert.Error(t, err)
}
