package domain_test

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_MonetaryFieldsRejectNegatives(t *testing.T) {
	s := domain.NewState()

	invalid := []struct {
		name  string
		value any
	}{
		{name: "negative", value: -1.0},
		{name: "negative text", value: "-20"},
		{name: "nan", value: math.NaN()},
		{name: "nan text", value: "NaN"},
		{name: "positive infinity", value: math.Inf(1)},
		{name: "infinity text", value: "Inf"},
		{name: "negative infinity text", value: "-Inf"},
		{name: "not a number", value: "a lot"},
	}
	for _, field := range []string{"premium", "coverage", "claim_amount", "reimbursement"} {
		for _, tt := range invalid {
			t.Run(field+"/"+tt.name, func(t *testing.T) {
				err := s.Set(field, tt.value)
				var verr *domain.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, field, verr.Field)
				assert.False(t, s.Has(field))
			})
		}
	}

	require.NoError(t, s.Set("premium", 0))
	require.NoError(t, s.Set("claim_amount", "1500.50"))
	amount, ok := s.Float("claim_amount")
	assert.True(t, ok)
	assert.Equal(t, 1500.5, amount)
}

func TestState_ErrorIsLatched(t *testing.T) {
	s := domain.NewState()

	s.Fail("first")
	s.Fail("second")
	require.NoError(t, s.Set(domain.FieldError, "third"))
	s.Delete(domain.FieldError)

	msg, ok := s.Failure()
	assert.True(t, ok)
	assert.Equal(t, "first", msg)
}

func TestState_AbsenceIsFirstClass(t *testing.T) {
	s := domain.NewState()

	_, ok := s.Text("name")
	assert.False(t, ok)
	_, ok = s.Float("premium")
	assert.False(t, ok)
	assert.False(t, s.Bool("confirmed"))
	assert.Equal(t, "friend", s.TextOr("name", "friend"))
}

func TestState_CloneIsDeep(t *testing.T) {
	s := domain.NewState()
	require.NoError(t, s.Set("details", map[string]any{"kms": 1000}))
	s.Append("conversation", map[string]any{"role": "user", "content": "hi"})
	s.Loops["Negotiate"] = 2

	c := s.Clone()
	c.Fields["details"].(map[string]any)["kms"] = 5
	c.Loops["Negotiate"] = 9
	c.Append("conversation", "more")

	assert.Equal(t, 1000, s.Fields["details"].(map[string]any)["kms"])
	assert.Equal(t, 2, s.Loops["Negotiate"])
	assert.Len(t, s.Fields["conversation"], 1)
}

func TestState_DecodeAfterJSONRoundTrip(t *testing.T) {
	s := domain.NewState()
	require.NoError(t, s.Set("insurance_ref_id", 2))
	require.NoError(t, s.Set("claim_amount", 1200.0))
	require.NoError(t, s.Set("insurance_type", "health"))
	s.Say("Claim initiated.")

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Claim initiated.", "run messages are not part of the record")
	var loaded domain.State
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Empty(t, loaded.Outbox)

	var view struct {
		RefID  int64   `mapstructure:"insurance_ref_id"`
		Amount float64 `mapstructure:"claim_amount"`
		Type   string  `mapstructure:"insurance_type"`
	}
	require.NoError(t, loaded.Decode(&view))
	assert.Equal(t, int64(2), view.RefID)
	assert.Equal(t, 1200.0, view.Amount)
	assert.Equal(t, "health", view.Type)
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "bad", domain.UserMessage(&domain.ValidationError{Message: "bad"}))
	assert.Contains(t, domain.UserMessage(&domain.CapabilityError{Capability: "sms", Err: errors.New("boom")}), "sms")
	assert.Equal(t, "plain", domain.UserMessage(errors.New("plain")))

	retry := domain.NewRetryBoundExceeded("PlanOptions", 3)
	assert.ErrorIs(t, retry, domain.ErrRetryBoundExceeded)
}

func TestFormatClaimNumber(t *testing.T) {
	assert.Equal(t, "CLM-2025-00001", domain.FormatClaimNumber(2025, 1))
	assert.Equal(t, "CLM-2026-12345", domain.FormatClaimNumber(2026, 12345))
	assert.Equal(t, 500000.0, domain.Reimbursement(750000, 500000))
	assert.Equal(t, 1200.0, domain.Reimbursement(1200, 500000))
}

func TestState_SayQueuesTextVerbatim(t *testing.T) {
	tests := []struct {
		name string
		say  func(*domain.State)
		want string
	}{
		{name: "plain", say: func(s *domain.State) { s.Say("All done.") }, want: "All done."},
		{name: "percent sign", say: func(s *domain.State) { s.Say("We cover 100% of hospital bills") }, want: "We cover 100% of hospital bills"},
		{name: "verb lookalike", say: func(s *domain.State) { s.Say("Discount code %d%s") }, want: "Discount code %d%s"},
		{name: "formatted", say: func(s *domain.State) { s.Sayf("Premium: %d rupees, %s", 12000, "yearly") }, want: "Premium: 12000 rupees, yearly"},
		{name: "formatted percent", say: func(s *domain.State) { s.Sayf("%s off", "15%") }, want: "15% off"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := domain.NewState()
			tt.say(s)
			assert.Equal(t, []string{tt.want}, s.Outbox)
		})
	}
}
