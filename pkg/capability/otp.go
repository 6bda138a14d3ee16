package capability

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/ports"
)

// DefaultCodeTTL is how long a sent code stays valid.
const DefaultCodeTTL = 5 * time.Minute

// OTP implements ports.OneTimeCodes: six-digit codes kept in a CodeStore
// and delivered by SMS.
type OTP struct {
	codes    ports.CodeStore
	sms      ports.SMSSender
	ttl      time.Duration
	generate func() (string, error)
}

var _ ports.OneTimeCodes = (*OTP)(nil)

// OTPOption configures OTP.
type OTPOption func(*OTP)

// WithCodeTTL overrides DefaultCodeTTL.
func WithCodeTTL(ttl time.Duration) OTPOption {
	return func(o *OTP) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithCodeGenerator replaces the random generator.
func WithCodeGenerator(gen func() (string, error)) OTPOption {
	return func(o *OTP) {
		o.generate = gen
	}
}

// NewOTP creates the one-time code service.
func NewOTP(codes ports.CodeStore, sms ports.SMSSender, opts ...OTPOption) *OTP {
	o := &OTP{
		codes:    codes,
		sms:      sms,
		ttl:      DefaultCodeTTL,
		generate: randomCode,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Send stores a fresh code for destination and texts it.
func (o *OTP) Send(ctx context.Context, destination string) error {
	code, err := o.generate()
	if err != nil {
		return &domain.CapabilityError{Capability: "otp", Err: err}
	}
	if err := o.codes.Put(ctx, destination, code, o.ttl); err != nil {
		return &domain.CapabilityError{Capability: "otp", Err: err}
	}
	if err := o.sms.SendSMS(ctx, destination, "Your Insurance Claim OTP is "+code); err != nil {
		_, _, _ = o.codes.Take(ctx, destination)
		return &domain.CapabilityError{Capability: "otp", Err: err}
	}
	return nil
}

// Verify consumes the pending code and compares it with the submitted one.
func (o *OTP) Verify(ctx context.Context, destination, code string) (bool, error) {
	expected, ok, err := o.codes.Take(ctx, destination)
	if err != nil {
		return false, &domain.CapabilityError{Capability: "otp", Err: err}
	}
	if !ok {
		return false, nil
	}
	got := strings.TrimSpace(code)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1, nil
}
