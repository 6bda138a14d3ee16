package capability

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/ports"
	"github.com/zeebo/blake3"
)

const documentPersona = "You are an insurance claims validator. " +
	"Your job is to validate claim documents for health or vehicle insurance."

// DocumentValidator implements ports.DocumentValidator with a Reasoner.
// Health claims need hospital details, vehicle claims need police station details.
type DocumentValidator struct {
	reasoner ports.Reasoner
}

var _ ports.DocumentValidator = (*DocumentValidator)(nil)

// NewDocumentValidator creates a validator.
func NewDocumentValidator(r ports.Reasoner) *DocumentValidator {
	return &DocumentValidator{reasoner: r}
}

// ValidateDocument expects a "YES | extracted info" or "NO" reply.
func (v *DocumentValidator) ValidateDocument(ctx context.Context, kind domain.InsuranceType, text string) (ports.DocumentVerdict, error) {
	prompt := fmt.Sprintf(`Document text:
%s

Task: For a %s insurance claim:
- If valid: reply "YES | ExtractedInfo"
- If invalid: reply "NO"

Validation rules:
- Health claim requires hospital info.
- Vehicle claim requires police station info.`, text, kind)

	out, err := v.reasoner.Complete(ctx, []ports.Message{
		{Role: "system", Content: documentPersona},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return ports.DocumentVerdict{}, &domain.CapabilityError{Capability: "document validator", Err: err}
	}
	return ParseVerdict(out), nil
}

// ParseVerdict reads a "YES | info" / "NO" answer. Anything not starting
// with YES is a rejection.
func ParseVerdict(s string) ports.DocumentVerdict {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToUpper(s), "YES") {
		return ports.DocumentVerdict{}
	}
	info := ""
	if _, after, ok := strings.Cut(s, "|"); ok {
		info = strings.TrimSpace(after)
	}
	return ports.DocumentVerdict{Valid: true, Info: info}
}

// DocumentDigest fingerprints a claim document (BLAKE3, hex).
func DocumentDigest(text string) string {
	sum := blake3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
