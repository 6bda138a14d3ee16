// Package sqlstore implements the insurance and policy repositories on SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aretw0/insurai/pkg/domain"
	"github.com/aretw0/insurai/pkg/ports"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339

// Store implements ports.InsuranceRepository and ports.PolicyRepository.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ ports.InsuranceRepository = (*Store)(nil)
	_ ports.PolicyRepository    = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// Seed inserts the demo customer, the policy catalogue and the demo enrolments.
// It does nothing when users already exist and reports whether it wrote anything.
func (s *Store) Seed(ctx context.Context) (bool, error) {
	var users int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&users); err != nil {
		return false, fmt.Errorf("failed to inspect users: %w", err)
	}
	if users > 0 {
		return false, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin seed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO users (name, email, phone) VALUES (?, ?, ?)`,
		"Demo User", "demo@example.com", "+916301989290"); err != nil {
		return false, fmt.Errorf("failed to seed users: %w", err)
	}
	for _, p := range seedPolicies {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO policies (name, type, premium, benefits, coverage_limit, is_custom, is_active) VALUES (?, ?, ?, ?, ?, 0, ?)`,
			p.name, p.kind, p.premium, p.benefits, p.coverage, p.active); err != nil {
			return false, fmt.Errorf("failed to seed policies: %w", err)
		}
	}
	// Health 1 on Health Premium, health 2 on the inactive policy.
	for _, policyID := range []int{2, 5} {
		if _, err := tx.ExecContext(ctx, `INSERT INTO user_health_insurance (user_id, policy_id, status) VALUES (1, ?, 'active')`, policyID); err != nil {
			return false, fmt.Errorf("failed to seed health insurance: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO user_vehicle_insurance
		(user_id, policy_id, number_plate, vehicle_type, brand_model, age, kms_driven, wheels, status)
		VALUES (1, 4, 'TS09AB1234', 'car', 'Hyundai Creta', 3, 35000, 4, 'active')`); err != nil {
		return false, fmt.Errorf("failed to seed vehicle insurance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit seed: %w", err)
	}
	return true, nil
}

const findHealth = `
SELECT h.id, h.status, u.id, u.name, u.email, u.phone, p.name, p.coverage_limit, p.premium, p.is_active, '', ''
FROM user_health_insurance h
JOIN users u ON u.id = h.user_id
JOIN policies p ON p.id = h.policy_id
WHERE h.id = ?`

const findVehicle = `
SELECT v.id, v.status, u.id, u.name, u.email, u.phone, p.name, p.coverage_limit, p.premium, p.is_active, v.number_plate, v.vehicle_type
FROM user_vehicle_insurance v
JOIN users u ON u.id = v.user_id
JOIN policies p ON p.id = v.policy_id
WHERE v.id = ?`

// FindInsurance implements ports.InsuranceRepository.
func (s *Store) FindInsurance(ctx context.Context, kind domain.InsuranceType, refID int64) (*domain.Insurance, error) {
	var query string
	switch kind {
	case domain.InsuranceHealth:
		query = findHealth
	case domain.InsuranceVehicle:
		query = findVehicle
	default:
		return nil, fmt.Errorf("%w: unknown insurance type %q", domain.ErrInsuranceNotFound, kind)
	}

	ins := domain.Insurance{Type: kind}
	var status sql.NullString
	err := s.db.QueryRowContext(ctx, query, refID).Scan(
		&ins.RefID, &status,
		&ins.UserID, &ins.UserName, &ins.UserEmail, &ins.UserPhone,
		&ins.PolicyName, &ins.Coverage, &ins.Premium, &ins.PolicyActive,
		&ins.VehicleNumber, &ins.VehicleType,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInsuranceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load insurance: %w", err)
	}
	ins.Status = status.String
	return &ins, nil
}

// ListClaims implements ports.InsuranceRepository.
func (s *Store) ListClaims(ctx context.Context, kind domain.InsuranceType, refID int64) ([]domain.Claim, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(claim_number, ''), user_id, insurance_type, insurance_ref_id,
		       COALESCE(claim_reason, ''), COALESCE(document_text, ''), COALESCE(document_info, ''),
		       COALESCE(document_digest, ''), COALESCE(claim_amount, 0), COALESCE(reimbursement, 0),
		       COALESCE(status, ''), COALESCE(created_at, '')
		FROM claims WHERE insurance_type = ? AND insurance_ref_id = ? ORDER BY id`, string(kind), refID)
	if err != nil {
		return nil, fmt.Errorf("failed to list claims: %w", err)
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var c domain.Claim
		var kindText, created string
		if err := rows.Scan(&c.ID, &c.Number, &c.UserID, &kindText, &c.InsuranceRefID,
			&c.Reason, &c.DocumentText, &c.DocumentInfo, &c.DocumentDigest,
			&c.Amount, &c.Reimbursement, &c.Status, &created); err != nil {
			return nil, fmt.Errorf("failed to scan claim: %w", err)
		}
		c.InsuranceType = domain.InsuranceType(kindText)
		c.CreatedAt = parseTime(created)
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// CreateClaim inserts the claim and assigns its number from the row id,
// inside one transaction.
func (s *Store) CreateClaim(ctx context.Context, claim domain.Claim) (domain.Claim, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if claim.Status == "" {
		claim.Status = domain.ClaimStatusInitiated
	}
	claim.CreatedAt = s.now().UTC()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO claims (user_id, insurance_type, insurance_ref_id, claim_reason, document_text,
		                    document_info, document_digest, claim_amount, reimbursement, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		claim.UserID, string(claim.InsuranceType), claim.InsuranceRefID, claim.Reason, claim.DocumentText,
		claim.DocumentInfo, claim.DocumentDigest, claim.Amount, claim.Reimbursement, claim.Status,
		claim.CreatedAt.Format(timeLayout))
	if err != nil {
		return domain.Claim{}, fmt.Errorf("failed to insert claim: %w", err)
	}
	claim.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Claim{}, fmt.Errorf("failed to read claim id: %w", err)
	}

	claim.Number = domain.FormatClaimNumber(claim.CreatedAt.Year(), claim.ID)
	if _, err := tx.ExecContext(ctx, `UPDATE claims SET claim_number = ? WHERE id = ?`, claim.Number, claim.ID); err != nil {
		return domain.Claim{}, fmt.Errorf("failed to number claim: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Claim{}, fmt.Errorf("failed to commit claim: %w", err)
	}
	return claim, nil
}

// SavePolicy implements ports.PolicyRepository.
func (s *Store) SavePolicy(ctx context.Context, policy domain.IssuedPolicy) (domain.IssuedPolicy, error) {
	policy.IssuedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO issued_policies (name, phone, email, insurance_type, plan, premium, coverage, benefits, issued_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		policy.Name, policy.Phone, policy.Email, string(policy.InsuranceType), policy.Plan,
		policy.Premium, policy.Coverage, policy.Benefits, policy.IssuedAt.Format(timeLayout))
	if err != nil {
		return domain.IssuedPolicy{}, fmt.Errorf("failed to save policy: %w", err)
	}
	policy.ID, err = res.LastInsertId()
	if err != nil {
		return domain.IssuedPolicy{}, fmt.Errorf("failed to read policy id: %w", err)
	}
	return policy, nil
}

func parseTime(s string) time.Time {
	for _, layout := range []string{timeLayout, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
