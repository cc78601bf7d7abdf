package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"agencyCheckoutAPI/internal/types/partner"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is the part of *pgxpool.Pool the registry uses.
type dbtx interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PartnerRegistryService reads the partner registry and stores referral
// conversions reported by payment webhooks.
type PartnerRegistryService struct {
	db dbtx
}

func NewPartnerRegistryService(db dbtx) *PartnerRegistryService {
	return &PartnerRegistryService{db: db}
}

func (s *PartnerRegistryService) LookupPartner(ctx context.Context, referralCode string) (*partner.Partner, error) {
	query := `
		SELECT id, referral_code, name, status
		FROM partners
		WHERE referral_code = $1
		LIMIT 1
	`

	var p partner.Partner
	err := s.db.QueryRow(ctx, query, referralCode).Scan(
		&p.ID,
		&p.ReferralCode,
		&p.Name,
		&p.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("referral code %q: %w", referralCode, ErrPartnerNotFound)
		}
		return nil, fmt.Errorf("failed to query partner: %w", err)
	}

	return &p, nil
}

func (s *PartnerRegistryService) GetPartnerByOwner(ctx context.Context, ownerID string) (*partner.Partner, error) {
	query := `
		SELECT id, referral_code, name, email, status, owner_id, created_at, updated_at
		FROM partners
		WHERE owner_id = $1
		LIMIT 1
	`

	var p partner.Partner
	err := s.db.QueryRow(ctx, query, ownerID).Scan(
		&p.ID,
		&p.ReferralCode,
		&p.Name,
		&p.Email,
		&p.Status,
		&p.OwnerID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPartnerNotFound
		}
		return nil, fmt.Errorf("failed to query partner by owner: %w", err)
	}

	return &p, nil
}

// RecordConversion stores c unless the provider session was already
// recorded. It reports whether a row was inserted.
func (s *PartnerRegistryService) RecordConversion(ctx context.Context, c *partner.Conversion) (bool, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO referral_conversions (
			id, referral_code, provider, session_id, customer_email,
			amount_total, currency, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (provider, session_id) DO NOTHING
	`
	tag, err := s.db.Exec(ctx, query,
		c.ID,
		c.ReferralCode,
		c.Provider,
		c.SessionID,
		c.CustomerEmail,
		c.AmountTotal,
		c.Currency,
		c.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to record conversion: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

func (s *PartnerRegistryService) ListConversions(ctx context.Context, referralCode string) ([]*partner.Conversion, error) {
	query := `
		SELECT id, referral_code, provider, session_id, customer_email,
		       amount_total, currency, created_at
		FROM referral_conversions
		WHERE referral_code = $1
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, referralCode)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversions: %w", err)
	}
	defer rows.Close()

	conversions := make([]*partner.Conversion, 0)
	for rows.Next() {
		var c partner.Conversion
		if err := rows.Scan(
			&c.ID,
			&c.ReferralCode,
			&c.Provider,
			&c.SessionID,
			&c.CustomerEmail,
			&c.AmountTotal,
			&c.Currency,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan conversion: %w", err)
		}
		conversions = append(conversions, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return conversions, nil
}
