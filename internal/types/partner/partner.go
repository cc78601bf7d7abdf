package partner

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Partner struct {
	ID           uuid.UUID `json:"id" db:"id"`
	ReferralCode string    `json:"referralCode" db:"referral_code"`
	Name         string    `json:"name" db:"name"`
	Email        *string   `json:"email,omitempty" db:"email"`
	Status       Status    `json:"status" db:"status"`
	OwnerID      *string   `json:"-" db:"owner_id"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

func (p *Partner) IsApproved() bool {
	return p.Status == StatusApproved
}

// Conversion is a completed checkout attributed to a referral code.
type Conversion struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ReferralCode  string    `json:"referralCode" db:"referral_code"`
	Provider      string    `json:"provider" db:"provider"`
	SessionID     string    `json:"sessionId" db:"session_id"`
	CustomerEmail *string   `json:"customerEmail,omitempty" db:"customer_email"`
	AmountTotal   int64     `json:"amountTotal" db:"amount_total"`
	Currency      string    `json:"currency" db:"currency"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}

type DashboardResponse struct {
	Partner     *Partner      `json:"partner"`
	Conversions []*Conversion `json:"conversions"`
}
