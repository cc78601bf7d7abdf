package checkout

type Mode string

const (
	ModePayment      Mode = "payment"
	ModeSubscription Mode = "subscription"
)

// CustomerData is the optional identity a caller can attach to a checkout.
type CustomerData struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type CreateCheckoutRequest struct {
	PriceID      string        `json:"priceId"`
	Mode         Mode          `json:"mode,omitempty"`
	CustomerData *CustomerData `json:"customerData,omitempty"`
	ReferralCode *string       `json:"referralCode,omitempty"`
}

// EffectiveMode falls back to a subscription when the caller sent no mode.
func (r *CreateCheckoutRequest) EffectiveMode() Mode {
	if r.Mode == "" {
		return ModeSubscription
	}
	return r.Mode
}

// Referral returns the supplied referral code, or "" when none was sent.
func (r *CreateCheckoutRequest) Referral() string {
	if r.ReferralCode == nil {
		return ""
	}
	return *r.ReferralCode
}

type CreateCheckoutResponse struct {
	URL string `json:"url"`
}

// SessionParams is what a payment provider needs to open a hosted checkout.
type SessionParams struct {
	PriceID        string
	Quantity       int64
	Mode           Mode
	CustomerID     string
	CustomerEmail  string
	SuccessURL     string
	CancelURL      string
	ReferralCode   string
	IdempotencyKey string
}

type Price struct {
	ID          string `json:"id"`
	ProductID   string `json:"productId"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
}
