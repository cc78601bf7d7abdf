package services

import (
	"errors"
	"net/http"
)

const (
	MsgPriceIDRequired     = "Price ID is required"
	MsgInvalidReferralCode = "Invalid referral code. Please check your referral code or leave it empty"
	MsgInactiveReferral    = "This referral code is not active. Please check your referral code or leave it empty"
)

// ErrPartnerNotFound means the registry has no row for the referral code.
var ErrPartnerNotFound = errors.New("partner not found")

type ErrorKind string

const (
	KindValidation     ErrorKind = "ValidationError"
	KindInfrastructure ErrorKind = "InfrastructureError"
)

// CheckoutError is the only error shape CheckoutService hands back. Message
// is safe to show to the end user.
type CheckoutError struct {
	Kind    ErrorKind
	Message string
	Status  int
	Err     error
}

func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// StatusCode is the HTTP status the error should be answered with.
func (e *CheckoutError) StatusCode() int {
	if e.Status != 0 {
		return e.Status
	}
	if e.Kind == KindValidation {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func validationError(message string) *CheckoutError {
	return &CheckoutError{Kind: KindValidation, Message: message}
}

// A missing price id has always been answered with 500; kept for callers
// that branch on it.
func missingPriceError() *CheckoutError {
	return &CheckoutError{
		Kind:    KindValidation,
		Message: MsgPriceIDRequired,
		Status:  http.StatusInternalServerError,
	}
}

func infrastructureError(err error) *CheckoutError {
	return &CheckoutError{
		Kind:    KindInfrastructure,
		Message: providerMessage(err),
		Err:     err,
	}
}

// ProviderError carries the message a payment provider returned for a
// failed call.
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func providerMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Message != "" {
		return pe.Message
	}
	return err.Error()
}
