package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/tutorhub/apiserver/types"
)

// PaymentProvider charges the student for a session. It is a black box that
// either confirms the payment with a reference or fails.
type PaymentProvider interface {
	Charge(ctx context.Context, session types.Session) (reference string, err error)
}

// MockPaymentProvider confirms every charge.
type MockPaymentProvider struct{}

func (MockPaymentProvider) Charge(_ context.Context, _ types.Session) (string, error) {
	return "mock_" + uuid.NewString(), nil
}
