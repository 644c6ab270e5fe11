package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestPaymentStatusCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.PaymentStatus
		want     bool
	}{
		{domain.PaymentStatusPending, domain.PaymentStatusAuthorized, true},
		{domain.PaymentStatusPending, domain.PaymentStatusCaptured, true}, // auto-capture
		{domain.PaymentStatusAuthorized, domain.PaymentStatusCaptured, true},
		{domain.PaymentStatusAuthorized, domain.PaymentStatusVoided, true},
		{domain.PaymentStatusCaptured, domain.PaymentStatusRefunded, true},
		{domain.PaymentStatusCaptured, domain.PaymentStatusPartiallyRefunded, true},
		{domain.PaymentStatusPartiallyRefunded, domain.PaymentStatusRefunded, true},
		{domain.PaymentStatusPending, domain.PaymentStatusFailed, true},
		{domain.PaymentStatusAuthorized, domain.PaymentStatusFailed, true},
		{domain.PaymentStatusCaptured, domain.PaymentStatusFailed, false},
		{domain.PaymentStatusCaptured, domain.PaymentStatusVoided, false},
		{domain.PaymentStatusVoided, domain.PaymentStatusCaptured, false},
		{domain.PaymentStatusRefunded, domain.PaymentStatusCaptured, false},
		{domain.PaymentStatusFailed, domain.PaymentStatusAuthorized, false},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestPaymentValidate(t *testing.T) {
	payment := domain.Payment{
		ID: "pay-1", OrderID: "order-1", Provider: "cardpay",
		Status: domain.PaymentStatusPending, AmountMinor: 100,
	}
	if errs := payment.Validate(); len(errs) != 0 {
		t.Fatalf("expected valid payment, got %v", errs)
	}

	cases := []struct {
		name string
		mut  func(p *domain.Payment)
		want error
	}{
		{
			name: "no order",
			mut: func(p *domain.Payment) {
				p.OrderID = ""
			},
			want: domain.ErrOrderIDRequired,
		},
		{
			name: "no provider",
			mut: func(p *domain.Payment) {
				p.Provider = ""
			},
			want: domain.ErrPaymentProviderRequired,
		},
		{
			name: "zero amount",
			mut: func(p *domain.Payment) {
				p.AmountMinor = 0
			},
			want: domain.ErrPaymentAmountInvalid,
		},
		{
			name: "refund above amount",
			mut: func(p *domain.Payment) {
				p.RefundedMinor = 200
			},
			want: domain.ErrRefundOutOfRange,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := payment
			tc.mut(&p)
			errs := p.Validate()
			found := false
			for _, err := range errs {
				if err == tc.want {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}
