package domain_test

import (
	"fmt"
	"testing"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{domain.ErrItemQtyInvalid, "validation"},
		{domain.ErrAmountExceedsBalance, "validation"},
		{domain.ErrVersionConflict, "conflict"},
		{domain.ErrInsufficientStock, "conflict"},
		{domain.ErrPromotionExpired, "conflict"},
		{domain.ErrOrderNotFound, "not_found"},
		{domain.ErrMethodNotFound, "not_found"},
		{domain.ErrGatewayTimeout, "external_failure"},
		{domain.ErrGatewayDeclined, "external_failure"},
		{domain.ErrTotalMismatch, "invariant_violation"},
		{domain.ErrLedgerMismatch, "invariant_violation"},
		{fmt.Errorf("something else"), "internal"},
	}

	for _, tc := range cases {
		if got := domain.ErrorCode(tc.err); got != tc.code {
			t.Errorf("%v: expected code %q, got %q", tc.err, tc.code, got)
		}
	}
}

func TestErrorClassifiersSeeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("save order: %w", domain.ErrVersionConflict)
	if !domain.IsVersionConflict(wrapped) {
		t.Fatal("wrapped version conflict must be recognized")
	}
	if !domain.IsConflict(wrapped) {
		t.Fatal("wrapped version conflict must classify as conflict")
	}

	external := fmt.Errorf("authorize: %w", domain.ErrGatewayTimeout)
	if !domain.IsRetryableExternal(external) {
		t.Fatal("gateway timeout must be retryable")
	}
	if domain.IsTerminalExternal(external) {
		t.Fatal("gateway timeout must not be terminal")
	}

	declined := fmt.Errorf("authorize: %w", domain.ErrGatewayDeclined)
	if domain.IsRetryableExternal(declined) {
		t.Fatal("declined must not be retryable")
	}
	if !domain.IsTerminalExternal(declined) {
		t.Fatal("declined must be terminal")
	}
}
