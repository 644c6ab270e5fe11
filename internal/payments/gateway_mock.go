package payments

import (
	"fmt"
	"sync"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// MockGateway — управляемая реализация шлюза для тестов и dev-режима.
// Ошибки подставляются по одной на операцию; счётчики вызовов позволяют
// проверять, что запрос вообще не дошёл до провайдера.
type MockGateway struct {
	mu sync.Mutex

	AuthorizeErr error
	CaptureErr   error
	VoidErr      error
	RefundErr    error

	AuthorizeCalls int
	CaptureCalls   int
	VoidCalls      int
	RefundCalls    int

	// LastRequest хранит последний принятый запрос для проверок.
	LastRequest domain.GatewayRequest

	refSeq int
}

var _ domain.PaymentGateway = (*MockGateway)(nil)

// Authorize блокирует сумму и выдаёт новый референс провайдера.
func (g *MockGateway) Authorize(req domain.GatewayRequest) (domain.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.AuthorizeCalls++
	g.LastRequest = req
	if g.AuthorizeErr != nil {
		return domain.GatewayResult{}, g.AuthorizeErr
	}
	g.refSeq++
	return domain.GatewayResult{
		GatewayRef: fmt.Sprintf("mock-ref-%d", g.refSeq),
		Status:     domain.PaymentStatusAuthorized,
	}, nil
}

// Capture списывает заблокированную сумму по референсу.
func (g *MockGateway) Capture(req domain.GatewayRequest) (domain.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CaptureCalls++
	g.LastRequest = req
	if g.CaptureErr != nil {
		return domain.GatewayResult{}, g.CaptureErr
	}
	return domain.GatewayResult{GatewayRef: req.GatewayRef, Status: domain.PaymentStatusCaptured}, nil
}

// Void отменяет авторизацию до списания.
func (g *MockGateway) Void(req domain.GatewayRequest) (domain.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.VoidCalls++
	g.LastRequest = req
	if g.VoidErr != nil {
		return domain.GatewayResult{}, g.VoidErr
	}
	return domain.GatewayResult{GatewayRef: req.GatewayRef, Status: domain.PaymentStatusVoided}, nil
}

// Refund возвращает часть или всю списанную сумму.
func (g *MockGateway) Refund(req domain.GatewayRequest) (domain.GatewayResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RefundCalls++
	g.LastRequest = req
	if g.RefundErr != nil {
		return domain.GatewayResult{}, g.RefundErr
	}
	return domain.GatewayResult{GatewayRef: req.GatewayRef, Status: domain.PaymentStatusRefunded}, nil
}
