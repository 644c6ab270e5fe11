package domain

import "time"

// PaymentStatus описывает состояние платежа.
type PaymentStatus string

const (
	// PaymentStatusPending — платёж создан, ответ шлюза ещё не получен.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusAuthorized — сумма успешно заблокирована у провайдера.
	PaymentStatusAuthorized PaymentStatus = "authorized"
	// PaymentStatusCaptured — деньги списаны в пользу мерчанта.
	PaymentStatusCaptured PaymentStatus = "captured"
	// PaymentStatusVoided — авторизация отменена до списания.
	PaymentStatusVoided PaymentStatus = "voided"
	// PaymentStatusRefunded — списанные деньги возвращены полностью.
	PaymentStatusRefunded PaymentStatus = "refunded"
	// PaymentStatusPartiallyRefunded — возвращена часть списанной суммы.
	PaymentStatusPartiallyRefunded PaymentStatus = "partially_refunded"
	// PaymentStatusFailed — провайдер отклонил платёж.
	PaymentStatusFailed PaymentStatus = "failed"
)

// CanTransition проверяет допустимость перехода платёжного статуса.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	if to == PaymentStatusFailed {
		// Отказ шлюза возможен на любом незавершённом шаге.
		return s == PaymentStatusPending || s == PaymentStatusAuthorized
	}
	switch s {
	case PaymentStatusPending:
		return to == PaymentStatusAuthorized || to == PaymentStatusCaptured
	case PaymentStatusAuthorized:
		return to == PaymentStatusCaptured || to == PaymentStatusVoided
	case PaymentStatusCaptured:
		return to == PaymentStatusRefunded || to == PaymentStatusPartiallyRefunded
	case PaymentStatusPartiallyRefunded:
		return to == PaymentStatusRefunded || to == PaymentStatusPartiallyRefunded
	default:
		return false
	}
}

// Payment — денежная авторизация по заказу у конкретного провайдера.
type Payment struct {
	ID       string
	OrderID  string
	Provider string
	// MethodCode — код способа оплаты, выбирающий реализацию шлюза.
	MethodCode string
	Status     PaymentStatus
	// AmountMinor не превышает неоплаченный остаток заказа в момент создания.
	AmountMinor   int64
	RefundedMinor int64
	// IdempotencyKey генерируется при создании платежа; повтор после
	// таймаута шлюза использует тот же ключ и не создаёт вторую авторизацию.
	IdempotencyKey string
	// GatewayRef — референс провайдера; по нему сопоставляются webhook-события.
	GatewayRef string
	// FailureReason хранит причину терминального отказа для отображения.
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate проверяет корректность полей платежа.
func (p *Payment) Validate() []error {
	var errs []error

	if p.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if p.Provider == "" {
		errs = append(errs, ErrPaymentProviderRequired)
	}
	if p.AmountMinor <= 0 {
		errs = append(errs, ErrPaymentAmountInvalid)
	}
	if p.RefundedMinor < 0 || p.RefundedMinor > p.AmountMinor {
		errs = append(errs, ErrRefundOutOfRange)
	}

	return errs
}

// Settled сообщает, закрыт ли платёж со стороны мерчанта: деньги либо
// списаны, либо обязательство отменено.
func (p *Payment) Settled() bool {
	switch p.Status {
	case PaymentStatusCaptured, PaymentStatusVoided, PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		return true
	default:
		return false
	}
}

// PaymentMethod — конфигурация способа оплаты, выбирающая провайдера.
type PaymentMethod struct {
	Code     string
	Provider string
	// AutoCapture включает немедленное списание при авторизации.
	AutoCapture bool
	// DeferredCapture разрешает завершение заказа без списания
	// (например, оплата при получении).
	DeferredCapture bool
	// SealedCredentials — зашифрованные учётные данные шлюза; расшифровка
	// происходит только на время построения клиента.
	SealedCredentials []byte
}

// WebhookEvent — нормализованное асинхронное событие платёжного шлюза.
type WebhookEvent struct {
	Provider string
	// EventID уникален в пределах провайдера; повторная доставка того же
	// события не должна применять переход второй раз.
	EventID string
	// Type — нормализованный тип: authorized, captured, voided, refunded, failed.
	Type string
	// GatewayRef связывает событие с платежом.
	GatewayRef  string
	AmountMinor int64
	Payload     []byte
	Signature   string
	OccurredAt  time.Time
}
