package domain

import "errors"

// Ошибки валидации: запрос отклоняется до любого изменения состояния.
var (
	ErrCustomerRequired           = errors.New("customer_id is required")
	ErrCurrencyRequired           = errors.New("currency is required")
	ErrItemQtyInvalid             = errors.New("item qty must be greater than zero")
	ErrItemPriceInvalid           = errors.New("item price must be non-negative")
	ErrOrderIDRequired            = errors.New("order_id is required")
	ErrVariantRequired            = errors.New("variant_id is required")
	ErrLocationRequired           = errors.New("location_id is required")
	ErrStockItemRequired          = errors.New("stock_item_id is required")
	ErrMovementEmpty              = errors.New("stock movement must change qty or reserved")
	ErrMovementOriginatorRequired = errors.New("stock movement originator is required")
	ErrPaymentProviderRequired    = errors.New("payment provider is required")
	ErrPaymentAmountInvalid       = errors.New("payment amount must be greater than zero")
	ErrRefundOutOfRange           = errors.New("refund exceeds captured amount")
	ErrAddressInvalid             = errors.New("shipping address is incomplete")
	ErrAmountExceedsBalance       = errors.New("amount exceeds unpaid order balance")
	ErrActorRequired              = errors.New("actor is required")
	ErrWebhookSignature           = errors.New("webhook signature mismatch")
)

// Ошибки конфликта: состояние изменилось или запрошенная операция
// несовместима с текущим состоянием; вызывающий может повторить после
// перечитывания.
var (
	ErrVersionConflict     = errors.New("version conflict")
	ErrTransitionBlocked   = errors.New("order status transition is not allowed")
	ErrOrderImmutable      = errors.New("order no longer accepts mutations")
	ErrInsufficientStock   = errors.New("insufficient stock across locations")
	ErrPromotionIneligible = errors.New("promotion is not eligible for this order")
	ErrPromotionExpired    = errors.New("promotion code is expired")
	ErrPaymentStateInvalid = errors.New("payment state does not allow this operation")
	ErrShipmentNotPending  = errors.New("shipment is not in a releasable state")
)

// Ошибки отсутствия сущности.
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrPromotionNotFound = errors.New("promotion not found")
	ErrStockItemNotFound = errors.New("stock item not found")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrMethodNotFound    = errors.New("payment method not found")
	ErrShipmentNotFound  = errors.New("shipment not found")
	ErrProviderNotFound  = errors.New("payment provider is not registered")
)

// ErrOutboxPublish возвращается при ошибке публикации сообщения из outbox.
var ErrOutboxPublish = errors.New("outbox publish failed")

// Внешние сбои. Retryable повторяется вызывающим с тем же idempotency-key;
// terminal оставляет заказ как есть с причиной отказа.
var (
	ErrGatewayTimeout     = errors.New("payment gateway timeout")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayDeclined    = errors.New("payment declined by gateway")
)

// Нарушения инвариантов — внутренние дефекты; всегда фатальны и никогда
// не исправляются молча.
var (
	ErrTotalMismatch           = errors.New("order total does not reconcile with items and adjustments")
	ErrAdjustmentTotalMismatch = errors.New("adjustment total does not reconcile with adjustments")
	ErrStockNegative           = errors.New("stock on-hand is negative")
	ErrReservedOutOfRange      = errors.New("reserved quantity out of [0, on-hand] range")
	ErrLedgerMismatch          = errors.New("stock movements do not reconcile with on-hand quantity")
)

var validationErrs = []error{
	ErrCustomerRequired, ErrCurrencyRequired, ErrItemQtyInvalid,
	ErrItemPriceInvalid, ErrOrderIDRequired, ErrVariantRequired,
	ErrLocationRequired, ErrStockItemRequired, ErrMovementEmpty,
	ErrMovementOriginatorRequired, ErrPaymentProviderRequired,
	ErrPaymentAmountInvalid, ErrRefundOutOfRange, ErrAddressInvalid,
	ErrAmountExceedsBalance, ErrActorRequired, ErrWebhookSignature,
}

var conflictErrs = []error{
	ErrVersionConflict, ErrTransitionBlocked, ErrOrderImmutable,
	ErrInsufficientStock, ErrPromotionIneligible, ErrPromotionExpired,
	ErrPaymentStateInvalid, ErrShipmentNotPending,
}

var notFoundErrs = []error{
	ErrOrderNotFound, ErrPaymentNotFound, ErrPromotionNotFound,
	ErrStockItemNotFound, ErrVariantNotFound, ErrMethodNotFound,
	ErrShipmentNotFound, ErrProviderNotFound,
}

var invariantErrs = []error{
	ErrTotalMismatch, ErrAdjustmentTotalMismatch, ErrStockNegative,
	ErrReservedOutOfRange, ErrLedgerMismatch,
}

func matchAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation сообщает, относится ли ошибка к классу валидации.
func IsValidation(err error) bool { return matchAny(err, validationErrs) }

// IsConflict сообщает, относится ли ошибка к классу конфликтов.
func IsConflict(err error) bool { return matchAny(err, conflictErrs) }

// IsNotFound сообщает, что запрошенная сущность отсутствует.
func IsNotFound(err error) bool { return matchAny(err, notFoundErrs) }

// IsInvariantViolation распознаёт внутренние дефекты сверки.
func IsInvariantViolation(err error) bool { return matchAny(err, invariantErrs) }

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsRetryableExternal отделяет временные сбои шлюза (таймаут, недоступность)
// от терминальных отказов (declined).
func IsRetryableExternal(err error) bool {
	return errors.Is(err, ErrGatewayTimeout) || errors.Is(err, ErrGatewayUnavailable)
}

// IsTerminalExternal распознаёт окончательный отказ провайдера.
func IsTerminalExternal(err error) bool {
	return errors.Is(err, ErrGatewayDeclined)
}

// ErrorCode возвращает машиночитаемый код класса ошибки для API-ответов.
func ErrorCode(err error) string {
	switch {
	case IsValidation(err):
		return "validation"
	case IsConflict(err):
		return "conflict"
	case IsNotFound(err):
		return "not_found"
	case IsRetryableExternal(err), IsTerminalExternal(err):
		return "external_failure"
	case IsInvariantViolation(err):
		return "invariant_violation"
	default:
		return "internal"
	}
}
