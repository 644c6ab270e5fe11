// Package payments координирует вызовы платёжных шлюзов: авторизацию,
// списание, отмену, возвраты и обработку асинхронных webhook-событий.
package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/metrics"
)

// Coordinator — единственная точка общения с платёжными провайдерами.
// Все проверки против состояния заказа выполняются ДО сетевого вызова:
// отклонённый запрос не оставляет следов ни у нас, ни у провайдера.
type Coordinator struct {
	methods  domain.PaymentMethodRepository
	webhooks domain.WebhookRepository
	registry *Registry
	sealKey  [32]byte
	metrics  *metrics.CheckoutMetrics
	logger   *log.Entry
}

// NewCoordinator создаёт координатор платежей. Метрики опциональны.
func NewCoordinator(
	methods domain.PaymentMethodRepository,
	webhooks domain.WebhookRepository,
	registry *Registry,
	sealKey [32]byte,
	checkoutMetrics *metrics.CheckoutMetrics,
	logger *log.Entry,
) *Coordinator {
	if logger == nil {
		logger = log.New().WithField("component", "payments")
	}
	return &Coordinator{
		methods:  methods,
		webhooks: webhooks,
		registry: registry,
		sealKey:  sealKey,
		metrics:  checkoutMetrics,
		logger:   logger,
	}
}

// Authorize создаёт платёж и авторизует сумму у провайдера. Сумма сверх
// неоплаченного остатка отклоняется до обращения к шлюзу. При таймауте
// шлюза платёж остаётся pending, и повтор через Retry использует тот же
// idempotency-key, не создавая вторую авторизацию.
func (c *Coordinator) Authorize(actor domain.Actor, order *domain.Order, methodCode string, amountMinor int64) (*domain.Payment, error) {
	if !actor.Valid() {
		return nil, domain.ErrActorRequired
	}
	if amountMinor <= 0 {
		return nil, domain.ErrPaymentAmountInvalid
	}
	if amountMinor > order.UnpaidBalanceMinor() {
		return nil, fmt.Errorf("amount %d over balance %d: %w", amountMinor, order.UnpaidBalanceMinor(), domain.ErrAmountExceedsBalance)
	}

	method, gateway, creds, err := c.resolve(methodCode)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.Payments = append(order.Payments, domain.Payment{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		Provider:       method.Provider,
		MethodCode:     method.Code,
		Status:         domain.PaymentStatusPending,
		AmountMinor:    amountMinor,
		IdempotencyKey: uuid.NewString(),
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	payment := &order.Payments[len(order.Payments)-1]

	return c.authorize(actor, order, payment, method, gateway, creds)
}

// Retry повторяет авторизацию платежа, зависшего в pending после сбоя
// шлюза. Ключ идемпотентности сохраняется с первой попытки.
func (c *Coordinator) Retry(actor domain.Actor, order *domain.Order, paymentID string) (*domain.Payment, error) {
	if !actor.Valid() {
		return nil, domain.ErrActorRequired
	}
	payment := order.Payment(paymentID)
	if payment == nil {
		return nil, fmt.Errorf("payment %s: %w", paymentID, domain.ErrPaymentNotFound)
	}
	if payment.Status != domain.PaymentStatusPending {
		return nil, fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, domain.ErrPaymentStateInvalid)
	}

	method, gateway, creds, err := c.resolve(payment.MethodCode)
	if err != nil {
		return nil, err
	}
	return c.authorize(actor, order, payment, method, gateway, creds)
}

func (c *Coordinator) authorize(actor domain.Actor, order *domain.Order, payment *domain.Payment, method domain.PaymentMethod, gateway domain.PaymentGateway, creds domain.GatewayCredentials) (*domain.Payment, error) {
	result, err := gateway.Authorize(domain.GatewayRequest{
		Credentials:    creds,
		AmountMinor:    payment.AmountMinor,
		Currency:       order.Currency,
		IdempotencyKey: payment.IdempotencyKey,
	})
	if err != nil {
		if domain.IsRetryableExternal(err) {
			// Платёж остаётся pending: исход у провайдера неизвестен.
			c.logger.WithFields(log.Fields{
				"order_id":   order.ID,
				"payment_id": payment.ID,
			}).WithError(err).Warn("gateway authorize failed, payment left pending")
			return payment, fmt.Errorf("authorize payment %s: %w", payment.ID, err)
		}
		if domain.IsTerminalExternal(err) {
			payment.Status = domain.PaymentStatusFailed
			payment.FailureReason = err.Error()
			payment.UpdatedAt = time.Now().UTC()
			order.Record(domain.Event{
				Type:  domain.EventPaymentFailed,
				Actor: actor.String(),
				Payload: map[string]any{
					"payment_id": payment.ID,
					"reason":     payment.FailureReason,
				},
			})
			return payment, fmt.Errorf("authorize payment %s: %w", payment.ID, err)
		}
		return nil, fmt.Errorf("authorize payment %s: %w", payment.ID, err)
	}

	payment.GatewayRef = result.GatewayRef
	payment.Status = domain.PaymentStatusAuthorized
	payment.UpdatedAt = time.Now().UTC()
	order.Record(domain.Event{
		Type:  domain.EventPaymentAuthorized,
		Actor: actor.String(),
		Payload: map[string]any{
			"payment_id":   payment.ID,
			"amount_minor": payment.AmountMinor,
		},
	})
	if c.metrics != nil {
		c.metrics.RecordAuthorization()
	}

	if method.AutoCapture {
		if err := c.capture(actor, order, payment, gateway, creds); err != nil {
			return payment, err
		}
	}
	return payment, nil
}

// Capture списывает ранее авторизованную сумму.
func (c *Coordinator) Capture(actor domain.Actor, order *domain.Order, paymentID string) error {
	if !actor.Valid() {
		return domain.ErrActorRequired
	}
	payment := order.Payment(paymentID)
	if payment == nil {
		return fmt.Errorf("payment %s: %w", paymentID, domain.ErrPaymentNotFound)
	}
	if payment.Status != domain.PaymentStatusAuthorized {
		return fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, domain.ErrPaymentStateInvalid)
	}

	_, gateway, creds, err := c.resolve(payment.MethodCode)
	if err != nil {
		return err
	}
	return c.capture(actor, order, payment, gateway, creds)
}

func (c *Coordinator) capture(actor domain.Actor, order *domain.Order, payment *domain.Payment, gateway domain.PaymentGateway, creds domain.GatewayCredentials) error {
	_, err := gateway.Capture(domain.GatewayRequest{
		Credentials:    creds,
		AmountMinor:    payment.AmountMinor,
		Currency:       order.Currency,
		IdempotencyKey: payment.IdempotencyKey,
		GatewayRef:     payment.GatewayRef,
	})
	if err != nil {
		// Авторизация остаётся в силе; списание можно повторить или отменить.
		return fmt.Errorf("capture payment %s: %w", payment.ID, err)
	}

	payment.Status = domain.PaymentStatusCaptured
	payment.UpdatedAt = time.Now().UTC()
	order.Record(domain.Event{
		Type:  domain.EventPaymentCaptured,
		Actor: actor.String(),
		Payload: map[string]any{
			"payment_id":   payment.ID,
			"amount_minor": payment.AmountMinor,
		},
	})
	if c.metrics != nil {
		c.metrics.RecordCapture()
	}
	return nil
}

// SettleForCompletion списывает все авторизованные платежи заказа, кроме
// способов с отложенным списанием (оплата при получении).
func (c *Coordinator) SettleForCompletion(actor domain.Actor, order *domain.Order) error {
	for i := range order.Payments {
		payment := &order.Payments[i]
		if payment.Status != domain.PaymentStatusAuthorized {
			continue
		}
		method, gateway, creds, err := c.resolve(payment.MethodCode)
		if err != nil {
			return err
		}
		if method.DeferredCapture {
			continue
		}
		if err := c.capture(actor, order, payment, gateway, creds); err != nil {
			return err
		}
	}
	return nil
}

// Void отменяет авторизацию до списания.
func (c *Coordinator) Void(actor domain.Actor, order *domain.Order, paymentID string) error {
	if !actor.Valid() {
		return domain.ErrActorRequired
	}
	payment := order.Payment(paymentID)
	if payment == nil {
		return fmt.Errorf("payment %s: %w", paymentID, domain.ErrPaymentNotFound)
	}
	if payment.Status != domain.PaymentStatusAuthorized {
		return fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, domain.ErrPaymentStateInvalid)
	}

	_, gateway, creds, err := c.resolve(payment.MethodCode)
	if err != nil {
		return err
	}
	if _, err := gateway.Void(domain.GatewayRequest{
		Credentials:    creds,
		Currency:       order.Currency,
		IdempotencyKey: payment.IdempotencyKey,
		GatewayRef:     payment.GatewayRef,
	}); err != nil {
		return fmt.Errorf("void payment %s: %w", payment.ID, err)
	}

	payment.Status = domain.PaymentStatusVoided
	payment.UpdatedAt = time.Now().UTC()
	order.Record(domain.Event{
		Type:  domain.EventPaymentVoided,
		Actor: actor.String(),
		Payload: map[string]any{
			"payment_id": payment.ID,
		},
	})
	return nil
}

// Refund возвращает часть или всю списанную сумму платежа.
func (c *Coordinator) Refund(actor domain.Actor, order *domain.Order, paymentID string, amountMinor int64) error {
	if !actor.Valid() {
		return domain.ErrActorRequired
	}
	if amountMinor <= 0 {
		return domain.ErrPaymentAmountInvalid
	}
	payment := order.Payment(paymentID)
	if payment == nil {
		return fmt.Errorf("payment %s: %w", paymentID, domain.ErrPaymentNotFound)
	}
	switch payment.Status {
	case domain.PaymentStatusCaptured, domain.PaymentStatusPartiallyRefunded:
	default:
		return fmt.Errorf("payment %s is %s: %w", paymentID, payment.Status, domain.ErrPaymentStateInvalid)
	}
	if payment.RefundedMinor+amountMinor > payment.AmountMinor {
		return fmt.Errorf("refund %d over remaining %d: %w", amountMinor, payment.AmountMinor-payment.RefundedMinor, domain.ErrRefundOutOfRange)
	}

	_, gateway, creds, err := c.resolve(payment.MethodCode)
	if err != nil {
		return err
	}
	if _, err := gateway.Refund(domain.GatewayRequest{
		Credentials:    creds,
		AmountMinor:    amountMinor,
		Currency:       order.Currency,
		IdempotencyKey: payment.IdempotencyKey,
		GatewayRef:     payment.GatewayRef,
	}); err != nil {
		return fmt.Errorf("refund payment %s: %w", payment.ID, err)
	}

	payment.RefundedMinor += amountMinor
	if payment.RefundedMinor == payment.AmountMinor {
		payment.Status = domain.PaymentStatusRefunded
	} else {
		payment.Status = domain.PaymentStatusPartiallyRefunded
	}
	payment.UpdatedAt = time.Now().UTC()
	order.Record(domain.Event{
		Type:  domain.EventPaymentRefunded,
		Actor: actor.String(),
		Payload: map[string]any{
			"payment_id":   payment.ID,
			"amount_minor": amountMinor,
		},
	})
	if c.metrics != nil {
		c.metrics.RecordRefund()
	}
	return nil
}

// ReleaseAll компенсирует денежные обязательства заказа при отмене или
// возврате: авторизации отменяются, списания возвращаются полностью.
func (c *Coordinator) ReleaseAll(actor domain.Actor, order *domain.Order) error {
	for i := range order.Payments {
		payment := &order.Payments[i]
		switch payment.Status {
		case domain.PaymentStatusAuthorized:
			if err := c.Void(actor, order, payment.ID); err != nil {
				return err
			}
		case domain.PaymentStatusCaptured, domain.PaymentStatusPartiallyRefunded:
			remaining := payment.AmountMinor - payment.RefundedMinor
			if remaining == 0 {
				continue
			}
			if err := c.Refund(actor, order, payment.ID, remaining); err != nil {
				return err
			}
		}
	}
	return nil
}

// HandleWebhook применяет асинхронное событие провайдера к платежу заказа.
// Подпись проверяется до любых изменений; повторная доставка уже
// подтверждённого event_id отбрасывается без второго перехода. Событие
// регистрируется отдельно, через MarkWebhookProcessed после сохранения
// заказа: недоставленный до хранилища переход не расходует защиту от
// повтора, и шлюз может доставить событие ещё раз.
func (c *Coordinator) HandleWebhook(order *domain.Order, event domain.WebhookEvent) error {
	payment := paymentByGatewayRef(order, event.GatewayRef)
	if payment == nil {
		return fmt.Errorf("gateway ref %s: %w", event.GatewayRef, domain.ErrPaymentNotFound)
	}

	method, err := c.methods.ByCode(payment.MethodCode)
	if err != nil {
		return fmt.Errorf("method %s: %w", payment.MethodCode, err)
	}
	creds, err := OpenCredentials(method.SealedCredentials, c.sealKey)
	if err != nil {
		return fmt.Errorf("open credentials for %s: %w", method.Code, err)
	}
	if !VerifyWebhookSignature(event.Payload, event.Signature, creds.WebhookSecret) {
		return fmt.Errorf("event %s: %w", event.EventID, domain.ErrWebhookSignature)
	}

	seen, err := c.webhooks.Processed(event.Provider, event.EventID)
	if err != nil {
		return fmt.Errorf("check webhook processed: %w", err)
	}
	if seen {
		c.logger.WithFields(log.Fields{
			"provider": event.Provider,
			"event_id": event.EventID,
		}).Info("duplicate webhook delivery dropped")
		if c.metrics != nil {
			c.metrics.RecordWebhookReplay()
		}
		return nil
	}

	target, eventType, err := webhookTransition(event.Type)
	if err != nil {
		return err
	}
	if payment.Status == target {
		return nil
	}
	if !payment.Status.CanTransition(target) {
		return fmt.Errorf("webhook %s on payment %s in %s: %w", event.Type, payment.ID, payment.Status, domain.ErrPaymentStateInvalid)
	}

	payment.Status = target
	payment.UpdatedAt = time.Now().UTC()
	switch target {
	case domain.PaymentStatusRefunded:
		payment.RefundedMinor = payment.AmountMinor
	case domain.PaymentStatusFailed:
		payment.FailureReason = event.Type
	}
	order.Record(domain.Event{
		Type:  eventType,
		Actor: domain.Actor{ID: event.Provider, Kind: domain.ActorKindGateway}.String(),
		Payload: map[string]any{
			"payment_id": payment.ID,
			"event_id":   event.EventID,
		},
	})
	return nil
}

// MarkWebhookProcessed подтверждает доставку после сохранения заказа.
// Проигрыш гонки двух одновременных доставок не ошибка: переходы статуса
// платежа идемпотентны.
func (c *Coordinator) MarkWebhookProcessed(event domain.WebhookEvent) {
	if _, err := c.webhooks.MarkProcessed(event.Provider, event.EventID); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"provider": event.Provider,
			"event_id": event.EventID,
		}).Error("mark webhook processed failed")
	}
}

// VerifyWebhookSignature сверяет HMAC-SHA256 подпись тела события.
func VerifyWebhookSignature(payload []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignWebhookPayload подписывает тело события; используется провайдерским
// эмулятором и тестами.
func SignWebhookPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Coordinator) resolve(methodCode string) (domain.PaymentMethod, domain.PaymentGateway, domain.GatewayCredentials, error) {
	method, err := c.methods.ByCode(methodCode)
	if err != nil {
		return domain.PaymentMethod{}, nil, domain.GatewayCredentials{}, fmt.Errorf("method %s: %w", methodCode, err)
	}
	gateway, err := c.registry.ForProvider(method.Provider)
	if err != nil {
		return domain.PaymentMethod{}, nil, domain.GatewayCredentials{}, err
	}
	creds, err := OpenCredentials(method.SealedCredentials, c.sealKey)
	if err != nil {
		return domain.PaymentMethod{}, nil, domain.GatewayCredentials{}, fmt.Errorf("open credentials for %s: %w", methodCode, err)
	}
	return method, gateway, creds, nil
}

func paymentByGatewayRef(order *domain.Order, ref string) *domain.Payment {
	if ref == "" {
		return nil
	}
	for i := range order.Payments {
		if order.Payments[i].GatewayRef == ref {
			return &order.Payments[i]
		}
	}
	return nil
}

func webhookTransition(eventType string) (domain.PaymentStatus, domain.EventType, error) {
	switch eventType {
	case "authorized":
		return domain.PaymentStatusAuthorized, domain.EventPaymentAuthorized, nil
	case "captured":
		return domain.PaymentStatusCaptured, domain.EventPaymentCaptured, nil
	case "voided":
		return domain.PaymentStatusVoided, domain.EventPaymentVoided, nil
	case "refunded":
		return domain.PaymentStatusRefunded, domain.EventPaymentRefunded, nil
	case "failed":
		return domain.PaymentStatusFailed, domain.EventPaymentFailed, nil
	default:
		return "", "", fmt.Errorf("unknown webhook event type %q", eventType)
	}
}
