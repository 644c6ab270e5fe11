package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/checkout/internal/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

// Handler обслуживает REST API чекаута поверх Engine.
type Handler struct {
	engine *checkout.Engine
	// defaultStrategy подставляется, когда запрос не называет стратегию
	// распределения отгрузок.
	defaultStrategy string
	validate        *validatorv10.Validate
	logger          *log.Entry
}

// NewHandler создаёт HTTP-handler.
func NewHandler(engine *checkout.Engine, defaultStrategy string, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http-handler")
	}
	return &Handler{
		engine:          engine,
		defaultStrategy: defaultStrategy,
		validate:        validatorv10.New(),
		logger:          logger,
	}
}

// actorFrom извлекает инициатора операции из заголовков запроса.
// Ядро требует явного актора, поэтому его отсутствие — ошибка клиента.
func actorFrom(c *gin.Context) (domain.Actor, bool) {
	actor := domain.Actor{
		ID:   c.GetHeader("X-Actor-Id"),
		Kind: domain.ActorKind(c.GetHeader("X-Actor-Kind")),
	}
	if actor.Kind == "" {
		actor.Kind = domain.ActorKindCustomer
	}
	if !actor.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "X-Actor-Id header is required"})
		return domain.Actor{}, false
	}
	switch actor.Kind {
	case domain.ActorKindCustomer, domain.ActorKindAdmin, domain.ActorKindSystem:
		return actor, true
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "unknown X-Actor-Kind"})
		return domain.Actor{}, false
	}
}

// bind разбирает JSON-тело и прогоняет validator-теги.
func (h *Handler) bind(c *gin.Context, out any) bool {
	if err := c.ShouldBindJSON(out); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": err.Error()})
		return false
	}
	if err := h.validate.Struct(out); err != nil {
		fields := map[string]string{}
		if ve, ok := err.(validatorv10.ValidationErrors); ok {
			for _, fe := range ve {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation", "fields": fields})
		return false
	}
	return true
}

// respondError переводит доменную ошибку в HTTP-статус.
func (h *Handler) respondError(c *gin.Context, err error) {
	code := domain.ErrorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "validation":
		status = http.StatusUnprocessableEntity
	case "conflict":
		status = http.StatusConflict
	case "not_found":
		status = http.StatusNotFound
	case "external_failure":
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("request failed")
	}
	c.JSON(status, gin.H{"error": code, "message": err.Error()})
}

func (h *Handler) respondOrder(c *gin.Context, status int, order domain.Order, err error) {
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(status, toOrderResponse(order))
}

func (h *Handler) createOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req createOrderRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.CreateOrder(actor, req.CustomerID, req.Currency)
	h.respondOrder(c, http.StatusCreated, order, err)
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.engine.GetOrder(c.Param("id"))
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) listOrders(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "limit must be a non-negative integer"})
			return
		}
		limit = parsed
	}
	orders, err := h.engine.ListOrders(c.Query("customer_id"), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]orderResponse, 0, len(orders))
	for _, order := range orders {
		resp = append(resp, toOrderResponse(order))
	}
	c.JSON(http.StatusOK, gin.H{"orders": resp})
}

func (h *Handler) timeline(c *gin.Context) {
	events, err := h.engine.Timeline(c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	resp := make([]timelineEventResponse, 0, len(events))
	for _, event := range events {
		resp = append(resp, timelineEventResponse{
			OrderID:  event.OrderID,
			Type:     event.Type,
			Actor:    event.Actor,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		})
	}
	c.JSON(http.StatusOK, gin.H{"events": resp})
}

func (h *Handler) addItem(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req addItemRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.AddLineItem(actor, c.Param("id"), req.VariantID, req.Qty)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) setQuantity(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req setQuantityRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.SetQuantity(actor, c.Param("id"), req.VariantID, req.Qty)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) setAddress(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req setAddressRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.SetAddress(actor, c.Param("id"), domain.Address{
		Line1:      req.Line1,
		City:       req.City,
		Region:     req.Region,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	})
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) selectDelivery(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req selectDeliveryRequest
	if !h.bind(c, &req) {
		return
	}
	strategy := req.Strategy
	if strategy == "" {
		strategy = h.defaultStrategy
	}
	order, err := h.engine.SelectDelivery(actor, c.Param("id"), strategy)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) selectPayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req selectPaymentRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.SelectPayment(actor, c.Param("id"), req.MethodCode, req.AmountMinor)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) retryPayment(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	order, err := h.engine.RetryPayment(actor, c.Param("id"), c.Param("payment_id"))
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) applyPromotion(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req applyPromotionRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.ApplyPromotion(actor, c.Param("id"), req.Code)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) confirm(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	order, err := h.engine.Confirm(actor, c.Param("id"))
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) complete(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	order, err := h.engine.Complete(actor, c.Param("id"))
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) cancel(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req cancelRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.Cancel(actor, c.Param("id"), req.Reason)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) returnOrder(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req returnRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.Return(actor, c.Param("id"), req.Reason)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) partialReturn(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req partialReturnRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.ReturnPartial(actor, c.Param("id"), req.AmountMinor, req.Reason)
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) shipmentReady(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	order, err := h.engine.MarkShipmentReady(actor, c.Param("id"), c.Param("shipment_id"))
	h.respondOrder(c, http.StatusOK, order, err)
}

func (h *Handler) shipmentShipped(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var req shipShipmentRequest
	if !h.bind(c, &req) {
		return
	}
	order, err := h.engine.MarkShipmentShipped(actor, c.Param("id"), c.Param("shipment_id"), req.TrackingNumber)
	h.respondOrder(c, http.StatusOK, order, err)
}

// webhook принимает callback платёжного провайдера. Подпись считается от
// сырого тела запроса, поэтому тело читается до разбора JSON.
func (h *Handler) webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "unreadable body"})
		return
	}

	var req webhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": err.Error()})
		return
	}
	if req.EventID == "" || req.Type == "" || req.GatewayRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "event_id, type and gateway_ref are required"})
		return
	}

	occurred := time.Now().UTC()
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation", "message": "occurred_at must be RFC3339"})
			return
		}
		occurred = parsed
	}

	event := domain.WebhookEvent{
		Provider:    c.Param("provider"),
		EventID:     req.EventID,
		Type:        req.Type,
		GatewayRef:  req.GatewayRef,
		AmountMinor: req.AmountMinor,
		Payload:     body,
		Signature:   c.GetHeader("X-Webhook-Signature"),
		OccurredAt:  occurred,
	}

	if _, err := h.engine.HandleWebhook(event); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "accepted"})
}
