package http

// Тела запросов API. Суммы везде в минимальных денежных единицах.

type createOrderRequest struct {
	CustomerID string `json:"customer_id" binding:"required"`
	Currency   string `json:"currency" binding:"required" validate:"len=3,uppercase"`
}

type addItemRequest struct {
	VariantID string `json:"variant_id" binding:"required"`
	Qty       int32  `json:"qty" binding:"required" validate:"gt=0"`
}

type setQuantityRequest struct {
	VariantID string `json:"variant_id" binding:"required"`
	Qty       int32  `json:"qty" validate:"gte=0"`
}

type setAddressRequest struct {
	Line1      string `json:"line1" binding:"required"`
	City       string `json:"city" binding:"required"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country" binding:"required" validate:"len=2,uppercase"`
}

type selectDeliveryRequest struct {
	Strategy string `json:"strategy" validate:"omitempty,oneof=highest_stock_first nearest_location manual"`
}

type selectPaymentRequest struct {
	MethodCode  string `json:"method_code" binding:"required"`
	AmountMinor int64  `json:"amount_minor" binding:"required" validate:"gt=0"`
}

type applyPromotionRequest struct {
	Code string `json:"code" binding:"required"`
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type returnRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type partialReturnRequest struct {
	AmountMinor int64  `json:"amount_minor" binding:"required" validate:"gt=0"`
	Reason      string `json:"reason" binding:"required"`
}

type shipShipmentRequest struct {
	TrackingNumber string `json:"tracking_number" binding:"required"`
}

type webhookRequest struct {
	EventID     string `json:"event_id" binding:"required"`
	Type        string `json:"type" binding:"required"`
	GatewayRef  string `json:"gateway_ref" binding:"required"`
	AmountMinor int64  `json:"amount_minor"`
	OccurredAt  string `json:"occurred_at"`
}
