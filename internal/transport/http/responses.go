package http

import (
	"time"

	"github.com/vladislavdragonenkov/checkout/internal/domain"
)

type orderResponse struct {
	ID          string           `json:"id"`
	CustomerID  string           `json:"customer_id"`
	Status      string           `json:"status"`
	Currency    string           `json:"currency"`
	ShipAddress *addressResponse `json:"ship_address,omitempty"`

	Items       []itemResponse       `json:"items"`
	Adjustments []adjustmentResponse `json:"adjustments,omitempty"`
	Shipments   []shipmentResponse   `json:"shipments,omitempty"`
	Payments    []paymentResponse    `json:"payments,omitempty"`

	ItemTotalMinor       int64 `json:"item_total_minor"`
	AdjustmentTotalMinor int64 `json:"adjustment_total_minor"`
	ShipmentTotalMinor   int64 `json:"shipment_total_minor"`
	TotalMinor           int64 `json:"total_minor"`
	PaidMinor            int64 `json:"paid_minor"`
	UnpaidBalanceMinor   int64 `json:"unpaid_balance_minor"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type addressResponse struct {
	Line1      string `json:"line1"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country"`
}

type itemResponse struct {
	ID                   string               `json:"id"`
	VariantID            string               `json:"variant_id"`
	SKU                  string               `json:"sku"`
	Name                 string               `json:"name"`
	UnitPriceMinor       int64                `json:"unit_price_minor"`
	Qty                  int32                `json:"qty"`
	Adjustments          []adjustmentResponse `json:"adjustments,omitempty"`
	SubtotalMinor        int64                `json:"subtotal_minor"`
	AdjustmentTotalMinor int64                `json:"adjustment_total_minor"`
	TotalMinor           int64                `json:"total_minor"`
}

type adjustmentResponse struct {
	ID          string `json:"id"`
	Level       string `json:"level"`
	PromotionID string `json:"promotion_id,omitempty"`
	Label       string `json:"label"`
	AmountMinor int64  `json:"amount_minor"`
	Eligible    bool   `json:"eligible"`
}

type shipmentResponse struct {
	ID             string                 `json:"id"`
	LocationID     string                 `json:"location_id"`
	Status         string                 `json:"status"`
	CostMinor      int64                  `json:"cost_minor"`
	TrackingNumber string                 `json:"tracking_number,omitempty"`
	Items          []shipmentItemResponse `json:"items"`
}

type shipmentItemResponse struct {
	LineItemID string `json:"line_item_id"`
	VariantID  string `json:"variant_id"`
	Qty        int32  `json:"qty"`
}

type paymentResponse struct {
	ID            string `json:"id"`
	Provider      string `json:"provider"`
	MethodCode    string `json:"method_code"`
	Status        string `json:"status"`
	AmountMinor   int64  `json:"amount_minor"`
	RefundedMinor int64  `json:"refunded_minor,omitempty"`
	GatewayRef    string `json:"gateway_ref,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

type timelineEventResponse struct {
	OrderID  string    `json:"order_id"`
	Type     string    `json:"type"`
	Actor    string    `json:"actor"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred_at"`
}

func toOrderResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		ID:                   order.ID,
		CustomerID:           order.CustomerID,
		Status:               string(order.Status),
		Currency:             order.Currency,
		Items:                make([]itemResponse, 0, len(order.Items)),
		ItemTotalMinor:       order.ItemTotalMinor,
		AdjustmentTotalMinor: order.AdjustmentTotalMinor,
		ShipmentTotalMinor:   order.ShipmentTotalMinor,
		TotalMinor:           order.TotalMinor,
		PaidMinor:            order.PaidMinor(),
		UnpaidBalanceMinor:   order.UnpaidBalanceMinor(),
		Version:              order.Version,
		CreatedAt:            order.CreatedAt,
		UpdatedAt:            order.UpdatedAt,
	}
	if order.ShipAddress.Valid() {
		resp.ShipAddress = &addressResponse{
			Line1:      order.ShipAddress.Line1,
			City:       order.ShipAddress.City,
			Region:     order.ShipAddress.Region,
			PostalCode: order.ShipAddress.PostalCode,
			Country:    order.ShipAddress.Country,
		}
	}
	for i := range order.Items {
		resp.Items = append(resp.Items, toItemResponse(&order.Items[i]))
	}
	for _, adj := range order.Adjustments {
		resp.Adjustments = append(resp.Adjustments, toAdjustmentResponse(adj))
	}
	for i := range order.Shipments {
		resp.Shipments = append(resp.Shipments, toShipmentResponse(&order.Shipments[i]))
	}
	for i := range order.Payments {
		resp.Payments = append(resp.Payments, toPaymentResponse(&order.Payments[i]))
	}
	return resp
}

func toItemResponse(item *domain.LineItem) itemResponse {
	resp := itemResponse{
		ID:                   item.ID,
		VariantID:            item.VariantID,
		SKU:                  item.SKU,
		Name:                 item.Name,
		UnitPriceMinor:       item.UnitPriceMinor,
		Qty:                  item.Qty,
		SubtotalMinor:        item.SubtotalMinor(),
		AdjustmentTotalMinor: item.AdjustmentTotalMinor(),
		TotalMinor:           item.TotalMinor(),
	}
	for _, adj := range item.Adjustments {
		resp.Adjustments = append(resp.Adjustments, toAdjustmentResponse(adj))
	}
	return resp
}

func toAdjustmentResponse(adj domain.Adjustment) adjustmentResponse {
	return adjustmentResponse{
		ID:          adj.ID,
		Level:       string(adj.Level),
		PromotionID: adj.PromotionID,
		Label:       adj.Label,
		AmountMinor: adj.AmountMinor,
		Eligible:    adj.Eligible,
	}
}

func toShipmentResponse(shipment *domain.Shipment) shipmentResponse {
	resp := shipmentResponse{
		ID:             shipment.ID,
		LocationID:     shipment.LocationID,
		Status:         string(shipment.Status),
		CostMinor:      shipment.CostMinor,
		TrackingNumber: shipment.TrackingNumber,
		Items:          make([]shipmentItemResponse, 0, len(shipment.Items)),
	}
	for _, item := range shipment.Items {
		resp.Items = append(resp.Items, shipmentItemResponse{
			LineItemID: item.LineItemID,
			VariantID:  item.VariantID,
			Qty:        item.Qty,
		})
	}
	return resp
}

func toPaymentResponse(payment *domain.Payment) paymentResponse {
	return paymentResponse{
		ID:            payment.ID,
		Provider:      payment.Provider,
		MethodCode:    payment.MethodCode,
		Status:        string(payment.Status),
		AmountMinor:   payment.AmountMinor,
		RefundedMinor: payment.RefundedMinor,
		GatewayRef:    payment.GatewayRef,
		FailureReason: payment.FailureReason,
	}
}
