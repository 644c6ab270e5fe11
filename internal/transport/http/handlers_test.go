package http_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/checkout/internal/checkout"
	"github.com/vladislavdragonenkov/checkout/internal/domain"
	"github.com/vladislavdragonenkov/checkout/internal/fulfillment"
	"github.com/vladislavdragonenkov/checkout/internal/inventory"
	"github.com/vladislavdragonenkov/checkout/internal/payments"
	"github.com/vladislavdragonenkov/checkout/internal/pricing"
	"github.com/vladislavdragonenkov/checkout/internal/storage/memory"
	transporthttp "github.com/vladislavdragonenkov/checkout/internal/transport/http"
)

const webhookSecret = "whsec_test"

type stubCatalog struct{}

func (stubCatalog) Variant(variantID string) (domain.Variant, error) {
	if variantID != "variant-1" {
		return domain.Variant{}, domain.ErrVariantNotFound
	}
	return domain.Variant{ID: "variant-1", SKU: "sku-1", Name: "Widget", PriceMinor: 1999, Currency: "USD"}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *payments.MockGateway) {
	t.Helper()

	stockRepo := memory.NewStockRepository()
	stockRepo.AddLocation(domain.StockLocation{ID: "loc-a", Name: "loc-a", ProximityRank: 1, Active: true})
	require.NoError(t, stockRepo.Create(domain.StockItem{
		ID: "stock-a", VariantID: "variant-1", LocationID: "loc-a",
		OnHand: 10, CreatedAt: time.Now().UTC(),
	}))

	ledger := inventory.NewLedger(stockRepo, nil)
	planner := fulfillment.NewPlanner(stockRepo, ledger, 500, fulfillment.StrategyOptions{}, nil)
	pricingEngine := pricing.NewEngine(pricing.NewMockPromotionService(), nil)

	key := payments.KeyFromSecret("transport-test")
	sealed, err := payments.SealCredentials(domain.GatewayCredentials{
		MerchantID: "merchant-1", SecretKey: "sk_test", WebhookSecret: webhookSecret,
	}, key)
	require.NoError(t, err)

	methods := memory.NewPaymentMethodRepository()
	methods.Put(domain.PaymentMethod{Code: "card", Provider: "mockpay", SealedCredentials: sealed})

	gateway := &payments.MockGateway{}
	registry := payments.NewRegistry()
	registry.Register("mockpay", gateway)
	coordinator := payments.NewCoordinator(methods, memory.NewWebhookRepository(), registry, key, nil, nil)

	engine := checkout.NewEngine(checkout.Deps{
		Orders:   memory.NewOrderRepository(),
		Outbox:   memory.NewOutboxRepository(),
		Timeline: memory.NewTimelineRepository(),
		Catalog:  stubCatalog{},
		Pricing:  pricingEngine,
		Planner:  planner,
		Ledger:   ledger,
		Payments: coordinator,
	})

	router := transporthttp.NewRouter(transporthttp.NewHandler(engine, "", nil), nil, true)
	return router, gateway
}

func doRequest(t *testing.T, router *gin.Engine, method, path string, body any, asCustomer bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if asCustomer {
		req.Header.Set("X-Actor-Id", "customer-1")
		req.Header.Set("X-Actor-Kind", "customer")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var payload map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestCheckoutOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/orders",
		gin.H{"customer_id": "customer-1", "currency": "USD"}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	order := decodeOrder(t, rec)
	orderID := order["id"].(string)
	assert.Equal(t, "cart", order["status"])

	rec = doRequest(t, router, http.MethodPost, "/v1/orders/"+orderID+"/items",
		gin.H{"variant_id": "variant-1", "qty": 2}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3998, decodeOrder(t, rec)["total_minor"])

	rec = doRequest(t, router, http.MethodPut, "/v1/orders/"+orderID+"/address",
		gin.H{"line1": "1 Main St", "city": "Springfield", "country": "US"}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "address_set", decodeOrder(t, rec)["status"])

	rec = doRequest(t, router, http.MethodPost, "/v1/orders/"+orderID+"/delivery",
		gin.H{}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order = decodeOrder(t, rec)
	assert.Equal(t, "delivery_selected", order["status"])
	assert.EqualValues(t, 4498, order["total_minor"])

	rec = doRequest(t, router, http.MethodPost, "/v1/orders/"+orderID+"/payments",
		gin.H{"method_code": "card", "amount_minor": 4498}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "payment_selected", decodeOrder(t, rec)["status"])

	rec = doRequest(t, router, http.MethodPost, "/v1/orders/"+orderID+"/confirm", nil, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "confirmed", decodeOrder(t, rec)["status"])

	rec = doRequest(t, router, http.MethodGet, "/v1/orders/"+orderID+"/timeline", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	var timeline struct {
		Events []map[string]any `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &timeline))
	assert.NotEmpty(t, timeline.Events)
}

func TestMissingActorHeader(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/orders",
		gin.H{"customer_id": "customer-1", "currency": "USD"}, false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownOrderReturns404(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/v1/orders/nope", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBlockedTransitionReturns409(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/orders",
		gin.H{"customer_id": "customer-1", "currency": "USD"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decodeOrder(t, rec)["id"].(string)

	// confirm из статуса cart невозможен
	rec = doRequest(t, router, http.MethodPost, "/v1/orders/"+orderID+"/confirm", nil, true)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestValidationFailureReturns422(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/orders",
		gin.H{"customer_id": "customer-1", "currency": "usd"}, true)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestWebhookSignatureAndReplay(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/v1/orders",
		gin.H{"customer_id": "customer-1", "currency": "USD"}, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	orderID := decodeOrder(t, rec)["id"].(string)

	steps := []struct {
		method string
		path   string
		body   gin.H
	}{
		{http.MethodPost, "/items", gin.H{"variant_id": "variant-1", "qty": 1}},
		{http.MethodPut, "/address", gin.H{"line1": "1 Main St", "city": "Springfield", "country": "US"}},
		{http.MethodPost, "/delivery", gin.H{}},
	}
	for _, step := range steps {
		rec = doRequest(t, router, step.method, "/v1/orders/"+orderID+step.path, step.body, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}
	rec = doRequest(t, router, http.MethodPost, "/v1/orders/"+orderID+"/payments",
		gin.H{"method_code": "card", "amount_minor": 2499}, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	order := decodeOrder(t, rec)
	gatewayRef := order["payments"].([]any)[0].(map[string]any)["gateway_ref"].(string)

	payload, err := json.Marshal(gin.H{
		"event_id":     "evt-1",
		"type":         "captured",
		"gateway_ref":  gatewayRef,
		"amount_minor": 2499,
	})
	require.NoError(t, err)

	send := func(signature string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/mockpay", bytes.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Webhook-Signature", signature)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	rec = send("bogus")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	valid := payments.SignWebhookPayload(payload, webhookSecret)
	rec = send(valid)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// повторная доставка идемпотентна
	rec = send(valid)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, fmt.Sprintf("/v1/orders/%s", orderID), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	order = decodeOrder(t, rec)
	payment := order["payments"].([]any)[0].(map[string]any)
	assert.Equal(t, "captured", payment["status"])
}
