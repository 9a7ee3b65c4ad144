package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/marketplace/pkg/jwt"
	"example.com/marketplace/services/marketplace/internal/domain"
	"example.com/marketplace/services/marketplace/internal/middleware"
	"example.com/marketplace/services/marketplace/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =====================================
// Моки
// =====================================

type MockMarketplace struct {
	mock.Mock
}

func outcome(args mock.Arguments) (*service.Outcome, error) {
	out, _ := args.Get(0).(*service.Outcome)
	return out, args.Error(1)
}

func (m *MockMarketplace) CreateOrder(ctx context.Context, actor domain.Actor, req service.CreateOrderRequest) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, req))
}

func (m *MockMarketplace) AdvanceOrder(ctx context.Context, actor domain.Actor, id string, to domain.Status) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, id, to))
}

func (m *MockMarketplace) SubmitApplication(ctx context.Context, actor domain.Actor, req service.ApplicationRequest) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, req))
}

func (m *MockMarketplace) CreateAd(ctx context.Context, actor domain.Actor, req service.AdRequest) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, req))
}

func (m *MockMarketplace) Approve(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, kind, id))
}

func (m *MockMarketplace) Reject(ctx context.Context, actor domain.Actor, kind domain.Kind, id, reason string) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, kind, id, reason))
}

func (m *MockMarketplace) Waive(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, kind, id))
}

func (m *MockMarketplace) DemandPayment(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, kind, id))
}

func (m *MockMarketplace) Pay(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*service.Outcome, error) {
	return outcome(m.Called(ctx, actor, kind, id))
}

func (m *MockMarketplace) Get(ctx context.Context, actor domain.Actor, kind domain.Kind, id string) (*domain.PayableEntity, error) {
	args := m.Called(ctx, actor, kind, id)
	e, _ := args.Get(0).(*domain.PayableEntity)
	return e, args.Error(1)
}

func (m *MockMarketplace) List(ctx context.Context, actor domain.Actor, req service.ListRequest) (*service.ListResult, error) {
	args := m.Called(ctx, actor, req)
	res, _ := args.Get(0).(*service.ListResult)
	return res, args.Error(1)
}

func (m *MockMarketplace) CreateProduct(ctx context.Context, actor domain.Actor, req service.ProductRequest) (*domain.Product, error) {
	args := m.Called(ctx, actor, req)
	p, _ := args.Get(0).(*domain.Product)
	return p, args.Error(1)
}

func (m *MockMarketplace) Restock(ctx context.Context, actor domain.Actor, id string, quantity int) (*domain.Product, error) {
	args := m.Called(ctx, actor, id, quantity)
	p, _ := args.Get(0).(*domain.Product)
	return p, args.Error(1)
}

func (m *MockMarketplace) HandleWebhook(ctx context.Context, provider string, header http.Header, body []byte) (*service.WebhookResult, error) {
	args := m.Called(ctx, provider, header, body)
	res, _ := args.Get(0).(*service.WebhookResult)
	return res, args.Error(1)
}

func (m *MockMarketplace) ReconciliationReport(ctx context.Context, actor domain.Actor) (*bytes.Buffer, error) {
	args := m.Called(ctx, actor)
	buf, _ := args.Get(0).(*bytes.Buffer)
	return buf, args.Error(1)
}

// stubVerifier принимает токен вида "<role>:<id>".
type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, token string) (*jwt.Claims, error) {
	role, id, ok := strings.Cut(token, ":")
	if !ok {
		return nil, jwt.ErrInvalidToken
	}
	return &jwt.Claims{UserID: id, Role: role, Email: id + "@example.com"}, nil
}

// =====================================
// Вспомогательные функции
// =====================================

var (
	buyer  = domain.Actor{ID: "b1", Role: domain.RoleBuyer, Email: "b1@example.com"}
	seller = domain.Actor{ID: "s1", Role: domain.RoleSeller, Email: "s1@example.com"}
	admin  = domain.Actor{ID: "a1", Role: domain.RoleAdmin, Email: "a1@example.com"}
)

func newTestRouter(svc *MockMarketplace) *gin.Engine {
	return NewRouter(RouterConfig{
		Service: svc,
		AuthMW:  middleware.NewAuthMiddleware(stubVerifier{}),
	}).Engine()
}

func do(t *testing.T, r *gin.Engine, method, path string, actor *domain.Actor, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s:%s", actor.Role, actor.ID))
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func sampleOrder(status domain.Status, payment domain.PaymentState) *domain.PayableEntity {
	return &domain.PayableEntity{
		ID:             "4b0d5a7e-8d6f-4a55-bb0b-3a6c1e2f9d10",
		Kind:           domain.KindOrder,
		Status:         status,
		PaymentState:   payment,
		PaymentMethod:  domain.MethodManual,
		Amount:         decimal.RequireFromString("37.5"),
		Currency:       "USD",
		OwnerID:        buyer.ID,
		CounterpartyID: seller.ID,
		CreatedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Order:          &domain.OrderDetails{ProductTitle: "Wax print", Quantity: 3},
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// =====================================
// Заказы
// =====================================

func TestCreateOrder(t *testing.T) {
	svc := new(MockMarketplace)
	r := newTestRouter(svc)

	svc.On("CreateOrder", mock.Anything, buyer, service.CreateOrderRequest{
		ProductID: "p1", Quantity: 3, Method: domain.MethodManual, ShippingAddress: "Douala",
	}).Return(&service.Outcome{Entity: sampleOrder(domain.StatusProcessing, domain.PaymentUnpaid), Applied: true}, nil).Once()

	w := do(t, r, http.MethodPost, "/api/v1/orders", &buyer, map[string]any{
		"product_id": "p1", "quantity": 3, "payment_method": "cash_on_delivery", "shipping_address": "Douala",
	})

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp PayableResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "processing", resp.Status)
	assert.Equal(t, "unpaid", resp.PaymentState)
	assert.Equal(t, "37.50", resp.Amount)
	assert.True(t, resp.Changed)
	svc.AssertExpectations(t)
}

func TestCreateOrder_Errors(t *testing.T) {
	tests := []struct {
		name       string
		actor      *domain.Actor
		body       any
		setup      func(*MockMarketplace)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "без токена",
			body:       map[string]any{"product_id": "p1", "quantity": 1, "payment_method": "card"},
			setup:      func(*MockMarketplace) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthorized",
		},
		{
			name:       "невалидный JSON",
			actor:      &buyer,
			body:       "{",
			setup:      func(*MockMarketplace) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "неизвестный способ оплаты",
			actor:      &buyer,
			body:       map[string]any{"product_id": "p1", "quantity": 1, "payment_method": "barter"},
			setup:      func(*MockMarketplace) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_argument",
		},
		{
			name:  "нет товара на складе",
			actor: &buyer,
			body:  map[string]any{"product_id": "p1", "quantity": 1, "payment_method": "cash"},
			setup: func(m *MockMarketplace) {
				m.On("CreateOrder", mock.Anything, buyer, mock.Anything).Return(nil, domain.ErrInsufficientStock).Once()
			},
			wantStatus: http.StatusConflict,
			wantCode:   "insufficient_stock",
		},
		{
			name:  "шлюз недоступен",
			actor: &buyer,
			body:  map[string]any{"product_id": "p1", "quantity": 1, "payment_method": "card"},
			setup: func(m *MockMarketplace) {
				m.On("CreateOrder", mock.Anything, buyer, mock.Anything).
					Return(&service.Outcome{Entity: sampleOrder(domain.StatusPending, domain.PaymentUnpaid)},
						fmt.Errorf("%w: stripe: timeout", domain.ErrPaymentInitiationFailed)).Once()
			},
			wantStatus: http.StatusBadGateway,
			wantCode:   "payment_initiation_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockMarketplace)
			tt.setup(svc)
			w := do(t, newTestRouter(svc), http.MethodPost, "/api/v1/orders", tt.actor, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeError(t, w)
			assert.Equal(t, tt.wantCode, resp.Error)
			if tt.wantStatus == http.StatusBadGateway {
				require.NotNil(t, resp.Entity, "клиент должен узнать id заказа, чтобы повторить оплату")
				assert.Equal(t, "unpaid", resp.Entity.PaymentState)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestAdvanceOrder(t *testing.T) {
	svc := new(MockMarketplace)
	r := newTestRouter(svc)
	order := sampleOrder(domain.StatusProcessing, domain.PaymentUnpaid)

	svc.On("AdvanceOrder", mock.Anything, buyer, order.ID, domain.StatusShipped).Return(&service.Outcome{Entity: order}, domain.ErrUnauthorized).Once()
	w := do(t, r, http.MethodPost, "/api/v1/orders/"+order.ID+"/status", &buyer, map[string]string{"next_status": "shipped"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	shipped := sampleOrder(domain.StatusShipped, domain.PaymentUnpaid)
	svc.On("AdvanceOrder", mock.Anything, seller, order.ID, domain.StatusShipped).Return(&service.Outcome{Entity: shipped, Applied: true}, nil).Once()
	w = do(t, r, http.MethodPost, "/api/v1/orders/"+order.ID+"/status", &seller, map[string]string{"next_status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"shipped"`)

	svc.On("AdvanceOrder", mock.Anything, seller, order.ID, domain.StatusShipped).Return(&service.Outcome{Entity: shipped}, nil).Once()
	w = do(t, r, http.MethodPost, "/api/v1/orders/"+order.ID+"/status", &seller, map[string]string{"next_status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"changed":false`)
	svc.AssertExpectations(t)
}

// =====================================
// Модерация
// =====================================

func TestReview(t *testing.T) {
	svc := new(MockMarketplace)
	r := newTestRouter(svc)
	ad := &domain.PayableEntity{ID: "ad-1", Kind: domain.KindAdCampaign, Status: domain.StatusPendingPayment,
		PaymentState: domain.PaymentUnpaid, Ad: &domain.AdDetails{Title: "Sale"}}

	svc.On("Approve", mock.Anything, admin, domain.KindAdCampaign, "ad-1").Return(&service.Outcome{Entity: ad}, domain.ErrPaymentRequired).Once()
	w := do(t, r, http.MethodPost, "/api/v1/admin/ads/ad-1/review", &admin, map[string]string{"action": "approve"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "payment_required", decodeError(t, w).Error)

	rejected := *ad
	rejected.Status = domain.StatusRejected
	svc.On("Reject", mock.Anything, admin, domain.KindAdCampaign, "ad-1", "spam").Return(&service.Outcome{Entity: &rejected, Applied: true}, nil).Once()
	w = do(t, r, http.MethodPost, "/api/v1/admin/ads/ad-1/review", &admin, map[string]string{"action": "reject", "reason": "spam"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/admin/ads/ad-1/review", &admin, map[string]string{"action": "delete"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("Waive", mock.Anything, admin, domain.KindSellerApplication, "app-1").
		Return(&service.Outcome{Entity: &domain.PayableEntity{ID: "app-1", Kind: domain.KindSellerApplication,
			Application: &domain.ApplicationDetails{StoreName: "Shop"}}, Applied: true}, nil).Once()
	w = do(t, r, http.MethodPost, "/api/v1/admin/seller-applications/app-1/review", &admin, map[string]string{"action": "waive_payment"})
	assert.Equal(t, http.StatusOK, w.Code)

	svc.On("DemandPayment", mock.Anything, admin, domain.KindSellerApplication, "app-1").
		Return(nil, domain.ErrIllegalTransition).Once()
	w = do(t, r, http.MethodPost, "/api/v1/admin/seller-applications/app-1/demand-payment", &admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	svc.AssertExpectations(t)
}

func TestPayAndGet(t *testing.T) {
	svc := new(MockMarketplace)
	r := newTestRouter(svc)
	order := sampleOrder(domain.StatusPending, domain.PaymentPending)

	svc.On("Pay", mock.Anything, buyer, domain.KindOrder, order.ID).
		Return(&service.Outcome{Entity: order, Applied: true, RedirectURL: "https://pay.test/x"}, nil).Once()
	w := do(t, r, http.MethodPost, "/api/v1/payables/order/"+order.ID+"/pay", &buyer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redirect_url":"https://pay.test/x"`)

	w = do(t, r, http.MethodPost, "/api/v1/payables/invoice/"+order.ID+"/pay", &buyer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	svc.On("Get", mock.Anything, seller, domain.KindOrder, order.ID).Return(order, nil).Once()
	w = do(t, r, http.MethodGet, "/api/v1/payables/order/"+order.ID, &seller, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"4b0d5a7e"`)

	svc.On("Get", mock.Anything, buyer, domain.KindOrder, "missing").Return(nil, domain.ErrEntityNotFound).Once()
	w = do(t, r, http.MethodGet, "/api/v1/payables/order/missing", &buyer, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}

func TestList(t *testing.T) {
	svc := new(MockMarketplace)
	r := newTestRouter(svc)

	svc.On("List", mock.Anything, seller, service.ListRequest{
		Kind: domain.KindOrder, Status: domain.StatusProcessing, AsSeller: true, Page: 2, PageSize: 10,
	}).Return(&service.ListResult{Items: []*domain.PayableEntity{sampleOrder(domain.StatusProcessing, domain.PaymentUnpaid)}, Total: 11, Page: 2, PageSize: 10}, nil).Once()

	w := do(t, r, http.MethodGet, "/api/v1/payables/order?status=processing&as=seller&page=2&page_size=10", &seller, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, int64(11), resp.Total)
	assert.Len(t, resp.Items, 1)
	svc.AssertExpectations(t)
}

// =====================================
// Каталог и отчёт
// =====================================

func TestCatalog(t *testing.T) {
	svc := new(MockMarketplace)
	r := newTestRouter(svc)
	product := &domain.Product{ID: "p1", SellerID: seller.ID, Title: "Wax", Price: decimal.NewFromInt(12), Currency: "USD", Stock: 3}

	svc.On("CreateProduct", mock.Anything, seller, mock.MatchedBy(func(req service.ProductRequest) bool {
		return req.Title == "Wax" && req.Price.Equal(decimal.NewFromInt(12)) && req.Stock == 3
	})).Return(product, nil).Once()
	w := do(t, r, http.MethodPost, "/api/v1/products", &seller, map[string]any{"title": "Wax", "price": "12", "currency": "USD", "stock": 3})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"price":"12.00"`)

	svc.On("Restock", mock.Anything, buyer, "p1", 5).Return(nil, domain.ErrUnauthorized).Once()
	w = do(t, r, http.MethodPost, "/api/v1/products/p1/restock", &buyer, map[string]int{"quantity": 5})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/products/p1/restock", &seller, map[string]int{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestReconciliationReport(t *testing.T) {
	svc := new(MockMarketplace)
	r := newTestRouter(svc)

	svc.On("ReconciliationReport", mock.Anything, admin).Return(bytes.NewBufferString("PK-xlsx"), nil).Once()
	w := do(t, r, http.MethodGet, "/api/v1/admin/reconciliation/report.xlsx", &admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "reconciliation-")
	assert.Equal(t, "PK-xlsx", w.Body.String())

	svc.On("ReconciliationReport", mock.Anything, buyer).Return(nil, domain.ErrUnauthorized).Once()
	w = do(t, r, http.MethodGet, "/api/v1/admin/reconciliation/report.xlsx", &buyer, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertExpectations(t)
}

// =====================================
// Вебхуки
// =====================================

func TestWebhooks(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		provider   string
		result     *service.WebhookResult
		err        error
		wantStatus int
	}{
		{"оплата применена", "/webhooks/mobile-money", ProviderFlutterwave, &service.WebhookResult{Outcome: service.WebhookApplied}, nil, http.StatusOK},
		{"повтор", "/webhooks/card", ProviderStripe, &service.WebhookResult{Outcome: service.WebhookDuplicate}, nil, http.StatusOK},
		{"бизнес-отказ подтверждается", "/webhooks/paypal", ProviderPayPal, &service.WebhookResult{Outcome: service.WebhookIgnored}, nil, http.StatusOK},
		{"чужая подпись", "/webhooks/card", ProviderStripe, nil, domain.ErrInvalidSignature, http.StatusBadRequest},
		{"хранилище недоступно", "/webhooks/mobile-money", ProviderFlutterwave, nil, errors.New("db down"), http.StatusServiceUnavailable},
		{"провайдер не настроен", "/webhooks/paypal", ProviderPayPal, nil, service.ErrUnknownProvider, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockMarketplace)
			body := []byte(`{"event":"charge.completed"}`)
			svc.On("HandleWebhook", mock.Anything, tt.provider, mock.Anything, body).Return(tt.result, tt.err).Once()

			w := do(t, newTestRouter(svc), http.MethodPost, tt.path, nil, string(body))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.result != nil {
				assert.Contains(t, w.Body.String(), `"outcome":"`+tt.result.Outcome+`"`)
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestHealthProbes(t *testing.T) {
	r := NewRouter(RouterConfig{
		Service:        new(MockMarketplace),
		ReadinessCheck: func(context.Context) error { return errors.New("mysql: connection refused") },
	}).Engine()

	w := do(t, r, http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodGet, "/readyz", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.Invalid("quantity", "bad"), http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrEntityNotFound, http.StatusNotFound},
		{domain.ErrProductNotFound, http.StatusNotFound},
		{domain.ErrIllegalTransition, http.StatusConflict},
		{domain.ErrPaymentRequired, http.StatusConflict},
		{domain.ErrInsufficientStock, http.StatusConflict},
		{domain.ErrConcurrentUpdate, http.StatusConflict},
		{fmt.Errorf("%w: x", domain.ErrPaymentInitiationFailed), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		status, _ := errorStatus(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
	}
}
