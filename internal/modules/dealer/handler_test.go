package dealer

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/georgemunganga/watchdealer-backend/internal/modules/gateway"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/gateway/gatewaytest"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/order"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/session"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/tenant"
	"github.com/georgemunganga/watchdealer-backend/internal/modules/watch"
	"github.com/georgemunganga/watchdealer-backend/internal/pkg/apperr"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var signingKey = []byte("test-secret")

const (
	acme   tenant.ID = "a0000000-0000-4000-8000-000000000001"
	globex tenant.ID = "b0000000-0000-4000-8000-000000000002"
)

type server struct {
	t        *testing.T
	router   http.Handler
	gw       *gatewaytest.Fake
	sessions *session.Manager
}

func newServer(t *testing.T) *server {
	gw := gatewaytest.NewFake()
	sessions := session.NewManager(gw, time.Hour)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(tenant.Middleware(signingKey))
		NewHandler(sessions).RegisterRoutes(r)
	})
	return &server{t: t, router: r, gw: gw, sessions: sessions}
}

func token(t *testing.T, id tenant.ID, role tenant.Role) string {
	tok, err := tenant.IssueToken(signingKey, tenant.Session{CompanyID: id, Subject: "user-" + string(role), Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *server) do(tok, method, path string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if out != nil {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func TestRequiresToken(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, http.StatusUnauthorized, s.do("", http.MethodGet, "/api/v1/watches", nil, nil))
}

func TestSaleFlow(t *testing.T) {
	s := newServer(t)
	staff := token(t, acme, tenant.RoleStaff)

	var cust struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	code := s.do(staff, http.MethodPost, "/api/v1/customers", map[string]any{
		"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com",
	}, &cust)
	require.Equal(t, http.StatusCreated, code)

	var errBody map[string]string
	code = s.do(staff, http.MethodPost, "/api/v1/customers", map[string]any{
		"first_name": "Janet", "last_name": "Doe", "email": "JANE@example.com",
	}, &errBody)
	assert.Equal(t, http.StatusConflict, code)
	assert.NotEmpty(t, errBody["error"])

	var w watch.Watch
	code = s.do(staff, http.MethodPost, "/api/v1/watches", map[string]any{
		"brand": "Omega", "model": "Speedmaster", "condition": "Good", "cost_price": "100",
	}, &w)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "150", w.RetailPrice.String())
	assert.Equal(t, "100", w.TradePrice.String())

	code = s.do(staff, http.MethodPost, "/api/v1/watches/"+w.ID+"/assign", map[string]string{"customer_id": cust.ID}, &w)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, cust.ID, w.AssignedCustomerID)

	var res gateway.Settlement
	code = s.do(staff, http.MethodPost, "/api/v1/watches/"+w.ID+"/sale", map[string]any{
		"customer_id": cust.ID, "sale_price": "145", "payment_method": "card",
	}, &res)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, watch.StatusSold, res.Watch.Status)
	assert.Equal(t, order.StatusCompleted, res.Order.Status)

	code = s.do(staff, http.MethodPost, "/api/v1/watches/"+w.ID+"/sale", map[string]any{
		"customer_id": cust.ID, "sale_price": "145", "payment_method": "card",
	}, nil)
	assert.Equal(t, http.StatusConflict, code)

	var orders []order.Order
	require.Equal(t, http.StatusOK, s.do(staff, http.MethodGet, "/api/v1/orders?watch_id="+w.ID, nil, &orders))
	assert.Len(t, orders, 1)

	// Reversal is an admin correction.
	assert.Equal(t, http.StatusForbidden,
		s.do(staff, http.MethodPost, "/api/v1/watches/"+w.ID+"/sale/reverse", map[string]string{"reason": "returned"}, nil))
	code = s.do(token(t, acme, tenant.RoleAdmin), http.MethodPost, "/api/v1/watches/"+w.ID+"/sale/reverse",
		map[string]string{"reason": "returned"}, &res)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, watch.StatusAvailable, res.Watch.Status)
}

func TestMarginAndStatus(t *testing.T) {
	s := newServer(t)
	staff := token(t, acme, tenant.RoleStaff)

	var w watch.Watch
	require.Equal(t, http.StatusCreated, s.do(staff, http.MethodPost, "/api/v1/watches", map[string]any{
		"brand": "Rolex", "model": "Datejust", "condition": "Excellent",
		"cost_price": "4000", "trade_price": "5000", "retail_price": "7500",
	}, &w))

	var rep struct {
		Margin           string `json:"margin"`
		MarginPercentage string `json:"margin_percentage"`
	}
	require.Equal(t, http.StatusOK, s.do(staff, http.MethodGet, "/api/v1/watches/"+w.ID+"/margin", nil, &rep))
	assert.Equal(t, "2500", rep.Margin)
	assert.Equal(t, "50", rep.MarginPercentage)

	require.Equal(t, http.StatusOK, s.do(staff, http.MethodPut, "/api/v1/watches/"+w.ID+"/status", map[string]string{"status": "reserved"}, &w))
	assert.Equal(t, watch.StatusReserved, w.Status)
	assert.Equal(t, http.StatusBadRequest, s.do(staff, http.MethodPut, "/api/v1/watches/"+w.ID+"/status", map[string]string{"status": "sold"}, nil))

	var list []watch.Watch
	require.Equal(t, http.StatusOK, s.do(staff, http.MethodGet, "/api/v1/watches?status=reserved", nil, &list))
	assert.Len(t, list, 1)
	require.Equal(t, http.StatusOK, s.do(staff, http.MethodGet, "/api/v1/watches?status=available", nil, &list))
	assert.Empty(t, list)
}

func TestTenantsDoNotSeeEachOther(t *testing.T) {
	s := newServer(t)
	require.Equal(t, http.StatusCreated, s.do(token(t, acme, tenant.RoleStaff), http.MethodPost, "/api/v1/customers", map[string]any{
		"first_name": "Jane", "last_name": "Doe", "email": "jane@example.com",
	}, nil))

	var list []map[string]any
	require.Equal(t, http.StatusOK, s.do(token(t, globex, tenant.RoleStaff), http.MethodGet, "/api/v1/customers", nil, &list))
	assert.Empty(t, list)
}

func TestBackendDown(t *testing.T) {
	s := newServer(t)
	s.gw.FailNext("ListCustomers", apperr.ErrUnavailable)
	assert.Equal(t, http.StatusServiceUnavailable,
		s.do(token(t, acme, tenant.RoleStaff), http.MethodGet, "/api/v1/customers", nil, nil))
}

func TestBadBody(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/customers", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+token(t, acme, tenant.RoleStaff))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCloseSession(t *testing.T) {
	s := newServer(t)
	staff := token(t, acme, tenant.RoleStaff)

	require.Equal(t, http.StatusOK, s.do(staff, http.MethodGet, "/api/v1/customers", nil, nil))
	require.Equal(t, 1, s.sessions.Len())

	assert.Equal(t, http.StatusNoContent, s.do(staff, http.MethodDelete, "/api/v1/session", nil, nil))
	assert.Zero(t, s.sessions.Len())

	assert.Equal(t, http.StatusUnauthorized, s.do("", http.MethodDelete, "/api/v1/session", nil, nil))
}
