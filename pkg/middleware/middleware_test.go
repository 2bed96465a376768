package middleware

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/warehouse-core/pkg/errors"
	"github.com/wms-platform/warehouse-core/pkg/logging"
	"github.com/wms-platform/warehouse-core/pkg/metrics"
)

var errOutOfStock = stderrors.New("insufficient stock")

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	Setup(router, &Config{
		Logger:      logging.NewNop(),
		Metrics:     metrics.New(metrics.DefaultConfig("test")),
		ServiceName: "test",
		ErrorMappings: []errors.Mapping{
			{Target: errOutOfStock, Build: errors.ErrInsufficientStock},
		},
	})
	return router
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIErrorResponse {
	t.Helper()
	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestErrorHandler_MapsDomainErrors(t *testing.T) {
	router := newTestRouter(t)
	router.POST("/movements", WrapHandler(func(c *gin.Context) error {
		return errOutOfStock
	}))

	req := httptest.NewRequest(http.MethodPost, "/movements", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, errors.CodeInsufficientStock, resp.Code)
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, "/movements", resp.Path)
	assert.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))
	assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))
}

func TestErrorHandler_UnmappedIsInternal(t *testing.T) {
	router := newTestRouter(t)
	router.GET("/boom", WrapHandler(func(c *gin.Context) error {
		return stderrors.New("disk on fire")
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.CodeInternalError, decodeError(t, rec).Code)
}

type createOrderRequest struct {
	Priority string `json:"priority" binding:"omitempty,priority"`
	Carrier  string `json:"carrier" binding:"required,carrier_code"`
	Quantity int    `json:"quantity" binding:"required,gt=0"`
}

func TestEnumTags_WithGinBinding(t *testing.T) {
	require.NoError(t, RegisterEnumTags(
		EnumTag{Tag: "priority", Values: []string{"low", "normal", "high", "urgent"}},
		EnumTag{Tag: "carrier_code", Values: []string{"UPS", "FEDEX"}, CaseInsensitive: true},
	))

	router := newTestRouter(t)
	router.POST("/orders", WrapHandler(func(c *gin.Context) error {
		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			return err
		}
		c.JSON(http.StatusCreated, req)
		return nil
	}))

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		router.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusCreated, post(`{"priority":"high","carrier":"ups","quantity":2}`).Code)
	assert.Equal(t, http.StatusCreated, post(`{"carrier":"FEDEX","quantity":1}`).Code)

	rec := post(`{"priority":"asap","carrier":"ACME","quantity":0}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, errors.CodeValidationError, resp.Code)
	assert.Equal(t, "is not a valid priority", resp.Details["priority"])
	assert.Equal(t, "is not a valid carrier code", resp.Details["carrier"])
	assert.Equal(t, "is required", resp.Details["quantity"])
}

func TestNewValidator(t *testing.T) {
	v, err := NewValidator(EnumTag{Tag: "movement_type", Values: []string{"inbound", "outbound"}})
	require.NoError(t, err)

	assert.NoError(t, v.Var("inbound", "movement_type"))
	assert.Error(t, v.Var("teleport", "movement_type"))
	assert.Error(t, v.Var("INBOUND", "movement_type"))
}

func TestRecovery(t *testing.T) {
	router := newTestRouter(t)
	router.GET("/panic", func(c *gin.Context) { panic("unexpected") })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.CodeInternalError, decodeError(t, rec).Code)
}

func TestNoRouteAndNoMethod(t *testing.T) {
	router := newTestRouter(t)
	router.GET("/stats", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROUTE_NOT_FOUND", decodeError(t, rec).Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/stats", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsMiddleware_LabelsByRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New(metrics.DefaultConfig("test"))
	router := gin.New()
	router.Use(MetricsMiddleware(m))
	router.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", MetricsEndpoint(m))

	for _, path := range []string{"/orders/ord-1", "/orders/ord-2", "/wp-admin", "/health", "/metrics"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	tests := []struct {
		route  string
		status string
		want   float64
	}{
		{"/orders/:id", "200", 2},
		{unmatchedRoute, "404", 1},
		{"/health", "200", 0},
		{"/metrics", "200", 0},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("test", http.MethodGet, tt.route, tt.status))
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Zero(t, testutil.ToFloat64(m.HTTPRequestsInFlight))
}
