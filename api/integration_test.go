package api_test

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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"api_ventas/api"
	"api_ventas/internal/sales"
)

// brokenStorage simula un document store inalcanzable.
type brokenStorage struct{}

func (brokenStorage) Create(context.Context, *sales.SaleRecord) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}

func (brokenStorage) List(context.Context, sales.ListQuery) (*sales.Page, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func InitRoutesTests(t *testing.T, storage sales.Storage, cfg api.RouterConfig) *gin.Engine {
	t.Helper()
	// 1. Configurar Gin
	gin.SetMode(gin.TestMode)
	router := gin.New()

	// 2. Servicio de ventas sobre el storage dado
	mapper, err := sales.NewMapper(time.UTC)
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	service := sales.NewService(storage, mapper, logger, sales.WithMaxLimit(100))

	// 3. Inicializar las rutas
	api.InitRoutes(router, service, logger, cfg)
	return router
}

func salePayload(receipt int, date, customer string) []byte {
	return []byte(fmt.Sprintf(`{
		"ventaIdPos": %d, "empresaIdCor": 1, "sucursalIdPos": 2,
		"fechaVentaVnt": %q,
		"totalVentaVnt": 1000, "totalCantidadVnt": 1, "pagoRecibidoVnt": 1000,
		"totalNetoVnt": 840, "totalDescuentoVnt": 0,
		"rutClienteVnt": "11.111.111-1", "nombreClienteVnt": %q,
		"nombreUsuarioAppEmpPos": "cajero", "folioDoc": %d, "tokenVnt": "tok",
		"detalles": [{"skuDtv": "A1", "nombreProductoDtv": "Pan", "cantidadProductoDtv": 1,
			"precioProductoDtv": 1000, "totalProductoDtv": 1000}],
		"ingresos": [{"glosaInv": "Efectivo", "montoInv": 1000}],
		"dteReceptor": null
	}`, receipt, date, customer, receipt))
}

func post(router http.Handler, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error"`
	DocumentID string             `json:"documentId"`
	Ventas     []sales.SaleRecord `json:"ventas"`
	Total      int                `json:"total"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

// TestSalesHappyPath_FullFlow prueba el flujo completo de webhook -> listado en el happy path.
func TestSalesHappyPath_FullFlow(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{})

	var firstID string

	//1: POST /webhook/venta
	t.Run("POST_ReceiveSale", func(t *testing.T) {
		w := post(router, "/webhook/venta", salePayload(100, "2024-05-01T10:00:00Z", "Panadería Sur"))
		assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

		env := decode(t, w)
		assert.True(t, env.Success)
		assert.NotEmpty(t, env.DocumentID, "Expected document ID to be generated")
		firstID = env.DocumentID
	})

	// una venta más reciente y una duplicada de la primera
	require.Equal(t, http.StatusOK, post(router, "/webhook/venta", salePayload(101, "2024-05-02T10:00:00Z", "ACME Ltda")).Code)
	require.Equal(t, http.StatusOK, post(router, "/webhook/venta", salePayload(100, "2024-05-01T10:00:00Z", "Panadería Sur")).Code)

	//2: GET /api/ventas
	t.Run("GET_ListSales", func(t *testing.T) {
		w := get(router, "/api/ventas?limit=2&offset=0")
		assert.Equal(t, http.StatusOK, w.Code)

		env := decode(t, w)
		assert.True(t, env.Success)
		assert.Equal(t, 3, env.Total, "total counts every stored document")
		require.Len(t, env.Ventas, 2)
		assert.Equal(t, int64(101), env.Ventas[0].ReceiptNumber, "most recent sale first")
		assert.Equal(t, firstID, env.Ventas[1].ID, "ties keep insertion order")
		assert.False(t, env.Ventas[0].SaleDate.Before(env.Ventas[1].SaleDate))
	})

	t.Run("GET_ListSales_Defaults", func(t *testing.T) {
		env := decode(t, get(router, "/api/ventas"))
		assert.Len(t, env.Ventas, 3)
	})

	t.Run("GET_ListSales_Offset", func(t *testing.T) {
		env := decode(t, get(router, "/api/ventas?limit=10&offset=2"))
		require.Len(t, env.Ventas, 1)
		assert.Equal(t, 3, env.Total)
	})
}

func TestReceiveSale_RawPayloadRoundTrip(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{})
	body := salePayload(7, "2024-05-01T10:00:00Z", "Cliente")

	require.Equal(t, http.StatusOK, post(router, "/webhook/venta", body).Code)
	env := decode(t, get(router, "/api/ventas?limit=1"))
	require.Len(t, env.Ventas, 1)

	var original, stored any
	require.NoError(t, json.Unmarshal(body, &original))
	require.NoError(t, json.Unmarshal([]byte(env.Ventas[0].RawPayload), &stored))
	assert.Equal(t, original, stored)
}

func TestReceiveSale_InvalidPayloadIs400(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", `ventaIdPos=1`},
		{"json array", `[1,2,3]`},
		{"missing fields", `{"ventaIdPos": 1}`},
		{"negative total", strings.Replace(string(salePayload(1, "2024-05-01T10:00:00Z", "X")), `"totalVentaVnt": 1000`, `"totalVentaVnt": -5`, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(router, "/webhook/venta", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			env := decode(t, w)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}

	env := decode(t, get(router, "/api/ventas"))
	assert.Zero(t, env.Total, "rejected payloads are never stored")
}

func TestReceiveSale_BodyTooLarge(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{MaxBodyBytes: 64})

	w := post(router, "/webhook/venta", salePayload(1, "2024-05-01T10:00:00Z", "X"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, decode(t, w).Success)
}

func TestStoreFailureIs500(t *testing.T) {
	router := InitRoutesTests(t, brokenStorage{}, api.RouterConfig{})

	w := post(router, "/webhook/venta", salePayload(1, "2024-05-01T10:00:00Z", "X"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env := decode(t, w)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "connection refused")

	w = get(router, "/api/ventas")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	env = decode(t, w)
	assert.False(t, env.Success)
	assert.Nil(t, env.Ventas, "no partial results")
}

func TestListSales_RejectsBadQuery(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{})

	for _, q := range []string{"limit=abc", "limit=-1", "limit=0", "limit=101", "offset=-3", "offset=1.5"} {
		w := get(router, "/api/ventas?"+q)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.False(t, decode(t, w).Success, q)
	}
}

func TestWebhookRateLimit(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{WebhookRate: 0.001, WebhookBurst: 1})
	body := salePayload(1, "2024-05-01T10:00:00Z", "X")

	assert.Equal(t, http.StatusOK, post(router, "/webhook/venta", body).Code)
	w := post(router, "/webhook/venta", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, decode(t, w).Success)

	// el listado no está limitado
	assert.Equal(t, http.StatusOK, get(router, "/api/ventas").Code)
}

func TestHealthAndRequestID(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{})

	w := get(router, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var health struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "OK", health.Status)
	_, err := time.Parse(api.TimestampLayout, health.Timestamp)
	assert.NoError(t, err)
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`, health.Timestamp)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestCORS(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{CORSOrigins: []string{"http://localhost:8080"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/ventas", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:8080", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/ventas", nil)
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownRoute(t *testing.T) {
	router := InitRoutesTests(t, sales.NewLocalStorage(), api.RouterConfig{})
	w := get(router, "/sales")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success)
}
