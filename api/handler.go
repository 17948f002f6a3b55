package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"api_ventas/internal/sales"
)

// DefaultMaxBodyBytes caps webhook bodies.
const DefaultMaxBodyBytes = 1 << 20

// TimestampLayout is the UTC millisecond layout of health timestamps.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// salesHandler holds the sales service and implements HTTP handlers for sales operations.
type salesHandler struct {
	salesService *sales.Service
	logger       *zap.Logger
	maxBodyBytes int64
}

// NewSalesHandler creates a new sales handler.
func NewSalesHandler(salesService *sales.Service, logger *zap.Logger, maxBodyBytes int64) *salesHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &salesHandler{
		salesService: salesService,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
	}
}

func fail(ctx *gin.Context, status int, err error) {
	ctx.JSON(status, gin.H{"success": false, "error": err.Error()})
}

// handleReceiveSale handles the POST /webhook/venta endpoint.
func (h *salesHandler) handleReceiveSale(ctx *gin.Context) {
	logger := loggerFrom(ctx, h.logger)

	body, err := io.ReadAll(http.MaxBytesReader(ctx.Writer, ctx.Request.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("webhook body too large", zap.Int64("limit", tooLarge.Limit))
			fail(ctx, http.StatusRequestEntityTooLarge, errors.New("payload too large"))
			return
		}
		logger.Warn("failed to read webhook body", zap.Error(err))
		fail(ctx, http.StatusBadRequest, errors.New("could not read request body"))
		return
	}

	documentID, err := h.salesService.ReceiveSale(ctx.Request.Context(), body)
	if err != nil {
		// El servicio ya registró el detalle; aquí solo se traduce al sobre HTTP.
		if sales.IsValidation(err) {
			fail(ctx, http.StatusBadRequest, err)
			return
		}
		fail(ctx, http.StatusInternalServerError, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "documentId": documentID})
}

// handleListSales handles GET /api/ventas?limit=&offset=.
func (h *salesHandler) handleListSales(ctx *gin.Context) {
	q, err := sales.ParseListQuery(ctx.Query("limit"), ctx.Query("offset"), h.salesService.MaxLimit())
	if err != nil {
		loggerFrom(ctx, h.logger).Debug("invalid list query",
			zap.String("limit", ctx.Query("limit")),
			zap.String("offset", ctx.Query("offset")),
			zap.Error(err),
		)
		fail(ctx, http.StatusBadRequest, err)
		return
	}

	page, err := h.salesService.ListSales(ctx.Request.Context(), q)
	if err != nil {
		if sales.IsValidation(err) {
			fail(ctx, http.StatusBadRequest, err)
			return
		}
		fail(ctx, http.StatusInternalServerError, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"success": true, "ventas": page.Records, "total": page.Total})
}

func handleHealth(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(TimestampLayout),
	})
}
