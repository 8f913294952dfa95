package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pocketai/receipt-service/internal/domain"
	"github.com/pocketai/receipt-service/internal/imageutil"
	"github.com/pocketai/receipt-service/internal/model"
	"github.com/pocketai/receipt-service/internal/repository"
	"github.com/pocketai/receipt-service/internal/service"
)

// ReceiptHandler handles HTTP requests for receipt-related operations
type ReceiptHandler struct {
	receiptService service.ReceiptService
}

// NewReceiptHandler creates a new receipt handler
func NewReceiptHandler(receiptService service.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{
		receiptService: receiptService,
	}
}

// ScanReceipt handles the POST /receipts/scan endpoint
// @Summary Scan a receipt image
// @Description Upload a receipt image, extract its line items with OCR and categorize them with AI
// @Tags receipts
// @Accept multipart/form-data
// @Produce json
// @Param receiptImage formData file true "Receipt image file (JPEG or PNG)"
// @Success 201 {object} model.ReceiptResponse "Receipt stored"
// @Failure 400 {object} model.ErrorResponse "Bad request"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/receipts/scan [post]
func (h *ReceiptHandler) ScanReceipt(c *gin.Context) {
	file, header, err := getFormFile(c, "receiptImage")
	if err != nil {
		respondBadRequest(c, err.Error(), newErrorDetail("receiptImage", "Receipt image is required"))
		return
	}
	defer file.Close()

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		log.Printf("scan: failed to read uploaded file: %v", err)
		respondInternalServerError(c, ErrFileProcessing)
		return
	}

	contentType := header.Header.Get("Content-Type")

	receipt, err := h.receiptService.ScanReceipt(c.Request.Context(), fileBytes, contentType)
	if err != nil {
		log.Printf("scan: pipeline failed (file_size=%d): %v", len(fileBytes), err)

		switch {
		case errors.Is(err, imageutil.ErrUnsupportedImage):
			respondBadRequest(c, ErrUnsupportedImage, newErrorDetail("receiptImage", "Image must be a valid JPEG or PNG"))
		case errors.Is(err, imageutil.ErrImageTooSmall):
			respondBadRequest(c, ErrUnsupportedImage, newErrorDetail("receiptImage", "Image data is too small to be a receipt photo"))
		default:
			respondInternalServerError(c, ErrFileProcessing)
		}
		return
	}

	respondCreated(c, formatReceiptResponse(receipt))
}

// GetReceipts handles the GET /receipts endpoint
// @Summary List stored receipts
// @Description Get stored receipts, newest first, with optional filters
// @Tags receipts
// @Produce json
// @Param date query string false "Receipt date filter (YYYY-MM-DD)"
// @Param limit query int false "Maximum receipts to return" default(50)
// @Success 200 {object} model.ReceiptsListResponse "List of receipts"
// @Failure 400 {object} model.ErrorResponse "Invalid query parameters"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/receipts [get]
func (h *ReceiptHandler) GetReceipts(c *gin.Context) {
	filter, err := parseReceiptFilter(c)
	if err != nil {
		respondBadRequest(c, ErrInvalidQueryParams, newErrorDetail("query", err.Error()))
		return
	}

	receipts, err := h.receiptService.ListReceipts(c.Request.Context(), filter)
	if err != nil {
		respondInternalServerError(c, fmt.Sprintf("Failed to retrieve receipts: %v", err))
		return
	}

	respondOK(c, model.ReceiptsListResponse{
		Data:  formatReceiptsResponse(receipts),
		Count: len(receipts),
	})
}

// GetReceiptByID handles the GET /receipts/{receiptId} endpoint
// @Summary Get a receipt by ID
// @Description Retrieve a specific receipt by its ID
// @Tags receipts
// @Produce json
// @Param receiptId path string true "Receipt ID"
// @Success 200 {object} model.ReceiptResponse "Receipt details"
// @Failure 400 {object} model.ErrorResponse "Invalid receipt ID"
// @Failure 404 {object} model.ErrorResponse "Receipt not found"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/receipts/{receiptId} [get]
func (h *ReceiptHandler) GetReceiptByID(c *gin.Context) {
	receiptID, err := getPathParam(c, "receiptId")
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	receipt, err := h.receiptService.GetReceiptByID(c.Request.Context(), receiptID)
	if err != nil {
		if errors.Is(err, repository.ErrReceiptNotFound) {
			respondNotFound(c, fmt.Sprintf("Receipt not found: %s", receiptID))
		} else {
			respondInternalServerError(c, fmt.Sprintf("Failed to retrieve receipt: %v", err))
		}
		return
	}

	respondOK(c, formatReceiptResponse(receipt))
}

// GetSpendingByCategory handles the GET /insights/spending-by-category endpoint
// @Summary Get spending by category
// @Description Get the spend total for every configured category across all stored receipts
// @Tags insights
// @Produce json
// @Success 200 {object} model.SpendingByCategoryResponse "Spending per category"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/insights/spending-by-category [get]
func (h *ReceiptHandler) GetSpendingByCategory(c *gin.Context) {
	summary, rows, err := h.receiptService.SpendingByCategory(c.Request.Context())
	if err != nil {
		respondInternalServerError(c, fmt.Sprintf("Failed to retrieve category spending: %v", err))
		return
	}

	respondOK(c, formatSpendingByCategoryResponse(summary, rows))
}

// ExportSpendingByCategory handles the GET /insights/spending-by-category/export endpoint
// @Summary Export spending by category as CSV
// @Description Download the per-category spend totals as a CSV file
// @Tags insights
// @Produce text/csv
// @Success 200 {string} string "CSV data"
// @Failure 500 {object} model.ErrorResponse "Internal server error"
// @Router /v1/insights/spending-by-category/export [get]
func (h *ReceiptHandler) ExportSpendingByCategory(c *gin.Context) {
	// Buffer first so an aggregation failure can still produce a JSON error
	var buf bytes.Buffer
	if err := h.receiptService.WriteSpendCSV(c.Request.Context(), &buf); err != nil {
		respondInternalServerError(c, fmt.Sprintf("Failed to export category spending: %v", err))
		return
	}

	c.Header("Content-Disposition", `attachment; filename="spending_by_category.csv"`)
	c.Data(http.StatusOK, "text/csv", buf.Bytes())
}

// parseReceiptFilter extracts filtering parameters from the request
func parseReceiptFilter(c *gin.Context) (domain.ReceiptFilter, error) {
	filter := domain.ReceiptFilter{}

	date, err := parseDate(c.Query("date"))
	if err != nil {
		return filter, err
	}
	filter.Date = date

	limit, err := getQueryInt(c, "limit", 50)
	if err != nil {
		return filter, err
	}
	if limit < 1 {
		return filter, fmt.Errorf("invalid limit")
	}
	filter.Limit = limit

	return filter, nil
}

// formatReceiptResponse formats a receipt for response
func formatReceiptResponse(receipt *domain.Receipt) model.ReceiptResponse {
	return model.ReceiptResponse{
		ID:        receipt.ID,
		Merchant:  receipt.Merchant,
		Date:      receipt.Date,
		Total:     fmt.Sprintf("%.2f", receipt.Total),
		Items:     formatReceiptItemsResponse(receipt.Items),
		CreatedAt: receipt.CreatedAt.Format(time.RFC3339),
	}
}

// formatReceiptsResponse formats a slice of receipts for response
func formatReceiptsResponse(receipts []domain.Receipt) []model.ReceiptResponse {
	formatted := make([]model.ReceiptResponse, len(receipts))
	for i, receipt := range receipts {
		formatted[i] = formatReceiptResponse(&receipt)
	}
	return formatted
}

// formatReceiptItemsResponse formats receipt items for response
func formatReceiptItemsResponse(items []domain.ReceiptItem) []model.ReceiptItemResponse {
	formatted := make([]model.ReceiptItemResponse, len(items))
	for i, item := range items {
		formatted[i] = model.ReceiptItemResponse{
			Name:     item.Name,
			Price:    fmt.Sprintf("%.2f", item.Price),
			Category: item.Category,
		}
	}
	return formatted
}

// formatSpendingByCategoryResponse formats the category aggregate for response
func formatSpendingByCategoryResponse(summary *domain.SpendSummary, rows []domain.CategorySpend) model.SpendingByCategoryResponse {
	categories := make([]model.CategorySpendResponse, len(rows))
	for i, row := range rows {
		categories[i] = model.CategorySpendResponse{
			Category: row.Category,
			Total:    fmt.Sprintf("%.2f", row.Total),
		}
	}
	return model.SpendingByCategoryResponse{
		TotalReceipts: summary.TotalReceipts,
		Categories:    categories,
	}
}

// RegisterRoutes registers the API routes for the receipt handler
func (h *ReceiptHandler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/v1")

	receipts := api.Group("/receipts")
	{
		receipts.POST("/scan", h.ScanReceipt)
		receipts.GET("", h.GetReceipts)
		receipts.GET("/:receiptId", h.GetReceiptByID)
	}

	insights := api.Group("/insights")
	{
		insights.GET("/spending-by-category", h.GetSpendingByCategory)
		insights.GET("/spending-by-category/export", h.ExportSpendingByCategory)
	}
}
