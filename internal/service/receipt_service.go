package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/pocketai/receipt-service/internal/domain"
	"github.com/pocketai/receipt-service/internal/imageutil"
	"github.com/pocketai/receipt-service/internal/repository"
)

// ReceiptServiceError represents an error in the receipt service
type ReceiptServiceError struct {
	Op  string
	Err error
}

func (e *ReceiptServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

// Unwrap returns the underlying error
func (e *ReceiptServiceError) Unwrap() error {
	return e.Err
}

// Extractor runs receipt OCR over image bytes.
type Extractor interface {
	Analyze(ctx context.Context, imageData []byte) (*domain.OCRResult, error)
}

// Categorizer assigns categories to an OCR result. It never fails; at
// worst it returns the raw items with the fallback category.
type Categorizer interface {
	Categorize(ctx context.Context, ocrResult *domain.OCRResult) *domain.Receipt
}

// Archiver stores the original upload for later reference.
type Archiver interface {
	StoreImage(imageData []byte, contentType string) (string, error)
}

// ReceiptService defines the interface for the receipt pipeline and the
// aggregates derived from it
type ReceiptService interface {
	ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*domain.Receipt, error)
	GetReceiptByID(ctx context.Context, receiptID string) (*domain.Receipt, error)
	ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error)
	Aggregate(ctx context.Context) (*domain.SpendSummary, error)
	SpendingByCategory(ctx context.Context) (*domain.SpendSummary, []domain.CategorySpend, error)
	WriteSpendCSV(ctx context.Context, w io.Writer) error
}

// ReceiptServiceImpl implements the ReceiptService interface
type ReceiptServiceImpl struct {
	repository  repository.ReceiptRepository
	extractor   Extractor
	categorizer Categorizer
	archiver    Archiver
	categories  *domain.CategorySet
	workerPool  chan struct{}
}

// NewReceiptService creates a new ReceiptService. archiver may be nil when
// no archive storage is configured.
func NewReceiptService(repo repository.ReceiptRepository, extractor Extractor, categorizer Categorizer, archiver Archiver, categories *domain.CategorySet, maxWorkers int) *ReceiptServiceImpl {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &ReceiptServiceImpl{
		repository:  repo,
		extractor:   extractor,
		categorizer: categorizer,
		archiver:    archiver,
		categories:  categories,
		workerPool:  make(chan struct{}, maxWorkers),
	}
}

// ScanReceipt runs the full pipeline for one uploaded image: validate,
// OCR, categorize, persist. OCR and categorization failures degrade to
// best-effort results so the line items always reach the store; input and
// store failures are returned to the caller. Nothing is written before
// both OCR and categorization have completed, so cancelling mid-flight
// leaves no partial state.
func (s *ReceiptServiceImpl) ScanReceipt(ctx context.Context, imageData []byte, contentType string) (*domain.Receipt, error) {
	// Acquire worker from pool
	select {
	case s.workerPool <- struct{}{}:
		defer func() {
			<-s.workerPool
		}()
	case <-ctx.Done():
		return nil, &ReceiptServiceError{
			Op:  "acquire_worker",
			Err: ctx.Err(),
		}
	}

	if err := imageutil.Validate(imageData); err != nil {
		return nil, &ReceiptServiceError{
			Op:  "validate_image",
			Err: err,
		}
	}

	resized, err := imageutil.Resize(imageData, nil)
	if err != nil {
		// The image decoded during validation, so this is unexpected;
		// send the original to OCR rather than failing the run.
		log.Printf("scan: resize failed, using original image: %v", err)
		resized = imageData
	}

	if s.archiver != nil {
		if _, err := s.archiver.StoreImage(imageData, contentType); err != nil {
			log.Printf("scan: failed to archive image: %v", err)
		}
	}

	ocrResult, err := s.extractor.Analyze(ctx, resized)
	if err != nil {
		// OCR is best-effort: degrade to an empty item list so the run
		// still produces a (possibly empty) receipt.
		log.Printf("scan: ocr failed, continuing with empty result: %v", err)
		ocrResult = &domain.OCRResult{Items: []domain.RawItem{}}
	}

	receipt := s.categorizer.Categorize(ctx, ocrResult)
	receipt.Date = transactionDate(ocrResult)

	select {
	case <-ctx.Done():
		return nil, &ReceiptServiceError{
			Op:  "store_receipt",
			Err: ctx.Err(),
		}
	default:
	}

	stored, err := s.repository.Save(ctx, receipt)
	if err != nil {
		return nil, &ReceiptServiceError{
			Op:  "store_receipt",
			Err: err,
		}
	}

	return stored, nil
}

// transactionDate resolves the receipt date from the OCR result, falling
// back to the Unknown sentinel when absent or unparseable.
func transactionDate(ocrResult *domain.OCRResult) string {
	if ocrResult.TransactionDate == "" {
		return domain.DateUnknown
	}
	parsed, err := time.Parse("2006-01-02", ocrResult.TransactionDate)
	if err != nil {
		return domain.DateUnknown
	}
	return parsed.Format("2006-01-02")
}

// GetReceiptByID retrieves a receipt by ID
func (s *ReceiptServiceImpl) GetReceiptByID(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	receipt, err := s.repository.GetReceiptByID(ctx, receiptID)
	if err != nil {
		return nil, &ReceiptServiceError{
			Op:  "get_receipt",
			Err: err,
		}
	}
	return receipt, nil
}

// ListReceipts retrieves stored receipts
func (s *ReceiptServiceImpl) ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error) {
	receipts, err := s.repository.ListReceipts(ctx, filter)
	if err != nil {
		return nil, &ReceiptServiceError{
			Op:  "list_receipts",
			Err: err,
		}
	}
	return receipts, nil
}

// Aggregate computes spending statistics across all stored receipts
func (s *ReceiptServiceImpl) Aggregate(ctx context.Context) (*domain.SpendSummary, error) {
	summary, err := s.repository.Aggregate(ctx)
	if err != nil {
		return nil, &ReceiptServiceError{
			Op:  "aggregate",
			Err: err,
		}
	}
	return summary, nil
}

// SpendingByCategory returns the aggregate summary together with ordered
// per-category rows, one row per configured category.
func (s *ReceiptServiceImpl) SpendingByCategory(ctx context.Context) (*domain.SpendSummary, []domain.CategorySpend, error) {
	summary, err := s.Aggregate(ctx)
	if err != nil {
		return nil, nil, err
	}

	rows := make([]domain.CategorySpend, 0, len(s.categories.Names()))
	for _, name := range s.categories.Names() {
		rows = append(rows, domain.CategorySpend{
			Category: name,
			Total:    summary.PerCategory[name],
		})
	}
	return summary, rows, nil
}

// WriteSpendCSV writes the per-category spend totals to w as CSV, one row
// per configured category in configured order.
func (s *ReceiptServiceImpl) WriteSpendCSV(ctx context.Context, w io.Writer) error {
	_, rows, err := s.SpendingByCategory(ctx)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Category", "Total Spent"}); err != nil {
		return &ReceiptServiceError{Op: "export_csv", Err: err}
	}
	for _, row := range rows {
		record := []string{row.Category, fmt.Sprintf("%.2f", row.Total)}
		if err := writer.Write(record); err != nil {
			return &ReceiptServiceError{Op: "export_csv", Err: err}
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return &ReceiptServiceError{Op: "export_csv", Err: err}
	}
	return nil
}
