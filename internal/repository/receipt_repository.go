package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/pocketai/receipt-service/internal/domain"
)

// RepositoryError represents an error that occurred within a repository
type RepositoryError struct {
	// Op is the operation that failed
	Op string

	// Err is the underlying error
	Err error
}

// Error returns a string representation of the error
func (e *RepositoryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Op
}

// Unwrap returns the underlying error
func (e *RepositoryError) Unwrap() error {
	return e.Err
}

var (
	// ErrReceiptNotFound indicates a lookup for an id with no stored receipt.
	ErrReceiptNotFound = errors.New("receipt not found")

	// ErrIDCollision indicates a generated id lost the race to a concurrent
	// save. Saves retry with a fresh id a bounded number of times before
	// surfacing this wrapped in a RepositoryError.
	ErrIDCollision = errors.New("receipt id already exists")
)

// maxIDRetries bounds how often a save regenerates a count-based id after
// losing a collision race before switching to a random id.
const maxIDRetries = 3

// ReceiptRepository defines the interface for receipt persistence and
// aggregation. Receipts are write-once in normal operation: Save assigns
// the id, and no update path exists beyond replace-by-id.
type ReceiptRepository interface {
	// NextID returns the id the next saved receipt would get:
	// "receipt_" + (current count + 1).
	NextID(ctx context.Context) (string, error)

	// Save persists the receipt. An empty id is assigned at this point;
	// a populated id is an insert-or-replace. Returns the stored receipt
	// with id and created timestamp set.
	Save(ctx context.Context, receipt *domain.Receipt) (*domain.Receipt, error)

	// GetReceiptByID retrieves one receipt with its items.
	GetReceiptByID(ctx context.Context, receiptID string) (*domain.Receipt, error)

	// ListReceipts retrieves receipts, newest first, honoring the filter.
	ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error)

	// Aggregate computes the receipt count and per-category spend over all
	// stored receipts. Every configured category is present in the result,
	// 0.0 when nothing matches.
	Aggregate(ctx context.Context) (*domain.SpendSummary, error)

	// SpendingForCategory sums item prices for one category. Unknown
	// categories yield 0.0, never an error.
	SpendingForCategory(ctx context.Context, category string) (float64, error)
}
