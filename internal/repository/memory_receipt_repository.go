package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pocketai/receipt-service/internal/domain"
)

// MemoryReceiptRepository implements ReceiptRepository with in-process
// maps. It backs tests and storeless local runs; receipts do not survive a
// restart.
type MemoryReceiptRepository struct {
	mutex    sync.RWMutex
	receipts map[string]*domain.Receipt
	order    []string

	categories *domain.CategorySet
	now        func() time.Time
}

// NewMemoryReceiptRepository creates an empty in-memory receipt repository
func NewMemoryReceiptRepository(categories *domain.CategorySet) *MemoryReceiptRepository {
	return &MemoryReceiptRepository{
		receipts:   make(map[string]*domain.Receipt),
		categories: categories,
		now:        time.Now,
	}
}

// NextID computes the id the next saved receipt would get
func (r *MemoryReceiptRepository) NextID(ctx context.Context) (string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return fmt.Sprintf("receipt_%d", len(r.receipts)+1), nil
}

// Save persists a receipt. Unlike the Postgres store, id generation and the
// write share one lock, so generated ids cannot collide here.
func (r *MemoryReceiptRepository) Save(ctx context.Context, receipt *domain.Receipt) (*domain.Receipt, error) {
	select {
	case <-ctx.Done():
		return nil, &RepositoryError{
			Op:  "save_receipt",
			Err: ctx.Err(),
		}
	default:
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if receipt.Date == "" {
		receipt.Date = domain.DateUnknown
	}
	if receipt.ID == "" {
		receipt.ID = fmt.Sprintf("receipt_%d", len(r.receipts)+1)
	}
	receipt.CreatedAt = r.now()

	if _, exists := r.receipts[receipt.ID]; !exists {
		r.order = append(r.order, receipt.ID)
	}
	stored := copyReceipt(receipt)
	r.receipts[receipt.ID] = stored

	return copyReceipt(stored), nil
}

// GetReceiptByID retrieves a receipt by its ID
func (r *MemoryReceiptRepository) GetReceiptByID(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	receipt, ok := r.receipts[receiptID]
	if !ok {
		return nil, &RepositoryError{
			Op:  "get_receipt",
			Err: fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID),
		}
	}
	return copyReceipt(receipt), nil
}

// ListReceipts retrieves receipts, newest first
func (r *MemoryReceiptRepository) ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	receipts := []domain.Receipt{}
	for i := len(r.order) - 1; i >= 0 && len(receipts) < limit; i-- {
		receipt := r.receipts[r.order[i]]
		if filter.Date != "" && receipt.Date != filter.Date {
			continue
		}
		receipts = append(receipts, *copyReceipt(receipt))
	}
	return receipts, nil
}

// Aggregate computes the receipt count and per-category spend
func (r *MemoryReceiptRepository) Aggregate(ctx context.Context) (*domain.SpendSummary, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	summary := &domain.SpendSummary{
		TotalReceipts: len(r.receipts),
		PerCategory:   make(map[string]float64, len(r.categories.Names())),
	}
	for _, name := range r.categories.Names() {
		summary.PerCategory[name] = 0
	}

	for _, receipt := range r.receipts {
		for _, item := range receipt.Items {
			canonical, _ := r.categories.Normalize(item.Category)
			summary.PerCategory[canonical] += item.Price
		}
	}

	return summary, nil
}

// SpendingForCategory sums item prices for one category
func (r *MemoryReceiptRepository) SpendingForCategory(ctx context.Context, category string) (float64, error) {
	summary, err := r.Aggregate(ctx)
	if err != nil {
		return 0, err
	}
	canonical, ok := r.categories.Normalize(category)
	if !ok {
		return 0, nil
	}
	return summary.PerCategory[canonical], nil
}

// copyReceipt clones a receipt so callers cannot mutate stored state.
func copyReceipt(receipt *domain.Receipt) *domain.Receipt {
	clone := *receipt
	clone.Items = make([]domain.ReceiptItem, len(receipt.Items))
	copy(clone.Items, receipt.Items)
	return &clone
}
