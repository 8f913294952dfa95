package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pocketai/receipt-service/internal/domain"
)

// PostgresReceiptRepository implements ReceiptRepository using PostgreSQL
type PostgresReceiptRepository struct {
	db         *pgxpool.Pool
	categories *domain.CategorySet
}

// NewPostgresReceiptRepository creates a new PostgreSQL receipt repository
func NewPostgresReceiptRepository(db *pgxpool.Pool, categories *domain.CategorySet) *PostgresReceiptRepository {
	return &PostgresReceiptRepository{
		db:         db,
		categories: categories,
	}
}

// EnsureSchema creates the receipts tables if they do not exist yet.
func (r *PostgresReceiptRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS receipts (
			id         TEXT PRIMARY KEY,
			merchant   TEXT NOT NULL DEFAULT '',
			total      DOUBLE PRECISION NOT NULL DEFAULT 0,
			date       TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS receipt_items (
			receipt_id TEXT NOT NULL REFERENCES receipts(id) ON DELETE CASCADE,
			position   INT NOT NULL,
			name       TEXT NOT NULL,
			price      DOUBLE PRECISION NOT NULL DEFAULT 0,
			category   TEXT NOT NULL,
			PRIMARY KEY (receipt_id, position)
		);
	`)
	if err != nil {
		return &RepositoryError{
			Op:  "ensure_schema",
			Err: err,
		}
	}
	return nil
}

// NextID computes the id the next saved receipt would get
func (r *PostgresReceiptRepository) NextID(ctx context.Context) (string, error) {
	var count int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM receipts`).Scan(&count); err != nil {
		return "", &RepositoryError{
			Op:  "next_id",
			Err: fmt.Errorf("failed to count receipts: %w", err),
		}
	}
	return fmt.Sprintf("receipt_%d", count+1), nil
}

// Save persists a receipt. An empty id is generated here; the count-based
// scheme is racy under concurrency, so collisions are retried with a fresh
// count and finally a random id before giving up.
func (r *PostgresReceiptRepository) Save(ctx context.Context, receipt *domain.Receipt) (*domain.Receipt, error) {
	if receipt.Date == "" {
		receipt.Date = domain.DateUnknown
	}

	if receipt.ID != "" {
		if err := r.upsert(ctx, receipt); err != nil {
			return nil, err
		}
		return receipt, nil
	}

	var lastErr error
	for attempt := 0; attempt <= maxIDRetries; attempt++ {
		id, err := r.NextID(ctx)
		if err != nil {
			return nil, err
		}
		if attempt == maxIDRetries {
			// Count-based ids keep colliding; fall back to a random one.
			id = "receipt_" + uuid.NewString()
		}

		receipt.ID = id
		err = r.insert(ctx, receipt)
		if err == nil {
			return receipt, nil
		}
		receipt.ID = ""

		if !isUniqueViolation(err) {
			return nil, &RepositoryError{
				Op:  "save_receipt",
				Err: err,
			}
		}
		lastErr = fmt.Errorf("%w: %s", ErrIDCollision, id)
	}

	return nil, &RepositoryError{
		Op:  "save_receipt",
		Err: lastErr,
	}
}

// insert writes a new receipt and its items in one transaction.
func (r *PostgresReceiptRepository) insert(ctx context.Context, receipt *domain.Receipt) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // Rollback if not committed

	err = tx.QueryRow(ctx, `
		INSERT INTO receipts (id, merchant, total, date)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, receipt.ID, receipt.Merchant, receipt.Total, receipt.Date).Scan(&receipt.CreatedAt)
	if err != nil {
		return err
	}

	if err := r.insertItems(ctx, tx, receipt); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// upsert replaces the receipt stored under an explicit id. Items are
// replaced wholesale, never merged.
func (r *PostgresReceiptRepository) upsert(ctx context.Context, receipt *domain.Receipt) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return &RepositoryError{
			Op:  "save_receipt",
			Err: fmt.Errorf("failed to begin transaction: %w", err),
		}
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO receipts (id, merchant, total, date)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET merchant = EXCLUDED.merchant, total = EXCLUDED.total, date = EXCLUDED.date
		RETURNING created_at
	`, receipt.ID, receipt.Merchant, receipt.Total, receipt.Date).Scan(&receipt.CreatedAt)
	if err != nil {
		return &RepositoryError{
			Op:  "save_receipt",
			Err: fmt.Errorf("failed to upsert receipt: %w", err),
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM receipt_items WHERE receipt_id = $1`, receipt.ID); err != nil {
		return &RepositoryError{
			Op:  "save_receipt",
			Err: fmt.Errorf("failed to delete receipt items: %w", err),
		}
	}

	if err := r.insertItems(ctx, tx, receipt); err != nil {
		return &RepositoryError{
			Op:  "save_receipt",
			Err: err,
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return &RepositoryError{
			Op:  "save_receipt",
			Err: fmt.Errorf("failed to commit transaction: %w", err),
		}
	}

	return nil
}

func (r *PostgresReceiptRepository) insertItems(ctx context.Context, tx pgx.Tx, receipt *domain.Receipt) error {
	for i, item := range receipt.Items {
		_, err := tx.Exec(ctx, `
			INSERT INTO receipt_items (receipt_id, position, name, price, category)
			VALUES ($1, $2, $3, $4, $5)
		`, receipt.ID, i, item.Name, item.Price, item.Category)
		if err != nil {
			return fmt.Errorf("failed to insert receipt item: %w", err)
		}
	}
	return nil
}

// GetReceiptByID retrieves a receipt by its ID
func (r *PostgresReceiptRepository) GetReceiptByID(ctx context.Context, receiptID string) (*domain.Receipt, error) {
	var receipt domain.Receipt
	err := r.db.QueryRow(ctx, `
		SELECT id, merchant, total, date, created_at
		FROM receipts
		WHERE id = $1
	`, receiptID).Scan(
		&receipt.ID, &receipt.Merchant, &receipt.Total, &receipt.Date, &receipt.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &RepositoryError{
				Op:  "get_receipt",
				Err: fmt.Errorf("%w: %s", ErrReceiptNotFound, receiptID),
			}
		}
		return nil, &RepositoryError{
			Op:  "get_receipt",
			Err: fmt.Errorf("failed to get receipt: %w", err),
		}
	}

	rows, err := r.db.Query(ctx, `
		SELECT name, price, category
		FROM receipt_items
		WHERE receipt_id = $1
		ORDER BY position
	`, receiptID)
	if err != nil {
		return nil, &RepositoryError{
			Op:  "get_receipt",
			Err: fmt.Errorf("failed to query receipt items: %w", err),
		}
	}
	defer rows.Close()

	receipt.Items = []domain.ReceiptItem{}
	for rows.Next() {
		var item domain.ReceiptItem
		if err := rows.Scan(&item.Name, &item.Price, &item.Category); err != nil {
			return nil, &RepositoryError{
				Op:  "get_receipt",
				Err: fmt.Errorf("failed to scan receipt item: %w", err),
			}
		}
		receipt.Items = append(receipt.Items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, &RepositoryError{
			Op:  "get_receipt",
			Err: fmt.Errorf("error iterating receipt items: %w", err),
		}
	}

	return &receipt, nil
}

// ListReceipts retrieves receipts, newest first
func (r *PostgresReceiptRepository) ListReceipts(ctx context.Context, filter domain.ReceiptFilter) ([]domain.Receipt, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	query := `
		SELECT id, merchant, total, date, created_at
		FROM receipts
	`
	args := []interface{}{}
	if filter.Date != "" {
		query += ` WHERE date = $1`
		args = append(args, filter.Date)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, &RepositoryError{
			Op:  "list_receipts",
			Err: fmt.Errorf("failed to query receipts: %w", err),
		}
	}
	defer rows.Close()

	receipts := []domain.Receipt{}
	receiptIndex := map[string]int{}
	var receiptIDs []string

	for rows.Next() {
		var receipt domain.Receipt
		if err := rows.Scan(&receipt.ID, &receipt.Merchant, &receipt.Total, &receipt.Date, &receipt.CreatedAt); err != nil {
			return nil, &RepositoryError{
				Op:  "list_receipts",
				Err: fmt.Errorf("failed to scan receipt: %w", err),
			}
		}
		receipt.Items = []domain.ReceiptItem{}
		receiptIndex[receipt.ID] = len(receipts)
		receiptIDs = append(receiptIDs, receipt.ID)
		receipts = append(receipts, receipt)
	}

	if err := rows.Err(); err != nil {
		return nil, &RepositoryError{
			Op:  "list_receipts",
			Err: fmt.Errorf("error iterating receipts: %w", err),
		}
	}

	if len(receiptIDs) == 0 {
		return receipts, nil
	}

	// Fetch items for all listed receipts in one query
	itemRows, err := r.db.Query(ctx, `
		SELECT receipt_id, name, price, category
		FROM receipt_items
		WHERE receipt_id = ANY($1)
		ORDER BY receipt_id, position
	`, receiptIDs)
	if err != nil {
		return nil, &RepositoryError{
			Op:  "list_receipts",
			Err: fmt.Errorf("failed to query receipt items: %w", err),
		}
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var receiptID string
		var item domain.ReceiptItem
		if err := itemRows.Scan(&receiptID, &item.Name, &item.Price, &item.Category); err != nil {
			return nil, &RepositoryError{
				Op:  "list_receipts",
				Err: fmt.Errorf("failed to scan receipt item: %w", err),
			}
		}
		if i, ok := receiptIndex[receiptID]; ok {
			receipts[i].Items = append(receipts[i].Items, item)
		}
	}

	if err := itemRows.Err(); err != nil {
		return nil, &RepositoryError{
			Op:  "list_receipts",
			Err: fmt.Errorf("error iterating receipt items: %w", err),
		}
	}

	return receipts, nil
}

// Aggregate computes the receipt count and per-category spend
func (r *PostgresReceiptRepository) Aggregate(ctx context.Context) (*domain.SpendSummary, error) {
	summary := &domain.SpendSummary{
		PerCategory: make(map[string]float64, len(r.categories.Names())),
	}
	for _, name := range r.categories.Names() {
		summary.PerCategory[name] = 0
	}

	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM receipts`).Scan(&summary.TotalReceipts); err != nil {
		return nil, &RepositoryError{
			Op:  "aggregate",
			Err: fmt.Errorf("failed to count receipts: %w", err),
		}
	}

	rows, err := r.db.Query(ctx, `
		SELECT category, COALESCE(SUM(price), 0)
		FROM receipt_items
		GROUP BY category
	`)
	if err != nil {
		return nil, &RepositoryError{
			Op:  "aggregate",
			Err: fmt.Errorf("failed to sum categories: %w", err),
		}
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var total float64
		if err := rows.Scan(&category, &total); err != nil {
			return nil, &RepositoryError{
				Op:  "aggregate",
				Err: fmt.Errorf("failed to scan category sum: %w", err),
			}
		}
		// Stored casing variants collapse onto the canonical name; anything
		// outside the configured set counts toward the fallback category.
		canonical, _ := r.categories.Normalize(category)
		summary.PerCategory[canonical] += total
	}

	if err := rows.Err(); err != nil {
		return nil, &RepositoryError{
			Op:  "aggregate",
			Err: fmt.Errorf("error iterating category sums: %w", err),
		}
	}

	return summary, nil
}

// SpendingForCategory sums item prices for one category
func (r *PostgresReceiptRepository) SpendingForCategory(ctx context.Context, category string) (float64, error) {
	var total float64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(price), 0)
		FROM receipt_items
		WHERE LOWER(category) = LOWER($1)
	`, category).Scan(&total)
	if err != nil {
		return 0, &RepositoryError{
			Op:  "spending_for_category",
			Err: fmt.Errorf("failed to sum category: %w", err),
		}
	}
	return total, nil
}

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
