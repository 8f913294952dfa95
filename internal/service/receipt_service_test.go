package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketai/receipt-service/internal/categorizer"
	"github.com/pocketai/receipt-service/internal/domain"
	"github.com/pocketai/receipt-service/internal/imageutil"
	"github.com/pocketai/receipt-service/internal/repository"
)

// stubExtractor lets each test script the OCR stage.
type stubExtractor struct {
	analyze func(ctx context.Context, imageData []byte) (*domain.OCRResult, error)
}

func (s *stubExtractor) Analyze(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
	return s.analyze(ctx, imageData)
}

// stubArchiver records uploads and optionally fails.
type stubArchiver struct {
	mutex  sync.Mutex
	stored int
	err    error
}

func (s *stubArchiver) StoreImage(imageData []byte, contentType string) (string, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.stored++
	return "https://archive.local/receipt_test.png", nil
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7 % 256), G: uint8(y * 13 % 256), B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testPipeline(t *testing.T, extractor Extractor, archiver Archiver) (*ReceiptServiceImpl, *repository.MemoryReceiptRepository) {
	t.Helper()
	categories := domain.NewCategorySet(nil, "")
	repo := repository.NewMemoryReceiptRepository(categories)
	// Unconfigured categorizer: deterministic fallback path
	cat := categorizer.NewClient(&categorizer.Config{Categories: categories})
	return NewReceiptService(repo, extractor, cat, archiver, categories, 2), repo
}

func TestScanReceipt(t *testing.T) {
	ctx := context.Background()

	t.Run("FullPipelinePersistsCategorizedItems", func(t *testing.T) {
		extractor := &stubExtractor{
			analyze: func(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
				return &domain.OCRResult{
					Items: []domain.RawItem{
						{Name: "Milk", Price: 3.99},
						{Name: "Coffee", Price: 5.99},
					},
					TransactionDate: "2026-08-30",
				}, nil
			},
		}
		archiver := &stubArchiver{}
		svc, repo := testPipeline(t, extractor, archiver)

		receipt, err := svc.ScanReceipt(ctx, testImage(t), "image/png")
		require.NoError(t, err)

		assert.Equal(t, "receipt_1", receipt.ID)
		assert.Equal(t, "2026-08-30", receipt.Date)
		require.Len(t, receipt.Items, 2)
		assert.Equal(t, "Milk", receipt.Items[0].Name)
		assert.Equal(t, 1, archiver.stored)

		stored, err := repo.GetReceiptByID(ctx, receipt.ID)
		require.NoError(t, err)
		assert.Len(t, stored.Items, 2)
	})

	t.Run("MissingDateFallsBackToSentinel", func(t *testing.T) {
		extractor := &stubExtractor{
			analyze: func(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
				return &domain.OCRResult{Items: []domain.RawItem{{Name: "Milk", Price: 3.99}}}, nil
			},
		}
		svc, _ := testPipeline(t, extractor, nil)

		receipt, err := svc.ScanReceipt(ctx, testImage(t), "image/png")
		require.NoError(t, err)
		assert.Equal(t, domain.DateUnknown, receipt.Date)
	})

	t.Run("OCRFailureStillPersistsEmptyReceipt", func(t *testing.T) {
		extractor := &stubExtractor{
			analyze: func(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
				return nil, errors.New("service unavailable")
			},
		}
		svc, repo := testPipeline(t, extractor, nil)

		receipt, err := svc.ScanReceipt(ctx, testImage(t), "image/png")
		require.NoError(t, err)

		assert.NotEmpty(t, receipt.ID)
		assert.Empty(t, receipt.Items)
		assert.Equal(t, domain.DateUnknown, receipt.Date)

		summary, err := repo.Aggregate(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.TotalReceipts)
	})

	t.Run("InvalidImageRejectedBeforeOCR", func(t *testing.T) {
		extractorCalled := false
		extractor := &stubExtractor{
			analyze: func(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
				extractorCalled = true
				return &domain.OCRResult{}, nil
			},
		}
		svc, repo := testPipeline(t, extractor, nil)

		// Past the minimum-size floor, so rejection is about the format
		garbage := bytes.Repeat([]byte("not an image "), 20)
		_, err := svc.ScanReceipt(ctx, garbage, "text/plain")
		require.Error(t, err)
		assert.ErrorIs(t, err, imageutil.ErrUnsupportedImage)
		assert.False(t, extractorCalled)

		summary, err := repo.Aggregate(ctx)
		require.NoError(t, err)
		assert.Zero(t, summary.TotalReceipts)
	})

	t.Run("UndersizedImageRejectedBeforeOCR", func(t *testing.T) {
		extractorCalled := false
		extractor := &stubExtractor{
			analyze: func(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
				extractorCalled = true
				return &domain.OCRResult{}, nil
			},
		}
		svc, repo := testPipeline(t, extractor, nil)

		_, err := svc.ScanReceipt(ctx, []byte("tiny"), "image/png")
		require.Error(t, err)
		assert.ErrorIs(t, err, imageutil.ErrImageTooSmall)
		assert.False(t, extractorCalled)

		summary, err := repo.Aggregate(ctx)
		require.NoError(t, err)
		assert.Zero(t, summary.TotalReceipts)
	})

	t.Run("ArchiveFailureDoesNotBlockPipeline", func(t *testing.T) {
		extractor := &stubExtractor{
			analyze: func(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
				return &domain.OCRResult{Items: []domain.RawItem{{Name: "Milk", Price: 3.99}}}, nil
			},
		}
		archiver := &stubArchiver{err: errors.New("bucket unavailable")}
		svc, _ := testPipeline(t, extractor, archiver)

		receipt, err := svc.ScanReceipt(ctx, testImage(t), "image/png")
		require.NoError(t, err)
		assert.NotEmpty(t, receipt.ID)
	})

	t.Run("CancellationBeforeStoreLeavesNoState", func(t *testing.T) {
		cancellable, cancel := context.WithCancel(ctx)
		extractor := &stubExtractor{
			analyze: func(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
				// Request dies mid-OCR
				cancel()
				return nil, ctx.Err()
			},
		}
		svc, repo := testPipeline(t, extractor, nil)

		_, err := svc.ScanReceipt(cancellable, testImage(t), "image/png")
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)

		summary, err := repo.Aggregate(ctx)
		require.NoError(t, err)
		assert.Zero(t, summary.TotalReceipts)
	})

	t.Run("ConcurrentScansGetDistinctIDs", func(t *testing.T) {
		extractor := &stubExtractor{
			analyze: func(ctx context.Context, imageData []byte) (*domain.OCRResult, error) {
				return &domain.OCRResult{Items: []domain.RawItem{{Name: "Milk", Price: 3.99}}}, nil
			},
		}
		svc, _ := testPipeline(t, extractor, nil)

		imageData := testImage(t)
		const runs = 8
		ids := make(chan string, runs)
		var wg sync.WaitGroup
		for i := 0; i < runs; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				receipt, err := svc.ScanReceipt(ctx, imageData, "image/png")
				assert.NoError(t, err)
				if receipt != nil {
					ids <- receipt.ID
				}
			}()
		}
		wg.Wait()
		close(ids)

		seen := map[string]bool{}
		for id := range ids {
			assert.False(t, seen[id], "duplicate receipt id %s", id)
			seen[id] = true
		}
		assert.Len(t, seen, runs)
	})
}

func TestSpendingByCategory(t *testing.T) {
	ctx := context.Background()
	categories := domain.NewCategorySet(nil, "")
	repo := repository.NewMemoryReceiptRepository(categories)
	svc := NewReceiptService(repo, nil, nil, nil, categories, 1)

	receipt := domain.NewReceipt()
	receipt.AddItem(domain.ReceiptItem{Name: "Milk", Price: 3.99, Category: "Groceries"})
	receipt.AddItem(domain.ReceiptItem{Name: "Coffee", Price: 5.99, Category: "Beverage"})
	_, err := repo.Save(ctx, receipt)
	require.NoError(t, err)

	summary, rows, err := svc.SpendingByCategory(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TotalReceipts)

	// One row per configured category, in configured order, zero-filled
	require.Len(t, rows, len(categories.Names()))
	for i, name := range categories.Names() {
		assert.Equal(t, name, rows[i].Category)
	}
	byName := map[string]float64{}
	for _, row := range rows {
		byName[row.Category] = row.Total
	}
	assert.InDelta(t, 3.99, byName["Groceries"], 0.001)
	assert.InDelta(t, 5.99, byName["Beverage"], 0.001)
	assert.Zero(t, byName["Transport"])
}

func TestWriteSpendCSV(t *testing.T) {
	ctx := context.Background()
	categories := domain.NewCategorySet([]string{"Groceries", "Beverage"}, "Other")
	repo := repository.NewMemoryReceiptRepository(categories)
	svc := NewReceiptService(repo, nil, nil, nil, categories, 1)

	receipt := domain.NewReceipt()
	receipt.AddItem(domain.ReceiptItem{Name: "Milk", Price: 3.99, Category: "Groceries"})
	_, err := repo.Save(ctx, receipt)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.WriteSpendCSV(ctx, &buf))

	expected := "Category,Total Spent\n" +
		"Groceries,3.99\n" +
		"Beverage,0.00\n" +
		"Other,0.00\n"
	assert.Equal(t, expected, buf.String())
}

func TestGetReceiptByIDNotFound(t *testing.T) {
	categories := domain.NewCategorySet(nil, "")
	repo := repository.NewMemoryReceiptRepository(categories)
	svc := NewReceiptService(repo, nil, nil, nil, categories, 1)

	_, err := svc.GetReceiptByID(context.Background(), "receipt_404")
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrReceiptNotFound)
}
