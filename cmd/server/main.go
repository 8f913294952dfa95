package main

import (
	"context"
	"fmt"
	"log"

	_ "github.com/pocketai/receipt-service/docs" // swagger spec
	"github.com/pocketai/receipt-service/internal/categorizer"
	"github.com/pocketai/receipt-service/internal/config"
	"github.com/pocketai/receipt-service/internal/database"
	"github.com/pocketai/receipt-service/internal/domain"
	"github.com/pocketai/receipt-service/internal/handler"
	"github.com/pocketai/receipt-service/internal/ocr"
	"github.com/pocketai/receipt-service/internal/repository"
	"github.com/pocketai/receipt-service/internal/server"
	"github.com/pocketai/receipt-service/internal/service"
	"github.com/pocketai/receipt-service/internal/storage"
)

func main() {
	// Load configuration
	log.Println("Loading configuration...")
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	categories := domain.NewCategorySet(cfg.Categories, cfg.FallbackCategory)

	// Initialize OCR client for receipt extraction
	ocrClient := ocr.NewClient(&ocr.Config{
		Endpoint:     cfg.OCREndpoint,
		APIKey:       cfg.OCRKey,
		APIVersion:   cfg.OCRAPIVersion,
		Timeout:      cfg.OCRTimeout,
		PollInterval: cfg.OCRPollInterval,
	})

	// Initialize categorizer client
	categorizerClient := categorizer.NewClient(&categorizer.Config{
		Endpoint:   cfg.OpenAIEndpoint,
		APIKey:     cfg.OpenAIKey,
		Deployment: cfg.OpenAIDeployment,
		Timeout:    cfg.OpenAITimeout,
		Categories: categories,
	})

	// Initialize repository
	log.Println("Initializing repository...")
	var repo repository.ReceiptRepository
	if cfg.PostgresURL != "" {
		db, err := database.NewPostgresDB(context.Background(), cfg.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		pgRepo := repository.NewPostgresReceiptRepository(db.GetPool(), categories)
		if err := pgRepo.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Failed to prepare database schema: %v", err)
		}
		repo = pgRepo
	} else {
		log.Println("Running with in-memory repository; receipts will not survive a restart")
		repo = repository.NewMemoryReceiptRepository(categories)
	}

	// Initialize optional image archive
	var archiver service.Archiver
	if cfg.ArchiveEndpoint != "" {
		archive, err := storage.NewImageArchive(&storage.Config{
			Endpoint:        cfg.ArchiveEndpoint,
			AccessKeyID:     cfg.ArchiveAccessKeyID,
			AccessKeySecret: cfg.ArchiveAccessKeySecret,
			Bucket:          cfg.ArchiveBucket,
			Region:          cfg.ArchiveRegion,
		})
		if err != nil {
			log.Printf("Image archive disabled: %v", err)
		} else {
			archiver = archive
		}
	}

	// Create the receipt pipeline service
	log.Println("Creating receipt pipeline service...")
	receiptService := service.NewReceiptService(repo, ocrClient, categorizerClient, archiver, categories, cfg.MaxWorkers)

	// Create handler
	receiptHandler := handler.NewReceiptHandler(receiptService)

	// Create and configure server
	log.Println("Configuring server...")
	appServer := server.NewServer(cfg, receiptHandler)

	// Start server (blocking call)
	log.Printf("Starting server on port %d...", cfg.Port)
	if err := appServer.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	fmt.Println("Server shutdown complete")
}
