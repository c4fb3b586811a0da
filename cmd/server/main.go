package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/comptaflow/document-extraction-service/api"
	"github.com/comptaflow/document-extraction-service/internal/db"
	"github.com/comptaflow/document-extraction-service/internal/models"
	"github.com/comptaflow/document-extraction-service/internal/process"
	"github.com/comptaflow/document-extraction-service/internal/storage"
)

func main() {
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connection pool
	if err := db.Init(); err != nil {
		log.Fatalf("Database not available: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.EnsureSchema(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to ensure schema: %v", err)
	}
	cancel()

	store, err := buildStore(config)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	log.Printf("Storage backend: %s", config.Storage.Backend)

	orch := process.New(process.NewRepository(), store, config.OCR)

	handler := api.NewHandler(config, orch, store)
	router := handler.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	log.Printf("Starting Document Extraction Service v%s on %s", api.Version, addr)
	log.Printf("OCR languages: %s", config.OCR.Languages)
	log.Printf("Endpoints:")
	log.Printf("  POST   http://%s/api/documents/upload               - Upload a document (requires JWT)", addr)
	log.Printf("  GET    http://%s/api/documents                      - List documents (requires JWT)", addr)
	log.Printf("  GET    http://%s/api/documents/{id}                 - Get a document (requires JWT)", addr)
	log.Printf("  GET    http://%s/api/documents/{id}/status          - Poll processing status (requires JWT)", addr)
	log.Printf("  GET    http://%s/api/documents/{id}/download        - Download the original (requires JWT)", addr)
	log.Printf("  POST   http://%s/api/documents/{id}/reprocess       - Re-run extraction (requires JWT)", addr)
	log.Printf("  GET    http://%s/api/documents/{id}/accounting-data - Accounting projection (requires JWT)", addr)
	log.Printf("  DELETE http://%s/api/documents/{id}                 - Delete a document (requires JWT)", addr)
	log.Printf("  GET    http://%s/api/documents/supported-types      - Format catalog (requires JWT)", addr)
	log.Printf("  GET    http://%s/api/documents/stats                - Document stats (requires JWT)", addr)
	log.Printf("  GET    http://%s/health                             - Health check", addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("Server failed: %v", err)
	case sig := <-stop:
		log.Printf("Received %v, shutting down", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	// Let in-flight extractions finish before the pool closes
	orch.Wait()
	log.Println("Shutdown complete")
}

func buildStore(config *models.Config) (storage.Store, error) {
	switch config.Storage.Backend {
	case "minio":
		return storage.NewMinioStore()
	default:
		dir := config.Upload.Dir
		if dir == "" {
			dir = "uploads"
		}
		return storage.NewLocalStore(dir)
	}
}

func loadConfig(path string) (*models.Config, error) {
	config := &models.Config{
		Port: 8080,
		Host: "0.0.0.0",
	}

	// The config file is optional; environment variables and defaults
	// cover a bare deployment.
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if dir := os.Getenv("UPLOAD_DIR"); dir != "" {
		config.Upload.Dir = dir
	}
	if backend := os.Getenv("STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if bin := os.Getenv("TESSERACT_BIN"); bin != "" {
		config.OCR.TesseractBin = bin
	}
	if bin := os.Getenv("PDFTOTEXT_BIN"); bin != "" {
		config.OCR.PdftotextBin = bin
	}
	if langs := os.Getenv("OCR_LANGUAGES"); langs != "" {
		config.OCR.Languages = langs
	}

	return config, nil
}
