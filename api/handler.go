package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/comptaflow/document-extraction-service/internal/auth"
	"github.com/comptaflow/document-extraction-service/internal/db"
	"github.com/comptaflow/document-extraction-service/internal/format"
	"github.com/comptaflow/document-extraction-service/internal/models"
	"github.com/comptaflow/document-extraction-service/internal/process"
	"github.com/comptaflow/document-extraction-service/internal/storage"
)

const Version = "1.0.0"

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Handler handles HTTP requests for document processing
type Handler struct {
	config *models.Config
	orch   *process.Orchestrator
	store  storage.Store
}

// NewHandler creates a new API handler
func NewHandler(config *models.Config, orch *process.Orchestrator, store storage.Store) *Handler {
	return &Handler{
		config: config,
		orch:   orch,
		store:  store,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Health check (unauthenticated, for probes)
	router.HandleFunc("/health", h.Health).Methods("GET")

	docs := router.PathPrefix("/api/documents").Subrouter()
	docs.Use(auth.Middleware)

	// Fixed paths before the {id} routes
	docs.HandleFunc("/upload", h.UploadDocument).Methods("POST")
	docs.HandleFunc("/supported-types", h.SupportedTypes).Methods("GET")
	docs.HandleFunc("/stats", h.GetStats).Methods("GET")
	docs.HandleFunc("", h.ListDocuments).Methods("GET")

	docs.HandleFunc("/{id}", h.GetDocument).Methods("GET")
	docs.HandleFunc("/{id}", h.DeleteDocument).Methods("DELETE")
	docs.HandleFunc("/{id}/status", h.GetDocumentStatus).Methods("GET")
	docs.HandleFunc("/{id}/download", h.DownloadDocument).Methods("GET")
	docs.HandleFunc("/{id}/reprocess", h.ReprocessDocument).Methods("POST")
	docs.HandleFunc("/{id}/accounting-data", h.GetAccountingData).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status      string        `json:"status"`
	Version     string        `json:"version"`
	Timestamp   string        `json:"timestamp"`
	Uptime      string        `json:"uptime"`
	Memory      MemoryStats   `json:"memory"`
	Tesseract   ServiceStatus `json:"tesseract"`
	ImageMagick ServiceStatus `json:"imageMagick"`
	Pdftotext   ServiceStatus `json:"pdftotext"`
	Database    ServiceStatus `json:"database"`
	Storage     ServiceStatus `json:"storage"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	tesseractStatus := h.checkTesseract()
	imageMagickStatus := h.checkImageMagick()
	pdftotextStatus := h.checkPdftotext()
	databaseStatus := h.checkDatabase()
	storageStatus := h.checkStorage()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Tesseract:   tesseractStatus,
		ImageMagick: imageMagickStatus,
		Pdftotext:   pdftotextStatus,
		Database:    databaseStatus,
		Storage:     storageStatus,
	}

	// Degraded when OCR dependencies are down; text families still work
	if !tesseractStatus.Available || !imageMagickStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

func versionProbe(name string, args ...string) ServiceStatus {
	cmd := exec.Command(name, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return ServiceStatus{
			Available: false,
			Error:     name + " not found or not executable",
		}
	}

	version := "unknown"
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 && strings.TrimSpace(lines[0]) != "" {
		version = strings.TrimSpace(lines[0])
	}
	return ServiceStatus{Available: true, Version: version}
}

// checkTesseract verifies Tesseract OCR is available
func (h *Handler) checkTesseract() ServiceStatus {
	bin := h.config.OCR.TesseractBin
	if bin == "" {
		bin = "tesseract"
	}
	return versionProbe(bin, "--version")
}

// checkImageMagick verifies ImageMagick is available
func (h *Handler) checkImageMagick() ServiceStatus {
	if status := versionProbe("magick", "-version"); status.Available {
		return status
	}
	return versionProbe("convert", "-version")
}

// checkPdftotext verifies the PDF fallback extractor is available
func (h *Handler) checkPdftotext() ServiceStatus {
	bin := h.config.OCR.PdftotextBin
	if bin == "" {
		bin = "pdftotext"
	}
	// pdftotext prints its version on stderr and exits 0 with -v
	return versionProbe(bin, "-v")
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}
	return ServiceStatus{Available: true, Version: "PostgreSQL"}
}

// checkStorage verifies the uploaded-file backend
func (h *Handler) checkStorage() ServiceStatus {
	if h.store == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage not initialized",
		}
	}
	backend := h.config.Storage.Backend
	if backend == "" {
		backend = "local"
	}
	return ServiceStatus{Available: true, Version: backend}
}

// UploadDocument accepts a multipart upload, validates its format and
// queues it for extraction
func (h *Handler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, format.MaxFileSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.sendError(w, http.StatusBadRequest, "file too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		file, header, err = r.FormFile("document")
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "no file provided (use 'file' or 'document' field)")
			return
		}
	}
	defer file.Close()

	doc, err := h.orch.Submit(ctx, claims.UserID, header.Filename, file, header.Size)
	if err != nil {
		switch {
		case errors.Is(err, process.ErrUnsupportedFormat):
			h.sendError(w, http.StatusUnsupportedMediaType, "unsupported file format")
		case errors.Is(err, process.ErrTooLarge):
			h.sendError(w, http.StatusRequestEntityTooLarge, "file exceeds maximum size")
		default:
			h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("upload failed: %v", err))
		}
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"document": doc,
	})
}

// ListDocuments returns one page of the user's documents
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := queryInt(r, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	docs, total, err := db.ListDocuments(ctx, claims.UserID,
		r.URL.Query().Get("type"), r.URL.Query().Get("status"), limit, offset)
	if err != nil {
		h.handleDBError(w, err, "failed to list documents")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"documents": docs,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// GetDocument returns a single document with its extraction results
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := db.GetDocument(ctx, claims.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.handleDBError(w, err, "failed to get document")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"document": doc,
	})
}

// GetDocumentStatus is the light polling endpoint
func (h *Handler) GetDocumentStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.orch.GetStatus(ctx, claims.UserID, mux.Vars(r)["id"])
	if err != nil {
		h.handleDBError(w, err, "failed to get status")
		return
	}

	json.NewEncoder(w).Encode(status)
}

// DownloadDocument streams the stored original file
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rc, doc, err := h.orch.Download(ctx, claims.UserID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, process.ErrSourceMissing) {
			h.sendError(w, http.StatusGone, "stored file no longer exists")
			return
		}
		h.handleDBError(w, err, "failed to download document")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	if doc.FileSize > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	}
	io.Copy(w, rc)
}

// DeleteDocument soft-deletes a document and removes its stored file
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.orch.Delete(ctx, claims.UserID, mux.Vars(r)["id"]); err != nil {
		h.handleDBError(w, err, "failed to delete document")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "document deleted",
	})
}

// ReprocessDocument re-runs the full pipeline on the stored file
func (h *Handler) ReprocessDocument(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	doc, err := h.orch.Reprocess(ctx, claims.UserID, mux.Vars(r)["id"])
	if err != nil {
		switch {
		case errors.Is(err, process.ErrSourceMissing):
			h.sendError(w, http.StatusGone, "stored file no longer exists")
		case errors.Is(err, process.ErrConflict):
			h.sendError(w, http.StatusConflict, "document is currently processing")
		default:
			h.handleDBError(w, err, "failed to reprocess document")
		}
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"document": doc,
	})
}

// GetAccountingData projects extraction results for accounting import
func (h *Handler) GetAccountingData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.orch.ExtractAccountingView(ctx, claims.UserID, mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, process.ErrNotProcessed) {
			h.sendError(w, http.StatusConflict, "document has no extraction results yet")
			return
		}
		h.handleDBError(w, err, "failed to build accounting view")
		return
	}

	json.NewEncoder(w).Encode(view)
}

// SupportedTypes returns the format catalog and the size cap
func (h *Handler) SupportedTypes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]interface{}{
		"formats":       format.SupportedFormats(),
		"max_file_size": int64(format.MaxFileSize),
	})
}

// GetStats returns per-family and per-status document counts
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx := r.Context()
	claims, err := auth.GetClaimsFromContext(ctx)
	if err != nil {
		h.sendError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := db.GetDocumentStats(ctx, claims.UserID)
	if err != nil {
		h.handleDBError(w, err, "failed to get stats")
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// handleDBError maps repository errors onto HTTP statuses
func (h *Handler) handleDBError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		h.sendError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, db.ErrNoDatabase):
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
	default:
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("%s: %v", message, err))
	}
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
