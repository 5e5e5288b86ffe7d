package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/RMahshie/arpe/internal/processing"
	"github.com/RMahshie/arpe/internal/storage"
	"github.com/RMahshie/arpe/pkg/models"
)

// ExtractionHandler handles extraction-related HTTP requests
type ExtractionHandler struct {
	service        processing.ExtractionService
	s3Service      storage.S3Service
	maxUploadBytes int64
}

// NewExtractionHandler creates a new extraction handler. s3Service may be
// nil when no bucket is configured; maxUploadBytes <= 0 disables the limit.
func NewExtractionHandler(service processing.ExtractionService, s3Service storage.S3Service, maxUploadBytes int64) *ExtractionHandler {
	return &ExtractionHandler{
		service:        service,
		s3Service:      s3Service,
		maxUploadBytes: maxUploadBytes,
	}
}

// CreateExtraction extracts resonator parameters from files sent inline
func (h *ExtractionHandler) CreateExtraction(ctx context.Context, req *models.CreateExtractionRequest) (*models.ExtractionResponse, error) {
	files := make([]models.InputFile, len(req.Body.Files))
	var total int64
	for i, f := range req.Body.Files {
		files[i] = models.InputFile{Name: f.Name, Content: []byte(f.Content)}
		total += int64(len(f.Content))
	}
	log.Info().Int("files", len(files)).Int64("bytes", total).Msg("Extraction request received")

	if h.maxUploadBytes > 0 && total > h.maxUploadBytes {
		return nil, huma.NewError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("Files total %d bytes, limit is %d", total, h.maxUploadBytes))
	}
	return h.run(ctx, files, req.Body.IncludePlot)
}

// CreateStorageExtraction extracts resonator parameters from every .s2p
// object under a bucket prefix
func (h *ExtractionHandler) CreateStorageExtraction(ctx context.Context, req *models.CreateStorageExtractionRequest) (*models.ExtractionResponse, error) {
	if h.s3Service == nil {
		return nil, huma.Error503ServiceUnavailable("Object storage is not configured")
	}
	log.Info().Str("prefix", req.Body.Prefix).Msg("Storage extraction request received")

	files, err := h.s3Service.LoadPrefix(ctx, req.Body.Prefix)
	if err != nil {
		log.Error().Err(err).Str("prefix", req.Body.Prefix).Msg("Failed to load files from storage")
		return nil, huma.Error500InternalServerError("Failed to load files from storage", err)
	}
	if len(files) == 0 {
		return nil, huma.Error404NotFound(fmt.Sprintf("No .s2p files under prefix %q", req.Body.Prefix))
	}
	return h.run(ctx, files, req.Body.IncludePlot)
}

func (h *ExtractionHandler) run(ctx context.Context, files []models.InputFile, includePlot bool) (*models.ExtractionResponse, error) {
	batch, err := h.service.ProcessBatch(ctx, files)
	switch {
	case errors.Is(err, processing.ErrEmptyBatch):
		return nil, huma.Error400BadRequest("No files to process", err)
	case batch == nil:
		return nil, huma.Error500InternalServerError("Extraction failed", err)
	case err != nil:
		// Cancelled files are already marked in the batch.
		log.Warn().Err(err).Str("batchID", batch.ID.String()).Msg("Batch interrupted")
	}

	if !includePlot {
		for _, r := range batch.Results {
			r.Plot = nil
		}
	}
	return &models.ExtractionResponse{Body: batch}, nil
}
