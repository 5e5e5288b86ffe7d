package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/RMahshie/arpe/internal/api/handlers"
	"github.com/RMahshie/arpe/internal/processing"
	"github.com/RMahshie/arpe/internal/storage"
	"github.com/RMahshie/arpe/pkg/models"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// bodyLimit is the request body limit for inline uploads: twice the content
// limit for JSON escaping plus 1 MiB for the envelope, unlimited when the
// content limit is disabled.
func bodyLimit(maxUploadBytes int64) int64 {
	if maxUploadBytes <= 0 {
		return -1
	}
	return 2*maxUploadBytes + 1<<20
}

// RegisterRoutes sets up all API routes. s3Service may be nil.
func RegisterRoutes(api huma.API, service processing.ExtractionService, s3Service storage.S3Service, maxUploadBytes int64) {
	extractionHandler := handlers.NewExtractionHandler(service, s3Service, maxUploadBytes)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns the health status of the service",
	}, func(ctx context.Context, input *struct{}) (*models.HealthResponse, error) {
		resp := &models.HealthResponse{}
		resp.Body.Status = "healthy"
		resp.Body.Version = Version
		resp.Body.Time = time.Now()
		return resp, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:  "createExtraction",
		Method:       http.MethodPost,
		Path:         "/api/extractions",
		Summary:      "Extract resonator parameters",
		Description:  "Processes inline Touchstone files and returns one result per file",
		Tags:         []string{"Extraction"},
		MaxBodyBytes: bodyLimit(maxUploadBytes),
	}, extractionHandler.CreateExtraction)

	huma.Register(api, huma.Operation{
		OperationID: "createStorageExtraction",
		Method:      http.MethodPost,
		Path:        "/api/extractions/storage",
		Summary:     "Extract resonator parameters from object storage",
		Description: "Processes every .s2p object under a bucket prefix",
		Tags:        []string{"Extraction"},
	}, extractionHandler.CreateStorageExtraction)
}
