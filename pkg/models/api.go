package models

import (
	"time"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Body struct {
		Status  string    `json:"status" example:"healthy" doc:"Service health status"`
		Version string    `json:"version" example:"1.0.0" doc:"API version"`
		Time    time.Time `json:"time" doc:"Current server time"`
	}
}

// UploadedFile represents a Touchstone file sent inline
type UploadedFile struct {
	Name    string `json:"name" minLength:"1" maxLength:"255" required:"true" doc:"File name, used as the result key"`
	Content string `json:"content" required:"true" doc:"Touchstone file content"`
}

// CreateExtractionRequest represents a request to extract resonator parameters from inline files
type CreateExtractionRequest struct {
	Body struct {
		Files       []UploadedFile `json:"files" minItems:"1" maxItems:"200" required:"true" doc:"Touchstone two-port files"`
		IncludePlot bool           `json:"include_plot,omitempty" doc:"Attach plot series to every result"`
	}
}

// CreateStorageExtractionRequest represents a request to extract every .s2p object under a bucket prefix
type CreateStorageExtractionRequest struct {
	Body struct {
		Prefix      string `json:"prefix" minLength:"1" required:"true" doc:"Object key prefix"`
		IncludePlot bool   `json:"include_plot,omitempty" doc:"Attach plot series to every result"`
	}
}

// ExtractionResponse represents a processed batch
type ExtractionResponse struct {
	Body *Batch
}
