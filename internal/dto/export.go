package dto

import "time"

// ExportFormat enumerates substitution report encodings.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// ExportResponse points at a rendered report behind a signed, expiring URL.
type ExportResponse struct {
	ID        string       `json:"id"`
	Format    ExportFormat `json:"format"`
	URL       string       `json:"url"`
	ExpiresAt time.Time    `json:"expires_at"`
	Rows      int          `json:"rows"`
}
