package dto

import "github.com/safevoice-app/safevoice-api/internal/models"

// CreateReportRequest is the public intake payload. Evidence files arrive
// as multipart parts and are attached by the handler.
type CreateReportRequest struct {
	Category     models.ReportCategory `json:"category" form:"category" validate:"required"`
	IncidentDate string                `json:"incident_date" form:"incident_date" validate:"required"`
	City         string                `json:"city" form:"city"`
	State        string                `json:"state" form:"state"`
	Neighborhood string                `json:"neighborhood" form:"neighborhood"`
	Narrative    string                `json:"narrative" form:"narrative" validate:"required"`
}

// UpdateStatusRequest changes triage status, optionally storing notes in
// the same call.
type UpdateStatusRequest struct {
	Status models.ReportStatus `json:"status" validate:"required"`
	Notes  *string             `json:"notes,omitempty"`
}

// UpdatePriorityRequest overrides the derived urgency tier.
type UpdatePriorityRequest struct {
	Priority models.ReportPriority `json:"priority" validate:"required"`
}

// UpdateNotesRequest replaces administrator notes wholesale.
type UpdateNotesRequest struct {
	Notes string `json:"notes"`
}

// ListReportsQuery mirrors the query string accepted by the admin listing.
type ListReportsQuery struct {
	Status   string `form:"status"`
	Category string `form:"category"`
	Priority string `form:"priority"`
	Search   string `form:"search"`
	From     string `form:"from"`
	To       string `form:"to"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ExportQuery selects the export rendering format.
type ExportQuery struct {
	Format string `form:"format"`
}
