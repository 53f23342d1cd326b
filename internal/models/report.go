package models

import (
	"encoding/json"
	"time"
)

// ReportCategory classifies the kind of incident described by a report.
type ReportCategory string

const (
	CategoryPhysical      ReportCategory = "physical"
	CategoryPsychological ReportCategory = "psychological"
	CategorySexual        ReportCategory = "sexual"
	CategoryEconomic      ReportCategory = "economic"
	CategoryMoral         ReportCategory = "moral"
	CategoryProperty      ReportCategory = "property"
	CategoryOther         ReportCategory = "other"
)

// ReportStatus tracks triage progress of a report.
type ReportStatus string

const (
	StatusPending   ReportStatus = "pending"
	StatusReviewing ReportStatus = "reviewing"
	StatusResolved  ReportStatus = "resolved"
	StatusArchived  ReportStatus = "archived"
)

// ReportPriority is the urgency tier assigned to a report.
type ReportPriority string

const (
	PriorityLow    ReportPriority = "low"
	PriorityMedium ReportPriority = "medium"
	PriorityHigh   ReportPriority = "high"
	PriorityUrgent ReportPriority = "urgent"
)

// ValidCategory reports whether the value belongs to the category enum.
func ValidCategory(c ReportCategory) bool {
	switch c {
	case CategoryPhysical, CategoryPsychological, CategorySexual, CategoryEconomic, CategoryMoral, CategoryProperty, CategoryOther:
		return true
	}
	return false
}

// ValidStatus reports whether the value belongs to the status enum.
func ValidStatus(s ReportStatus) bool {
	switch s {
	case StatusPending, StatusReviewing, StatusResolved, StatusArchived:
		return true
	}
	return false
}

// ValidPriority reports whether the value belongs to the priority enum.
func ValidPriority(p ReportPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

var categoryPriorities = map[ReportCategory]ReportPriority{
	CategoryPhysical:      PriorityUrgent,
	CategorySexual:        PriorityUrgent,
	CategoryPsychological: PriorityHigh,
	CategoryEconomic:      PriorityMedium,
	CategoryMoral:         PriorityMedium,
	CategoryProperty:      PriorityLow,
	CategoryOther:         PriorityLow,
}

// PriorityForCategory maps a category to its initial priority.
// Unknown categories fall back to medium.
func PriorityForCategory(c ReportCategory) ReportPriority {
	if p, ok := categoryPriorities[c]; ok {
		return p
	}
	return PriorityMedium
}

// EvidenceKind distinguishes the supported attachment media.
type EvidenceKind string

const (
	EvidenceImage EvidenceKind = "image"
	EvidenceAudio EvidenceKind = "audio"
)

// EvidenceItem is an uploaded attachment stored inline as a base64 data URI.
type EvidenceItem struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Kind      EvidenceKind `json:"kind"`
	Payload   string       `json:"payload"`
	SizeBytes int64        `json:"size_bytes"`
}

// EvidenceList wraps the attachment slice so it can live in a single
// jsonb column and be written atomically with the rest of the report row.
type EvidenceList []EvidenceItem

// Location holds the optional place details of an incident.
type Location struct {
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
}

// Report is a single anonymous incident submission.
type Report struct {
	ID           string          `db:"id" json:"id"`
	PublicID     string          `db:"public_id" json:"public_id"`
	Category     ReportCategory  `db:"category" json:"category"`
	IncidentDate string          `db:"incident_date" json:"incident_date"`
	City         string          `db:"city" json:"city,omitempty"`
	State        string          `db:"state" json:"state,omitempty"`
	Neighborhood string          `db:"neighborhood" json:"neighborhood,omitempty"`
	Narrative    string          `db:"narrative" json:"narrative"`
	Status       ReportStatus    `db:"status" json:"status"`
	Priority     ReportPriority  `db:"priority" json:"priority"`
	Evidence     json.RawMessage `db:"evidence" json:"evidence,omitempty"`
	Notes        string          `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// EvidenceItems decodes the stored evidence column.
func (r *Report) EvidenceItems() (EvidenceList, error) {
	if len(r.Evidence) == 0 {
		return nil, nil
	}
	var items EvidenceList
	if err := json.Unmarshal(r.Evidence, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// PublicReport is the restricted projection returned to reporters.
// Internal notes and the storage identifier are never exposed here.
type PublicReport struct {
	PublicID     string         `json:"public_id"`
	Category     ReportCategory `json:"category"`
	IncidentDate string         `json:"incident_date"`
	Narrative    string         `json:"narrative"`
	Status       ReportStatus   `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// PublicView returns the reporter-facing projection of the report.
func (r *Report) PublicView() PublicReport {
	return PublicReport{
		PublicID:     r.PublicID,
		Category:     r.Category,
		IncidentDate: r.IncidentDate,
		Narrative:    r.Narrative,
		Status:       r.Status,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// ReportFilter captures criteria for listing reports.
type ReportFilter struct {
	Status      *ReportStatus
	Category    *ReportCategory
	Priority    *ReportPriority
	Search      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Page        int
	PageSize    int
}

// ReportStatistics is the aggregate snapshot of stored reports.
type ReportStatistics struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ByCategory     map[string]int `json:"by_category"`
	ByPriority     map[string]int `json:"by_priority"`
	CreatedLast24h int            `json:"created_last_24h"`
	GeneratedAt    time.Time      `json:"generated_at"`
}
