package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safevoice-app/safevoice-api/internal/models"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
	"github.com/safevoice-app/safevoice-api/pkg/export"
	"github.com/safevoice-app/safevoice-api/pkg/storage"
)

// ExportFormat selects the rendering of a report export.
type ExportFormat string

const (
	ExportJSON ExportFormat = "json"
	ExportCSV  ExportFormat = "csv"
	ExportPDF  ExportFormat = "pdf"
)

// ParseExportFormat validates the query-string format value.
func ParseExportFormat(raw string) (ExportFormat, error) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(raw))) {
	case ExportJSON, "":
		return ExportJSON, nil
	case ExportCSV:
		return ExportCSV, nil
	case ExportPDF:
		return ExportPDF, nil
	}
	return "", appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("format: %q is not one of json, csv, pdf", raw))
}

type exportReportLister interface {
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportResult carries the rendered data plus the archived copy's signed
// download token.
type ExportResult struct {
	Format        ExportFormat `json:"format"`
	Data          string       `json:"data"`
	DownloadToken string       `json:"download_token,omitempty"`
	ExpiresAt     *time.Time   `json:"expires_at,omitempty"`
}

// ExportDownload resolves a signed token back to the archived file.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    ExportFormat
	ExpiresAt time.Time
}

// ExportService renders report exports and archives a copy for signed
// download retrieval.
type ExportService struct {
	reports exportReportLister
	storage exportFileStorage
	csv     csvRenderer
	pdf     pdfRenderer
	signer  *storage.SignedURLSigner
	audit   *AuditService
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(reports exportReportLister, fileStorage exportFileStorage, signer *storage.SignedURLSigner, audit *AuditService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		reports: reports,
		storage: fileStorage,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		signer:  signer,
		audit:   audit,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

var exportHeaders = []string{"public_id", "category", "incident_date", "city", "state", "status", "priority", "created_at"}

func exportRow(r models.Report) map[string]string {
	return map[string]string{
		"public_id":     r.PublicID,
		"category":      string(r.Category),
		"incident_date": r.IncidentDate,
		"city":          r.City,
		"state":         r.State,
		"status":        string(r.Status),
		"priority":      string(r.Priority),
		"created_at":    r.CreatedAt.Format(time.RFC3339),
	}
}

// Generate renders all reports matching the filter. Evidence payloads and
// internal notes are left out of exports; they stay in the database.
func (s *ExportService) Generate(ctx context.Context, actor models.Actor, filter models.ReportFilter, format ExportFormat) (*ExportResult, error) {
	// exports ignore pagination and cover the whole filtered set
	filter.Page = 1
	filter.PageSize = 100

	var all []models.Report
	for {
		page, _, err := s.reports.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to collect reports")
		}
		all = append(all, page...)
		if len(page) < filter.PageSize {
			break
		}
		filter.Page++
	}

	var payload []byte
	var err error
	switch format {
	case ExportJSON:
		rows := make([]map[string]string, 0, len(all))
		for _, r := range all {
			rows = append(rows, exportRow(r))
		}
		payload, err = json.MarshalIndent(rows, "", "  ")
	case ExportCSV:
		payload, err = s.csv.Render(s.dataset(all))
	case ExportPDF:
		payload, err = s.pdf.Render(s.dataset(all), "report export")
	default:
		err = fmt.Errorf("unsupported format %s", format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	result := &ExportResult{Format: format, Data: string(payload)}

	if s.storage != nil && s.signer != nil {
		exportID := uuid.NewString()
		filename := fmt.Sprintf("reports-%s.%s", s.now().Format("20060102-150405"), format)
		relPath, saveErr := s.storage.Save(filename, payload)
		if saveErr != nil {
			s.logger.Warn("failed to archive export", zap.Error(saveErr))
		} else if token, expiresAt, signErr := s.signer.Generate(exportID, relPath); signErr == nil {
			result.DownloadToken = token
			result.ExpiresAt = &expiresAt
		} else {
			s.logger.Warn("failed to sign export download", zap.Error(signErr))
		}
	}

	s.audit.Record(ctx, actor, models.AuditActionExport,
		fmt.Sprintf("exported %d reports as %s", len(all), format), nil)

	return result, nil
}

// ResolveDownload validates a signed token and opens the archived file.
func (s *ExportService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	if s.storage == nil || s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export downloads are not enabled")
	}
	_, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
	}
	format := ExportJSON
	if i := strings.LastIndex(relPath, "."); i >= 0 {
		format = ExportFormat(strings.ToLower(relPath[i+1:]))
	}
	return &ExportDownload{File: file, Filename: filepath.Base(relPath), Format: format, ExpiresAt: expiresAt}, nil
}

func (s *ExportService) dataset(reports []models.Report) export.Dataset {
	rows := make([]map[string]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, exportRow(r))
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
