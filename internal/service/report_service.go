package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/safevoice-app/safevoice-api/internal/models"
	"github.com/safevoice-app/safevoice-api/internal/repository"
	"github.com/safevoice-app/safevoice-api/pkg/evidence"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
	"github.com/safevoice-app/safevoice-api/pkg/tracking"
)

// MaxNarrativeLength bounds the free-text incident description.
const MaxNarrativeLength = 2000

const statsCacheKey = "reports:stats"

// trackingInsertAttempts bounds the collision retry loop; with the atomic
// sequence a second attempt should never be needed.
const trackingInsertAttempts = 3

type reportRepository interface {
	NextTrackingSequence(ctx context.Context) (int64, error)
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	FindByPublicID(ctx context.Context, publicID string) (*models.Report, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
	UpdateStatus(ctx context.Context, id string, status models.ReportStatus, notes *string) error
	UpdatePriority(ctx context.Context, id string, priority models.ReportPriority) error
	UpdateNotes(ctx context.Context, id string, notes string) error
	Delete(ctx context.Context, id string) error
	Statistics(ctx context.Context) (*models.ReportStatistics, error)
}

// ReportIntake is the validated submission handed to Create.
type ReportIntake struct {
	Category     models.ReportCategory
	IncidentDate string
	City         string
	State        string
	Neighborhood string
	Narrative    string
	Files        []evidence.File
}

// ReportService orchestrates intake, triage and aggregation of reports.
type ReportService struct {
	repo      reportRepository
	encoder   *evidence.Encoder
	audit     *AuditService
	cache     *CacheService
	metrics   *MetricsService
	logger    *zap.Logger
	statsTTL  time.Duration
	now       func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(repo reportRepository, encoder *evidence.Encoder, audit *AuditService, cache *CacheService, metrics *MetricsService, logger *zap.Logger, statsTTL time.Duration) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if encoder == nil {
		encoder = evidence.NewEncoder(0, 0, nil)
	}
	if statsTTL <= 0 {
		statsTTL = time.Minute
	}
	return &ReportService{
		repo:      repo,
		encoder:   encoder,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		logger:    logger,
		statsTTL:  statsTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// normalizeIncidentDate accepts DD/MM/YYYY or YYYY-MM-DD and stores the
// former. Anything else is a validation failure.
func normalizeIncidentDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("02/01/2006", raw); err == nil {
		return t.Format("02/01/2006"), nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.Format("02/01/2006"), nil
	}
	return "", fmt.Errorf("incident date must be DD/MM/YYYY or YYYY-MM-DD")
}

func (s *ReportService) validateIntake(intake ReportIntake) (string, *appErrors.Error) {
	var details []string

	if intake.Narrative == "" {
		details = append(details, "narrative: required")
	} else if len(intake.Narrative) > MaxNarrativeLength {
		details = append(details, fmt.Sprintf("narrative: exceeds %d characters", MaxNarrativeLength))
	}

	if intake.Category == "" {
		details = append(details, "category: required")
	} else if !models.ValidCategory(intake.Category) {
		details = append(details, fmt.Sprintf("category: %q is not a valid category", intake.Category))
	}

	normalizedDate := ""
	if intake.IncidentDate == "" {
		details = append(details, "incident_date: required")
	} else {
		var err error
		normalizedDate, err = normalizeIncidentDate(intake.IncidentDate)
		if err != nil {
			details = append(details, "incident_date: "+err.Error())
		}
	}

	if len(details) > 0 {
		return "", appErrors.WithDetails(appErrors.ErrValidation, details...)
	}
	return normalizedDate, nil
}

// Create handles a public submission: validation, tracking code, derived
// priority, evidence encoding, then a single atomic insert.
func (s *ReportService) Create(ctx context.Context, intake ReportIntake) (*models.Report, error) {
	normalizedDate, vErr := s.validateIntake(intake)
	if vErr != nil {
		return nil, vErr
	}

	items, err := s.encoder.EncodeBatch(intake.Files)
	if err != nil {
		return nil, err
	}
	var evidenceJSON json.RawMessage
	if len(items) > 0 {
		evidenceJSON, err = json.Marshal(items)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode evidence")
		}
	}

	report := &models.Report{
		Category:     intake.Category,
		IncidentDate: normalizedDate,
		City:         intake.City,
		State:        intake.State,
		Neighborhood: intake.Neighborhood,
		Narrative:    intake.Narrative,
		Status:       models.StatusPending,
		Priority:     models.PriorityForCategory(intake.Category),
		Evidence:     evidenceJSON,
	}

	for attempt := 1; attempt <= trackingInsertAttempts; attempt++ {
		seq, err := s.repo.NextTrackingSequence(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reserve tracking code")
		}
		report.PublicID = tracking.Format(s.now(), seq)

		err = s.repo.Create(ctx, report)
		if err == nil {
			break
		}
		if repository.IsUniqueViolation(err) && attempt < trackingInsertAttempts {
			s.logger.Warn("tracking code collision, retrying", zap.String("public_id", report.PublicID))
			continue
		}
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "tracking code collision")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store report")
	}

	if s.metrics != nil {
		s.metrics.RecordReportCreated()
	}
	s.invalidateStats(ctx)

	return report, nil
}

// Get returns the full report for administrators.
func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}

// GetByPublicID returns the restricted reporter-facing projection.
// Internal notes never leave this boundary.
func (s *ReportService) GetByPublicID(ctx context.Context, publicID string) (*models.PublicReport, error) {
	report, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	view := report.PublicView()
	return &view, nil
}

// List returns reports for the admin listing.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, *models.Pagination, error) {
	reports, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return reports, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UpdateStatus changes a report's triage status, storing optional notes in
// the same call and recording previous and new values in the audit trail.
func (s *ReportService) UpdateStatus(ctx context.Context, actor models.Actor, id string, status models.ReportStatus, notes *string) (*models.Report, error) {
	if !models.ValidStatus(status) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("status: %q is not a valid status", status))
	}

	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := report.Status

	if err := s.repo.UpdateStatus(ctx, id, status, notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	report.Status = status
	if notes != nil {
		report.Notes = *notes
	}
	report.UpdatedAt = s.now()

	s.audit.Record(ctx, actor, models.AuditActionStatusChange,
		fmt.Sprintf("status changed from %s to %s", previous, status), &report.ID)
	s.invalidateStats(ctx)

	return report, nil
}

// UpdatePriority overrides the urgency tier, recording previous and new
// values in the audit trail.
func (s *ReportService) UpdatePriority(ctx context.Context, actor models.Actor, id string, priority models.ReportPriority) (*models.Report, error) {
	if !models.ValidPriority(priority) {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, fmt.Sprintf("priority: %q is not a valid priority", priority))
	}

	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := report.Priority

	if err := s.repo.UpdatePriority(ctx, id, priority); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update priority")
	}

	report.Priority = priority
	report.UpdatedAt = s.now()

	s.audit.Record(ctx, actor, models.AuditActionPriorityChange,
		fmt.Sprintf("priority changed from %s to %s", previous, priority), &report.ID)
	s.invalidateStats(ctx)

	return report, nil
}

// UpdateNotes replaces the administrator notes. Every call logs, even when
// the stored value does not change.
func (s *ReportService) UpdateNotes(ctx context.Context, actor models.Actor, id string, notes string) (*models.Report, error) {
	report, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateNotes(ctx, id, notes); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update notes")
	}

	report.Notes = notes
	report.UpdatedAt = s.now()

	detail := "notes updated"
	if notes == "" {
		detail = "notes cleared"
	}
	s.audit.Record(ctx, actor, models.AuditActionNotesChange, detail, &report.ID)

	return report, nil
}

// Delete removes a report permanently. The pre-delete state is captured in
// the audit entry since the row will no longer exist afterwards.
func (s *ReportService) Delete(ctx context.Context, actor models.Actor, id string) error {
	report, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}

	snapshot, marshalErr := json.Marshal(report)
	if marshalErr != nil {
		snapshot = []byte(fmt.Sprintf(`{"public_id":%q}`, report.PublicID))
	}
	s.audit.Record(ctx, actor, models.AuditActionReportDelete,
		fmt.Sprintf("deleted report %s, snapshot: %s", report.PublicID, snapshot), &report.ID)
	s.invalidateStats(ctx)

	return nil
}

// Statistics returns the aggregate snapshot, cached briefly when a cache
// is configured.
func (s *ReportService) Statistics(ctx context.Context) (*models.ReportStatistics, error) {
	var cached models.ReportStatistics
	if hit, _ := s.cache.Get(ctx, statsCacheKey, &cached); hit {
		return &cached, nil
	}

	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute statistics")
	}

	_ = s.cache.Set(ctx, statsCacheKey, stats, s.statsTTL)
	return stats, nil
}

func (s *ReportService) invalidateStats(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, statsCacheKey)
}
