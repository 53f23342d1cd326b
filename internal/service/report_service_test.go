package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/safevoice-app/safevoice-api/internal/models"
	"github.com/safevoice-app/safevoice-api/pkg/evidence"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
)

type mockAuditRepo struct {
	entries []*models.AuditLog
}

func (m *mockAuditRepo) Append(ctx context.Context, entry *models.AuditLog) error {
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, filter models.AuditFilter) ([]models.AuditLog, int, error) {
	out := make([]models.AuditLog, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, *e)
	}
	return out, len(out), nil
}

type mockReportRepo struct {
	seq           int64
	created       []*models.Report
	createErrs    []error
	reportByID    *models.Report
	findByIDErr   error
	publicReport  *models.Report
	findPublicErr error
	deleted       []string
	deleteErr     error
	notes         []string
	stats         *models.ReportStatistics
	statsCalls    int
}

func (m *mockReportRepo) NextTrackingSequence(ctx context.Context) (int64, error) {
	m.seq++
	return m.seq, nil
}

func (m *mockReportRepo) Create(ctx context.Context, report *models.Report) error {
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	copied := *report
	m.created = append(m.created, &copied)
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.Report, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.reportByID == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.reportByID
	return &copied, nil
}

func (m *mockReportRepo) FindByPublicID(ctx context.Context, publicID string) (*models.Report, error) {
	if m.findPublicErr != nil {
		return nil, m.findPublicErr
	}
	if m.publicReport == nil {
		return nil, sql.ErrNoRows
	}
	copied := *m.publicReport
	return &copied, nil
}

func (m *mockReportRepo) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	var out []models.Report
	for _, r := range m.created {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *mockReportRepo) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, notes *string) error {
	return nil
}

func (m *mockReportRepo) UpdatePriority(ctx context.Context, id string, priority models.ReportPriority) error {
	return nil
}

func (m *mockReportRepo) UpdateNotes(ctx context.Context, id string, notes string) error {
	m.notes = append(m.notes, notes)
	return nil
}

func (m *mockReportRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockReportRepo) Statistics(ctx context.Context) (*models.ReportStatistics, error) {
	m.statsCalls++
	if m.stats != nil {
		return m.stats, nil
	}
	return &models.ReportStatistics{
		ByStatus:   map[string]int{},
		ByCategory: map[string]int{},
		ByPriority: map[string]int{},
	}, nil
}

func newReportService(repo *mockReportRepo, auditRepo *mockAuditRepo) *ReportService {
	audit := NewAuditService(auditRepo, zap.NewNop())
	return NewReportService(repo, nil, audit, nil, nil, zap.NewNop(), time.Minute)
}

func validIntake() ReportIntake {
	return ReportIntake{
		Category:     models.CategoryPhysical,
		IncidentDate: "25/09/2025",
		City:         "Springfield",
		State:        "SP",
		Narrative:    "something happened",
	}
}

func TestCreateReportAssignsTrackingCodeAndPriority(t *testing.T) {
	repo := &mockReportRepo{seq: 0}
	svc := newReportService(repo, &mockAuditRepo{})
	svc.now = func() time.Time { return time.Date(2025, 9, 25, 12, 0, 0, 0, time.UTC) }

	report, err := svc.Create(context.Background(), validIntake())
	require.NoError(t, err)
	assert.Equal(t, "2509251001", report.PublicID)
	assert.Equal(t, models.StatusPending, report.Status)
	assert.Equal(t, models.PriorityUrgent, report.Priority)
	assert.Equal(t, "25/09/2025", report.IncidentDate)
}

func TestCreateReportPriorityPerCategory(t *testing.T) {
	cases := map[models.ReportCategory]models.ReportPriority{
		models.CategoryPhysical:      models.PriorityUrgent,
		models.CategorySexual:        models.PriorityUrgent,
		models.CategoryPsychological: models.PriorityHigh,
		models.CategoryEconomic:      models.PriorityMedium,
		models.CategoryMoral:         models.PriorityMedium,
		models.CategoryProperty:      models.PriorityLow,
		models.CategoryOther:         models.PriorityLow,
	}
	for category, want := range cases {
		repo := &mockReportRepo{}
		svc := newReportService(repo, &mockAuditRepo{})

		intake := validIntake()
		intake.Category = category
		report, err := svc.Create(context.Background(), intake)
		require.NoError(t, err)
		assert.Equal(t, want, report.Priority, "category %s", category)
	}
}

func TestCreateReportNormalizesISODate(t *testing.T) {
	repo := &mockReportRepo{}
	svc := newReportService(repo, &mockAuditRepo{})

	intake := validIntake()
	intake.IncidentDate = "2025-09-25"
	report, err := svc.Create(context.Background(), intake)
	require.NoError(t, err)
	assert.Equal(t, "25/09/2025", report.IncidentDate)
}

func TestCreateReportRejectsBadDate(t *testing.T) {
	svc := newReportService(&mockReportRepo{}, &mockAuditRepo{})

	intake := validIntake()
	intake.IncidentDate = "25-09-2025"
	_, err := svc.Create(context.Background(), intake)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateReportNarrativeBoundary(t *testing.T) {
	svc := newReportService(&mockReportRepo{}, &mockAuditRepo{})

	intake := validIntake()
	intake.Narrative = strings.Repeat("a", MaxNarrativeLength)
	_, err := svc.Create(context.Background(), intake)
	require.NoError(t, err)

	intake.Narrative = strings.Repeat("a", MaxNarrativeLength+1)
	_, err = svc.Create(context.Background(), intake)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestCreateReportValidationCollectsAllFields(t *testing.T) {
	svc := newReportService(&mockReportRepo{}, &mockAuditRepo{})

	_, err := svc.Create(context.Background(), ReportIntake{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Len(t, appErr.Details, 3)
}

func TestCreateReportEncodesEvidence(t *testing.T) {
	repo := &mockReportRepo{}
	svc := newReportService(repo, &mockAuditRepo{})

	intake := validIntake()
	intake.Files = []evidence.File{{Name: "photo.jpg", MIME: "image/jpeg", Data: []byte{0xFF, 0xD8, 0xFF, 0xDB, 0x00, 0x10}}}
	report, err := svc.Create(context.Background(), intake)
	require.NoError(t, err)

	var items models.EvidenceList
	require.NoError(t, json.Unmarshal(report.Evidence, &items))
	require.Len(t, items, 1)
	assert.Equal(t, models.EvidenceImage, items[0].Kind)
	assert.True(t, strings.HasPrefix(items[0].Payload, "data:image/jpeg;base64,"))
}

func TestCreateReportRetriesOnTrackingCollision(t *testing.T) {
	repo := &mockReportRepo{createErrs: []error{&pq.Error{Code: "23505"}}}
	svc := newReportService(repo, &mockAuditRepo{})
	svc.now = func() time.Time { return time.Date(2025, 9, 25, 12, 0, 0, 0, time.UTC) }

	report, err := svc.Create(context.Background(), validIntake())
	require.NoError(t, err)
	// first sequence burned by the collision, second attempt succeeds
	assert.Equal(t, "2509251002", report.PublicID)
}

func TestGetByPublicIDHidesNotes(t *testing.T) {
	repo := &mockReportRepo{publicReport: &models.Report{
		ID:        "r1",
		PublicID:  "2509251001",
		Category:  models.CategoryPhysical,
		Narrative: "something happened",
		Status:    models.StatusPending,
		Notes:     "internal only",
	}}
	svc := newReportService(repo, &mockAuditRepo{})

	view, err := svc.GetByPublicID(context.Background(), "2509251001")
	require.NoError(t, err)
	assert.Equal(t, "2509251001", view.PublicID)

	payload, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "internal only")
	assert.NotContains(t, string(payload), `"id"`)
}

func TestGetByPublicIDNotFound(t *testing.T) {
	svc := newReportService(&mockReportRepo{}, &mockAuditRepo{})

	_, err := svc.GetByPublicID(context.Background(), "0000000000")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestUpdateStatusRecordsTransition(t *testing.T) {
	auditRepo := &mockAuditRepo{}
	repo := &mockReportRepo{reportByID: &models.Report{ID: "r1", Status: models.StatusPending}}
	svc := newReportService(repo, auditRepo)

	actor := models.Actor{ID: "u1", Email: "admin@example.com"}
	report, err := svc.UpdateStatus(context.Background(), actor, "r1", models.StatusReviewing, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusReviewing, report.Status)

	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, models.AuditActionStatusChange, auditRepo.entries[0].Action)
	assert.Contains(t, auditRepo.entries[0].Details, "from pending to reviewing")
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	svc := newReportService(&mockReportRepo{}, &mockAuditRepo{})

	_, err := svc.UpdateStatus(context.Background(), models.Actor{}, "r1", "escalated", nil)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestUpdateNotesAuditsEveryCall(t *testing.T) {
	auditRepo := &mockAuditRepo{}
	repo := &mockReportRepo{reportByID: &models.Report{ID: "r1", Notes: "same"}}
	svc := newReportService(repo, auditRepo)

	actor := models.Actor{Email: "admin@example.com"}
	_, err := svc.UpdateNotes(context.Background(), actor, "r1", "same")
	require.NoError(t, err)
	_, err = svc.UpdateNotes(context.Background(), actor, "r1", "same")
	require.NoError(t, err)

	// idempotent on state, but both calls land in the audit trail
	assert.Equal(t, []string{"same", "same"}, repo.notes)
	assert.Len(t, auditRepo.entries, 2)
}

func TestUpdateNotesClearing(t *testing.T) {
	auditRepo := &mockAuditRepo{}
	repo := &mockReportRepo{reportByID: &models.Report{ID: "r1", Notes: "old"}}
	svc := newReportService(repo, auditRepo)

	report, err := svc.UpdateNotes(context.Background(), models.Actor{}, "r1", "")
	require.NoError(t, err)
	assert.Empty(t, report.Notes)
	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, "notes cleared", auditRepo.entries[0].Details)
}

func TestDeleteReportAuditsSnapshot(t *testing.T) {
	auditRepo := &mockAuditRepo{}
	repo := &mockReportRepo{reportByID: &models.Report{ID: "r1", PublicID: "2509251001", Narrative: "text"}}
	svc := newReportService(repo, auditRepo)

	err := svc.Delete(context.Background(), models.Actor{Email: "admin@example.com"}, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, repo.deleted)
	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, models.AuditActionReportDelete, auditRepo.entries[0].Action)
	assert.Contains(t, auditRepo.entries[0].Details, "2509251001")
}

func TestStatisticsWithoutCacheAlwaysRecomputes(t *testing.T) {
	repo := &mockReportRepo{stats: &models.ReportStatistics{Total: 5}}
	svc := newReportService(repo, &mockAuditRepo{})

	for i := 0; i < 3; i++ {
		stats, err := svc.Statistics(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 5, stats.Total)
	}
	assert.Equal(t, 3, repo.statsCalls)
}
