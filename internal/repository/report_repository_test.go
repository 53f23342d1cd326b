package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safevoice-app/safevoice-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func reportRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "public_id", "category", "incident_date", "city", "state", "neighborhood", "narrative", "status", "priority", "evidence", "notes", "created_at", "updated_at"}).
		AddRow("r1", "2509251001", "physical", "25/09/2025", "Springfield", "SP", "", "something happened", "pending", "urgent", nil, "", now, now)
}

func TestNextTrackingSequence(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	rows := sqlmock.NewRows([]string{"value"}).AddRow(42)
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE tracking_counters SET value = value + 1 WHERE name = 'reports' RETURNING value")).
		WillReturnRows(rows)

	seq, err := repo.NextTrackingSequence(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), seq)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReport(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("INSERT INTO reports").WillReturnResult(sqlmock.NewResult(1, 1))

	report := &models.Report{
		PublicID:     "2509251001",
		Category:     models.CategoryPhysical,
		IncidentDate: "25/09/2025",
		Narrative:    "something happened",
		Status:       models.StatusPending,
		Priority:     models.PriorityUrgent,
	}
	err := repo.Create(context.Background(), report)
	require.NoError(t, err)
	assert.NotEmpty(t, report.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateReportUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	pqErr := &pq.Error{Code: "23505"}
	mock.ExpectExec("INSERT INTO reports").WillReturnError(pqErr)

	err := repo.Create(context.Background(), &models.Report{PublicID: "2509251001"})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPublicID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, public_id, category, incident_date, city, state, neighborhood, narrative, status, priority, evidence, notes, created_at, updated_at FROM reports WHERE public_id = $1 LIMIT 1")).
		WithArgs("2509251001").
		WillReturnRows(reportRows(now))

	report, err := repo.FindByPublicID(context.Background(), "2509251001")
	require.NoError(t, err)
	assert.Equal(t, "2509251001", report.PublicID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPublicIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM reports WHERE public_id").
		WithArgs("0000000000").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByPublicID(context.Background(), "0000000000")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListReportsWithFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	now := time.Now()
	status := models.StatusPending
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, public_id, category, incident_date, city, state, neighborhood, narrative, status, priority, evidence, notes, created_at, updated_at FROM reports WHERE 1=1 AND status = $1 ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs(status).
		WillReturnRows(reportRows(now))

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports WHERE 1=1 AND status = $1")).
		WithArgs(status).
		WillReturnRows(countRows)

	reports, total, err := repo.List(context.Background(), models.ReportFilter{Status: &status})
	require.NoError(t, err)
	assert.Len(t, reports, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusWithNotes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	notes := "escalated to counselor"
	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET status = $2, notes = $3, updated_at = $4 WHERE id = $1")).
		WithArgs("r1", models.StatusReviewing, notes, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "r1", models.StatusReviewing, &notes)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusWithoutNotes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE reports SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("r1", models.StatusResolved, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), "r1", models.StatusResolved, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteReportNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec("DELETE FROM reports").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatistics(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery("SELECT status AS key").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("pending", 2).AddRow("resolved", 1))
	mock.ExpectQuery("SELECT category AS key").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("physical", 3))
	mock.ExpectQuery("SELECT priority AS key").
		WillReturnRows(sqlmock.NewRows([]string{"key", "count"}).AddRow("urgent", 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM reports WHERE created_at >= $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	stats, err := repo.Statistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.ByStatus["pending"])
	assert.Equal(t, 3, stats.ByCategory["physical"])
	assert.Equal(t, 1, stats.CreatedLast24h)
	assert.NoError(t, mock.ExpectationsWereMet())
}
