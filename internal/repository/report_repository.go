package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/safevoice-app/safevoice-api/internal/models"
)

const reportColumns = "id, public_id, category, incident_date, city, state, neighborhood, narrative, status, priority, evidence, notes, created_at, updated_at"

// ReportRepository provides database access for anonymous reports.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository creates a new instance of ReportRepository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// IsUniqueViolation reports whether the error is a Postgres duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// NextTrackingSequence atomically reserves the next tracking sequence
// number. A single counter row guarantees two concurrent submissions can
// never observe the same value.
func (r *ReportRepository) NextTrackingSequence(ctx context.Context) (int64, error) {
	const query = `UPDATE tracking_counters SET value = value + 1 WHERE name = 'reports' RETURNING value`
	var seq int64
	if err := r.db.GetContext(ctx, &seq, query); err != nil {
		return 0, fmt.Errorf("next tracking sequence: %w", err)
	}
	return seq, nil
}

// Create inserts a new report row.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if report.CreatedAt.IsZero() {
		report.CreatedAt = now
	}
	report.UpdatedAt = now

	const query = `INSERT INTO reports (id, public_id, category, incident_date, city, state, neighborhood, narrative, status, priority, evidence, notes, created_at, updated_at)
		VALUES (:id, :public_id, :category, :incident_date, :city, :state, :neighborhood, :narrative, :status, :priority, :evidence, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// FindByID returns a report by storage identifier.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	query := fmt.Sprintf("SELECT %s FROM reports WHERE id = $1 LIMIT 1", reportColumns)
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report by id: %w", err)
	}
	return &report, nil
}

// FindByPublicID returns a report by its tracking code.
func (r *ReportRepository) FindByPublicID(ctx context.Context, publicID string) (*models.Report, error) {
	query := fmt.Sprintf("SELECT %s FROM reports WHERE public_id = $1 LIMIT 1", reportColumns)
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, publicID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find report by public id: %w", err)
	}
	return &report, nil
}

// List returns reports matching the filter, newest first, with total count.
func (r *ReportRepository) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error) {
	baseQuery := `FROM reports WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)+1))
		args = append(args, *filter.Category)
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", len(args)+1))
		args = append(args, *filter.Priority)
	}
	if filter.Search != "" {
		n := len(args) + 1
		conditions = append(conditions, fmt.Sprintf("(LOWER(narrative) LIKE $%d OR LOWER(category) LIKE $%d OR LOWER(city) LIKE $%d OR LOWER(state) LIKE $%d OR LOWER(public_id) LIKE $%d)", n, n, n, n, n))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.CreatedFrom != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		conditions = append(conditions, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.CreatedTo)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", reportColumns, baseQuery, pageSize, offset)

	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list reports: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count reports: %w", err)
	}

	return reports, total, nil
}

// UpdateStatus changes the triage status and optionally stores notes in
// the same write.
func (r *ReportRepository) UpdateStatus(ctx context.Context, id string, status models.ReportStatus, notes *string) error {
	now := time.Now().UTC()
	if notes != nil {
		const query = `UPDATE reports SET status = $2, notes = $3, updated_at = $4 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, id, status, *notes, now); err != nil {
			return fmt.Errorf("update report status: %w", err)
		}
		return nil
	}
	const query = `UPDATE reports SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, now); err != nil {
		return fmt.Errorf("update report status: %w", err)
	}
	return nil
}

// UpdatePriority changes the urgency tier.
func (r *ReportRepository) UpdatePriority(ctx context.Context, id string, priority models.ReportPriority) error {
	const query = `UPDATE reports SET priority = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, priority, time.Now().UTC()); err != nil {
		return fmt.Errorf("update report priority: %w", err)
	}
	return nil
}

// UpdateNotes replaces the administrator notes wholesale. An empty string
// clears them.
func (r *ReportRepository) UpdateNotes(ctx context.Context, id string, notes string) error {
	const query = `UPDATE reports SET notes = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, notes, time.Now().UTC()); err != nil {
		return fmt.Errorf("update report notes: %w", err)
	}
	return nil
}

// Delete removes a report permanently.
func (r *ReportRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM reports WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Statistics recomputes the aggregate snapshot from current rows.
func (r *ReportRepository) Statistics(ctx context.Context) (*models.ReportStatistics, error) {
	stats := &models.ReportStatistics{
		ByStatus:    make(map[string]int),
		ByCategory:  make(map[string]int),
		ByPriority:  make(map[string]int),
		GeneratedAt: time.Now().UTC(),
	}

	if err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM reports`); err != nil {
		return nil, fmt.Errorf("count reports: %w", err)
	}

	type bucket struct {
		Key   string `db:"key"`
		Count int    `db:"count"`
	}

	groupings := []struct {
		query string
		dest  map[string]int
	}{
		{`SELECT status AS key, COUNT(*) AS count FROM reports GROUP BY status`, stats.ByStatus},
		{`SELECT category AS key, COUNT(*) AS count FROM reports GROUP BY category`, stats.ByCategory},
		{`SELECT priority AS key, COUNT(*) AS count FROM reports GROUP BY priority`, stats.ByPriority},
	}
	for _, g := range groupings {
		var rows []bucket
		if err := r.db.SelectContext(ctx, &rows, g.query); err != nil {
			return nil, fmt.Errorf("aggregate reports: %w", err)
		}
		for _, row := range rows {
			g.dest[row.Key] = row.Count
		}
	}

	const recentQuery = `SELECT COUNT(*) FROM reports WHERE created_at >= $1`
	since := time.Now().UTC().Add(-24 * time.Hour)
	if err := r.db.GetContext(ctx, &stats.CreatedLast24h, recentQuery, since); err != nil {
		return nil, fmt.Errorf("count recent reports: %w", err)
	}

	return stats, nil
}
