package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/safevoice-app/safevoice-api/internal/models"
)

const inviteColumns = "id, email, token, expires_at, created_by, used, used_at, created_at"

// InviteRepository stores admin invites and password reset tokens. The two
// lifecycles are identical, so they share one accessor over two tables.
type InviteRepository struct {
	db *sqlx.DB
}

// NewInviteRepository creates a new instance of InviteRepository.
func NewInviteRepository(db *sqlx.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

// CreateInvite persists a new invite.
func (r *InviteRepository) CreateInvite(ctx context.Context, invite *models.AdminInvite) error {
	if invite.ID == "" {
		invite.ID = uuid.NewString()
	}
	invite.Email = strings.ToLower(invite.Email)
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO admin_invites (id, email, token, expires_at, created_by, used, used_at, created_at) VALUES (:id, :email, :token, :expires_at, :created_by, :used, :used_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invite); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create invite: %w", err)
	}
	return nil
}

// FindInviteByToken returns an invite by token value.
func (r *InviteRepository) FindInviteByToken(ctx context.Context, token string) (*models.AdminInvite, error) {
	query := fmt.Sprintf("SELECT %s FROM admin_invites WHERE token = $1 LIMIT 1", inviteColumns)
	var invite models.AdminInvite
	if err := r.db.GetContext(ctx, &invite, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find invite by token: %w", err)
	}
	return &invite, nil
}

// ListInvites returns all invites, newest first.
func (r *InviteRepository) ListInvites(ctx context.Context) ([]models.AdminInvite, error) {
	query := fmt.Sprintf("SELECT %s FROM admin_invites ORDER BY created_at DESC", inviteColumns)
	var invites []models.AdminInvite
	if err := r.db.SelectContext(ctx, &invites, query); err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return invites, nil
}

// MarkInviteUsed flips the one-shot used flag. The guard on used = FALSE
// makes concurrent redemptions lose cleanly.
func (r *InviteRepository) MarkInviteUsed(ctx context.Context, id string, usedAt time.Time) error {
	const query = `UPDATE admin_invites SET used = TRUE, used_at = $2 WHERE id = $1 AND used = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return fmt.Errorf("mark invite used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteInvite removes an invite permanently.
func (r *InviteRepository) DeleteInvite(ctx context.Context, id string) error {
	const query = `DELETE FROM admin_invites WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CreateReset persists a new password reset token.
func (r *InviteRepository) CreateReset(ctx context.Context, reset *models.PasswordReset) error {
	if reset.ID == "" {
		reset.ID = uuid.NewString()
	}
	reset.Email = strings.ToLower(reset.Email)
	if reset.CreatedAt.IsZero() {
		reset.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO password_resets (id, email, token, expires_at, created_by, used, used_at, created_at) VALUES (:id, :email, :token, :expires_at, :created_by, :used, :used_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, reset); err != nil {
		if IsUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

// FindResetByToken returns a password reset by token value.
func (r *InviteRepository) FindResetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	query := fmt.Sprintf("SELECT %s FROM password_resets WHERE token = $1 LIMIT 1", inviteColumns)
	var reset models.PasswordReset
	if err := r.db.GetContext(ctx, &reset, query, token); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find password reset by token: %w", err)
	}
	return &reset, nil
}

// MarkResetUsed flips the one-shot used flag on a password reset.
func (r *InviteRepository) MarkResetUsed(ctx context.Context, id string, usedAt time.Time) error {
	const query = `UPDATE password_resets SET used = TRUE, used_at = $2 WHERE id = $1 AND used = FALSE`
	res, err := r.db.ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
