package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/safevoice-app/safevoice-api/internal/dto"
	"github.com/safevoice-app/safevoice-api/internal/models"
	"github.com/safevoice-app/safevoice-api/internal/repository"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
)

type adminUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.AdminUser, error)
	FindByID(ctx context.Context, id string) (*models.AdminUser, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.AdminUser, int, error)
	Create(ctx context.Context, user *models.AdminUser) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	SetActive(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type inviteRepository interface {
	CreateInvite(ctx context.Context, invite *models.AdminInvite) error
	FindInviteByToken(ctx context.Context, token string) (*models.AdminInvite, error)
	ListInvites(ctx context.Context) ([]models.AdminInvite, error)
	MarkInviteUsed(ctx context.Context, id string, usedAt time.Time) error
	DeleteInvite(ctx context.Context, id string) error
	CreateReset(ctx context.Context, reset *models.PasswordReset) error
	FindResetByToken(ctx context.Context, token string) (*models.PasswordReset, error)
	MarkResetUsed(ctx context.Context, id string, usedAt time.Time) error
}

// AdminConfig tunes the invite and reset lifecycles.
type AdminConfig struct {
	InviteTTL time.Duration
	ResetTTL  time.Duration
}

// AdminService manages back-office accounts, invites and password resets.
type AdminService struct {
	users     adminUserRepository
	invites   inviteRepository
	audit     *AuditService
	auth      *AuthService
	validator *validator.Validate
	logger    *zap.Logger
	config    AdminConfig
	now       func() time.Time
}

// NewAdminService constructs an AdminService.
func NewAdminService(users adminUserRepository, invites inviteRepository, audit *AuditService, auth *AuthService, validate *validator.Validate, logger *zap.Logger, config AdminConfig) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.InviteTTL <= 0 {
		config.InviteTTL = 24 * time.Hour
	}
	if config.ResetTTL <= 0 {
		config.ResetTTL = 24 * time.Hour
	}
	return &AdminService{
		users:     users,
		invites:   invites,
		audit:     audit,
		auth:      auth,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ListUsers returns admin accounts with pagination.
func (s *AdminService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.AdminUser, *models.Pagination, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list accounts")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// DeactivateUser marks an account inactive. An administrator can never
// deactivate their own account.
func (s *AdminService) DeactivateUser(ctx context.Context, actor models.Actor, id string) error {
	if id == actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot deactivate your own account")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if err := s.users.SetActive(ctx, id, false); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate account")
	}
	if s.auth != nil {
		s.auth.InvalidateUserCache(ctx, user.Email)
	}

	s.audit.Record(ctx, actor, models.AuditActionUserUpdate,
		fmt.Sprintf("deactivated account %s", user.Email), nil)
	return nil
}

// DeleteUser removes an account permanently. Self-deletion is refused.
func (s *AdminService) DeleteUser(ctx context.Context, actor models.Actor, id string) error {
	if id == actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "cannot delete your own account")
	}
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "account not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete account")
	}
	if s.auth != nil {
		s.auth.InvalidateUserCache(ctx, user.Email)
	}

	s.audit.Record(ctx, actor, models.AuditActionUserDelete,
		fmt.Sprintf("deleted account %s", user.Email), nil)
	return nil
}

// CreateInvite issues a one-shot invite token for a new admin account.
func (s *AdminService) CreateInvite(ctx context.Context, actor models.Actor, req dto.CreateInviteRequest) (*models.AdminInvite, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invite payload")
	}

	email := strings.ToLower(req.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	token, err := generateToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate invite token")
	}

	invite := &models.AdminInvite{
		Email:     email,
		Token:     token,
		ExpiresAt: s.now().Add(s.config.InviteTTL),
		CreatedBy: actor.Email,
	}
	if err := s.invites.CreateInvite(ctx, invite); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an invite for this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store invite")
	}

	s.audit.Record(ctx, actor, models.AuditActionInviteCreate,
		fmt.Sprintf("invited %s", email), nil)
	return invite, nil
}

// ListInvites returns all invites for super-admin review.
func (s *AdminService) ListInvites(ctx context.Context) ([]models.AdminInvite, error) {
	invites, err := s.invites.ListInvites(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invites")
	}
	return invites, nil
}

// DeleteInvite revokes an unredeemed invite.
func (s *AdminService) DeleteInvite(ctx context.Context, actor models.Actor, id string) error {
	if err := s.invites.DeleteInvite(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "invite not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete invite")
	}
	s.audit.Record(ctx, actor, models.AuditActionInviteDelete,
		fmt.Sprintf("deleted invite %s", id), nil)
	return nil
}

// ValidateInvite checks a token and reports expiry and reuse as distinct
// conditions.
func (s *AdminService) ValidateInvite(ctx context.Context, token string) (*models.AdminInvite, error) {
	invite, err := s.invites.FindInviteByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invite not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load invite")
	}
	if invite.Used {
		return nil, appErrors.Clone(appErrors.ErrTokenUsed, "invite has already been used")
	}
	if s.now().After(invite.ExpiresAt) {
		return nil, appErrors.Clone(appErrors.ErrTokenExpired, "invite is expired")
	}
	return invite, nil
}

// RedeemInvite creates the admin account and burns the invite. The
// transition is one-shot; a second redemption fails.
func (s *AdminService) RedeemInvite(ctx context.Context, req dto.RedeemInviteRequest, meta models.Actor) (*models.AdminUser, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid redemption payload")
	}

	invite, err := s.ValidateInvite(ctx, req.Token)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	// burn the invite first; the used = FALSE guard makes a concurrent
	// double redemption lose here instead of creating two accounts
	if err := s.invites.MarkInviteUsed(ctx, invite.ID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrTokenUsed, "invite has already been used")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to redeem invite")
	}

	user := &models.AdminUser{
		Email:        invite.Email,
		PasswordHash: string(hash),
		Role:         models.RoleAdmin,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "an account with this email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}

	s.audit.Record(ctx, models.Actor{Email: invite.Email, IP: meta.IP, UserAgent: meta.UserAgent},
		models.AuditActionInviteRedeem, fmt.Sprintf("invite redeemed, account %s created", invite.Email), nil)

	return user, nil
}

// CreateReset issues a one-shot password reset token for an existing account.
func (s *AdminService) CreateReset(ctx context.Context, actor models.Actor, req dto.CreateResetRequest) (*models.PasswordReset, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}

	email := strings.ToLower(req.Email)
	if _, err := s.users.FindByEmail(ctx, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no account with this email")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	token, err := generateToken()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate reset token")
	}

	reset := &models.PasswordReset{
		Email:     email,
		Token:     token,
		ExpiresAt: s.now().Add(s.config.ResetTTL),
		CreatedBy: actor.Email,
	}
	if err := s.invites.CreateReset(ctx, reset); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset")
	}

	s.audit.Record(ctx, actor, models.AuditActionResetCreate,
		fmt.Sprintf("password reset issued for %s", email), nil)
	return reset, nil
}

// RedeemReset overwrites the target account's password hash and burns the
// token. Mirrors the invite lifecycle exactly.
func (s *AdminService) RedeemReset(ctx context.Context, req dto.RedeemResetRequest, meta models.Actor) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset payload")
	}

	reset, err := s.invites.FindResetByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "reset token not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load reset")
	}
	if reset.Used {
		return appErrors.Clone(appErrors.ErrTokenUsed, "reset token has already been used")
	}
	if s.now().After(reset.ExpiresAt) {
		return appErrors.Clone(appErrors.ErrTokenExpired, "reset token is expired")
	}

	user, err := s.users.FindByEmail(ctx, reset.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "target account no longer exists")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.invites.MarkResetUsed(ctx, reset.ID, s.now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrTokenUsed, "reset token has already been used")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to redeem reset")
	}

	if err := s.users.UpdatePassword(ctx, user.ID, string(hash), s.now()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	if s.auth != nil {
		s.auth.InvalidateUserCache(ctx, user.Email)
	}

	s.audit.Record(ctx, models.Actor{Email: user.Email, IP: meta.IP, UserAgent: meta.UserAgent},
		models.AuditActionResetRedeem, "password reset redeemed", nil)
	return nil
}
