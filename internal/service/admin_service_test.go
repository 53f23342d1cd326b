package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/safevoice-app/safevoice-api/internal/dto"
	"github.com/safevoice-app/safevoice-api/internal/models"
	appErrors "github.com/safevoice-app/safevoice-api/pkg/errors"
)

type mockInviteRepo struct {
	invites map[string]*models.AdminInvite
	resets  map[string]*models.PasswordReset
	deleted []string
}

func newMockInviteRepo() *mockInviteRepo {
	return &mockInviteRepo{
		invites: make(map[string]*models.AdminInvite),
		resets:  make(map[string]*models.PasswordReset),
	}
}

func (m *mockInviteRepo) CreateInvite(ctx context.Context, invite *models.AdminInvite) error {
	if invite.ID == "" {
		invite.ID = "i" + invite.Token[:4]
	}
	m.invites[invite.Token] = invite
	return nil
}

func (m *mockInviteRepo) FindInviteByToken(ctx context.Context, token string) (*models.AdminInvite, error) {
	invite, ok := m.invites[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *invite
	return &copied, nil
}

func (m *mockInviteRepo) ListInvites(ctx context.Context) ([]models.AdminInvite, error) {
	var out []models.AdminInvite
	for _, invite := range m.invites {
		out = append(out, *invite)
	}
	return out, nil
}

func (m *mockInviteRepo) MarkInviteUsed(ctx context.Context, id string, usedAt time.Time) error {
	for _, invite := range m.invites {
		if invite.ID == id {
			if invite.Used {
				return sql.ErrNoRows
			}
			invite.Used = true
			invite.UsedAt = &usedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockInviteRepo) DeleteInvite(ctx context.Context, id string) error {
	for token, invite := range m.invites {
		if invite.ID == id {
			delete(m.invites, token)
			m.deleted = append(m.deleted, id)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *mockInviteRepo) CreateReset(ctx context.Context, reset *models.PasswordReset) error {
	if reset.ID == "" {
		reset.ID = "p" + reset.Token[:4]
	}
	m.resets[reset.Token] = reset
	return nil
}

func (m *mockInviteRepo) FindResetByToken(ctx context.Context, token string) (*models.PasswordReset, error) {
	reset, ok := m.resets[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reset
	return &copied, nil
}

func (m *mockInviteRepo) MarkResetUsed(ctx context.Context, id string, usedAt time.Time) error {
	for _, reset := range m.resets {
		if reset.ID == id {
			if reset.Used {
				return sql.ErrNoRows
			}
			reset.Used = true
			reset.UsedAt = &usedAt
			return nil
		}
	}
	return sql.ErrNoRows
}

func newAdminService(users *mockUserRepo, invites *mockInviteRepo, auditRepo *mockAuditRepo) *AdminService {
	audit := NewAuditService(auditRepo, zap.NewNop())
	return NewAdminService(users, invites, audit, nil, validator.New(), zap.NewNop(), AdminConfig{
		InviteTTL: 24 * time.Hour,
		ResetTTL:  24 * time.Hour,
	})
}

func superAdmin() models.Actor {
	return models.Actor{ID: "root", Email: "root@example.com", Role: models.RoleSuperAdmin}
}

func TestCreateInvite(t *testing.T) {
	invites := newMockInviteRepo()
	auditRepo := &mockAuditRepo{}
	svc := newAdminService(&mockUserRepo{}, invites, auditRepo)

	invite, err := svc.CreateInvite(context.Background(), superAdmin(), dto.CreateInviteRequest{Email: "New.Admin@Example.com"})
	require.NoError(t, err)
	assert.Equal(t, "new.admin@example.com", invite.Email)
	assert.NotEmpty(t, invite.Token)
	assert.Equal(t, "root@example.com", invite.CreatedBy)
	assert.True(t, invite.ExpiresAt.After(time.Now()))

	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, models.AuditActionInviteCreate, auditRepo.entries[0].Action)
}

func TestCreateInviteRefusesExistingAccount(t *testing.T) {
	users := &mockUserRepo{userByEmail: &models.AdminUser{ID: "u1", Email: "taken@example.com"}}
	svc := newAdminService(users, newMockInviteRepo(), &mockAuditRepo{})

	_, err := svc.CreateInvite(context.Background(), superAdmin(), dto.CreateInviteRequest{Email: "taken@example.com"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRedeemInviteCreatesAdminAccount(t *testing.T) {
	invites := newMockInviteRepo()
	users := &mockUserRepo{}
	svc := newAdminService(users, invites, &mockAuditRepo{})

	invite, err := svc.CreateInvite(context.Background(), superAdmin(), dto.CreateInviteRequest{Email: "new@example.com"})
	require.NoError(t, err)

	user, err := svc.RedeemInvite(context.Background(), dto.RedeemInviteRequest{Token: invite.Token, Password: "password123"}, models.Actor{IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", user.Email)
	assert.Equal(t, models.RoleAdmin, user.Role)
	assert.True(t, user.Active)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
	require.Len(t, users.created, 1)
}

func TestRedeemInviteIsOneShot(t *testing.T) {
	invites := newMockInviteRepo()
	svc := newAdminService(&mockUserRepo{}, invites, &mockAuditRepo{})

	invite, err := svc.CreateInvite(context.Background(), superAdmin(), dto.CreateInviteRequest{Email: "new@example.com"})
	require.NoError(t, err)

	req := dto.RedeemInviteRequest{Token: invite.Token, Password: "password123"}
	_, err = svc.RedeemInvite(context.Background(), req, models.Actor{})
	require.NoError(t, err)

	_, err = svc.RedeemInvite(context.Background(), req, models.Actor{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTokenUsed.Code, appErr.Code)
}

func TestValidateInviteExpired(t *testing.T) {
	invites := newMockInviteRepo()
	svc := newAdminService(&mockUserRepo{}, invites, &mockAuditRepo{})

	invite, err := svc.CreateInvite(context.Background(), superAdmin(), dto.CreateInviteRequest{Email: "new@example.com"})
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(25 * time.Hour) }
	_, err = svc.ValidateInvite(context.Background(), invite.Token)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTokenExpired.Code, appErr.Code)
}

func TestValidateInviteUnknownToken(t *testing.T) {
	svc := newAdminService(&mockUserRepo{}, newMockInviteRepo(), &mockAuditRepo{})

	_, err := svc.ValidateInvite(context.Background(), "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDeactivateUserRefusesSelf(t *testing.T) {
	svc := newAdminService(&mockUserRepo{}, newMockInviteRepo(), &mockAuditRepo{})

	err := svc.DeactivateUser(context.Background(), superAdmin(), "root")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDeactivateUser(t *testing.T) {
	users := &mockUserRepo{userByID: &models.AdminUser{ID: "u2", Email: "other@example.com"}}
	auditRepo := &mockAuditRepo{}
	svc := newAdminService(users, newMockInviteRepo(), auditRepo)

	err := svc.DeactivateUser(context.Background(), superAdmin(), "u2")
	require.NoError(t, err)
	assert.Equal(t, []string{"u2"}, users.deactivated)
	require.Len(t, auditRepo.entries, 1)
	assert.Equal(t, models.AuditActionUserUpdate, auditRepo.entries[0].Action)
}

func TestDeleteUserRefusesSelf(t *testing.T) {
	svc := newAdminService(&mockUserRepo{}, newMockInviteRepo(), &mockAuditRepo{})

	err := svc.DeleteUser(context.Background(), superAdmin(), "root")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCreateResetRequiresExistingAccount(t *testing.T) {
	svc := newAdminService(&mockUserRepo{}, newMockInviteRepo(), &mockAuditRepo{})

	_, err := svc.CreateReset(context.Background(), superAdmin(), dto.CreateResetRequest{Email: "ghost@example.com"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestRedeemResetRotatesPassword(t *testing.T) {
	oldHash, _ := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.MinCost)
	user := &models.AdminUser{ID: "u1", Email: "admin@example.com", PasswordHash: string(oldHash), Active: true}
	users := &mockUserRepo{userByEmail: user}
	invites := newMockInviteRepo()
	svc := newAdminService(users, invites, &mockAuditRepo{})

	reset, err := svc.CreateReset(context.Background(), superAdmin(), dto.CreateResetRequest{Email: "admin@example.com"})
	require.NoError(t, err)

	err = svc.RedeemReset(context.Background(), dto.RedeemResetRequest{Token: reset.Token, NewPassword: "newpassword"}, models.Actor{})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("newpassword")))

	// second redemption fails, the token is burned
	err = svc.RedeemReset(context.Background(), dto.RedeemResetRequest{Token: reset.Token, NewPassword: "another1"}, models.Actor{})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrTokenUsed.Code, appErr.Code)
}
