package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/safevoice-app/safevoice-api/internal/repository"
	"github.com/safevoice-app/safevoice-api/internal/service"
)

func newAdminHandler(t *testing.T) (*AdminHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sdb := sqlx.NewDb(db, "sqlmock")
	users := repository.NewUserRepository(sdb)
	invites := repository.NewInviteRepository(sdb)
	svc := service.NewAdminService(users, invites, nil, nil, nil, zap.NewNop(), service.AdminConfig{
		InviteTTL: 24 * time.Hour,
		ResetTTL:  time.Hour,
	})
	return NewAdminHandler(svc, nil), mock
}

func inviteRow(expiresAt time.Time, used bool) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "token", "expires_at", "created_by", "used", "used_at", "created_at"}).
		AddRow("i1", "invitee@example.com", "tok123", expiresAt, "admin@example.com", used, nil, now)
}

func TestAdminHandlerValidateInvite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, mock := newAdminHandler(t)

	mock.ExpectQuery("SELECT (.+) FROM admin_invites WHERE token").
		WithArgs("tok123").
		WillReturnRows(inviteRow(time.Now().Add(time.Hour), false))

	c, w := newGinContext(http.MethodGet, "/admin/invites/validate/tok123", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok123"}}

	handler.ValidateInvite(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "invitee@example.com")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandlerValidateInviteExpired(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, mock := newAdminHandler(t)

	mock.ExpectQuery("SELECT (.+) FROM admin_invites WHERE token").
		WithArgs("tok123").
		WillReturnRows(inviteRow(time.Now().Add(-time.Hour), false))

	c, w := newGinContext(http.MethodGet, "/admin/invites/validate/tok123", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok123"}}

	handler.ValidateInvite(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_EXPIRED")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandlerRedeemInvite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, mock := newAdminHandler(t)

	mock.ExpectQuery("SELECT (.+) FROM admin_invites WHERE token").
		WithArgs("tok123").
		WillReturnRows(inviteRow(time.Now().Add(time.Hour), false))
	mock.ExpectExec("UPDATE admin_invites SET used").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO admin_users").
		WillReturnResult(sqlmock.NewResult(1, 1))

	payload, _ := json.Marshal(map[string]string{
		"token":    "tok123",
		"password": "longpassword1",
	})
	c, w := newGinContext(http.MethodPost, "/admin/invites/redeem", payload)

	handler.RedeemInvite(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "invitee@example.com")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandlerRedeemInviteAlreadyUsed(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, mock := newAdminHandler(t)

	mock.ExpectQuery("SELECT (.+) FROM admin_invites WHERE token").
		WithArgs("tok123").
		WillReturnRows(inviteRow(time.Now().Add(time.Hour), true))

	payload, _ := json.Marshal(map[string]string{
		"token":    "tok123",
		"password": "longpassword1",
	})
	c, w := newGinContext(http.MethodPost, "/admin/invites/redeem", payload)

	handler.RedeemInvite(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "TOKEN_ALREADY_USED")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminHandlerListUsers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, mock := newAdminHandler(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM admin_users").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "active", "last_login", "created_at", "updated_at"}).
			AddRow("u1", "admin@example.com", "hash", "ADMIN", true, now, now, now))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	c, w := newGinContext(http.MethodGet, "/admin/users", nil)

	handler.ListUsers(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@example.com")
	assert.NotContains(t, w.Body.String(), "password_hash")
	assert.NoError(t, mock.ExpectationsWereMet())
}
