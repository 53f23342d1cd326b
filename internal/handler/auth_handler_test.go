package handler

import (
	"encoding/json"
	"net/http"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/safevoice-app/safevoice-api/internal/middleware"
	"github.com/safevoice-app/safevoice-api/internal/models"
	"github.com/safevoice-app/safevoice-api/internal/repository"
	"github.com/safevoice-app/safevoice-api/internal/service"
)

func newAuthHandler(t *testing.T) (*AuthHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewUserRepository(sqlx.NewDb(db, "sqlmock"))
	svc := service.NewAuthService(repo, nil, nil, nil, zap.NewNop(), service.AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "safevoice-test",
	})
	return NewAuthHandler(svc), mock
}

func adminUserRow(t *testing.T, password string) *sqlmock.Rows {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "admin@example.com", string(hash), string(models.RoleAdmin), true, now, now, now)
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, mock := newAuthHandler(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, role, active, last_login, created_at, updated_at FROM admin_users WHERE email = $1 LIMIT 1")).
		WithArgs("admin@example.com").
		WillReturnRows(adminUserRow(t, "open-sesame"))
	mock.ExpectExec("UPDATE admin_users SET last_login").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payload, _ := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": "open-sesame",
	})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)

	handler.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"token"`)
	assert.Contains(t, w.Body.String(), "admin@example.com")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandlerLoginWrongPassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, mock := newAuthHandler(t)

	mock.ExpectQuery("SELECT (.+) FROM admin_users WHERE email").
		WillReturnRows(adminUserRow(t, "open-sesame"))

	payload, _ := json.Marshal(map[string]string{
		"email":    "admin@example.com",
		"password": "not-the-password",
	})
	c, w := newGinContext(http.MethodPost, "/auth/login", payload)

	handler.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthHandlerLoginMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newAuthHandler(t)

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte("{"))

	handler.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestAuthHandlerLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newAuthHandler(t)

	c, w := newGinContext(http.MethodPost, "/auth/logout", nil)
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.Logout(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "logged out")
}

func TestAuthHandlerChangePassword(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, mock := newAuthHandler(t)

	mock.ExpectQuery("SELECT (.+) FROM admin_users WHERE id").
		WithArgs("u1").
		WillReturnRows(adminUserRow(t, "open-sesame"))
	mock.ExpectExec("UPDATE admin_users SET password_hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payload, _ := json.Marshal(map[string]string{
		"old_password": "open-sesame",
		"new_password": "brand-new-secret",
	})
	c, w := newGinContext(http.MethodPost, "/auth/change-password", payload)
	c.Set(middleware.ContextUserKey, adminClaims())

	handler.ChangePassword(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "password updated")
	assert.NoError(t, mock.ExpectationsWereMet())
}
