package access

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbase-tech/docbase/core/csql"
)

func TestIssueAndParseToken(t *testing.T) {
	service := NewTokenService("test-secret")

	token, err := service.IssueToken(7, "jo@example.com")
	require.NoError(t, err)

	user, err := service.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), user.ID)
	assert.Equal(t, "jo@example.com", user.Email)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenService("secret-a").IssueToken(7, "jo@example.com")
	require.NoError(t, err)

	_, err = NewTokenService("secret-b").ParseToken(token)
	assert.Error(t, err)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	service := NewTokenService("test-secret")
	service.lifetime = -time.Minute

	token, err := service.IssueToken(7, "jo@example.com")
	require.NoError(t, err)

	_, err = service.ParseToken(token)
	assert.Error(t, err)
}

func TestTokenMiddleware(t *testing.T) {
	service := NewTokenService("test-secret")
	handler := service.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, "jo@example.com", user.Email)
		w.WriteHeader(http.StatusOK)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/projects", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	token, err := service.IssueToken(7, "jo@example.com")
	require.NoError(t, err)
	request := httptest.NewRequest(http.MethodGet, "/api/projects", nil)
	request.Header.Set("Authorization", "Bearer "+token)

	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", hash)
	assert.True(t, CheckPassword(hash, "hunter2hunter2"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestKeyDetailsPermissions(t *testing.T) {
	assert.True(t, KeyDetails{Permissions: "read,write"}.HasWrite())
	assert.True(t, KeyDetails{Permissions: "read,write"}.HasRead())
	assert.False(t, KeyDetails{Permissions: "read"}.HasWrite())
	assert.True(t, KeyDetails{Permissions: "read"}.HasRead())
	assert.False(t, KeyDetails{Permissions: ""}.HasRead())
}

func TestValidPermissions(t *testing.T) {
	assert.True(t, ValidPermissions("read"))
	assert.True(t, ValidPermissions("write"))
	assert.True(t, ValidPermissions("read,write"))
	assert.False(t, ValidPermissions("read, write"))
	assert.False(t, ValidPermissions(""))
	assert.False(t, ValidPermissions("admin"))
	assert.False(t, ValidPermissions("read,admin"))
}

func TestKeyFromRequest(t *testing.T) {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", KeyFromRequest(request))

	request = httptest.NewRequest(http.MethodGet, "/?api_key=from-query", nil)
	assert.Equal(t, "from-query", KeyFromRequest(request))

	// the header wins over the query parameter
	request.Header.Set("X-API-Key", "from-header")
	assert.Equal(t, "from-header", KeyFromRequest(request))

	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer from-bearer")
	assert.Equal(t, "from-bearer", KeyFromRequest(request))
}

func TestKeyMiddleware(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	authenticator := NewKeyAuthenticator(&csql.DB{DB: db, Schema: "public"})
	handler := authenticator.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		details, ok := KeyDetailsFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, int64(3), details.ProjectID)
		w.WriteHeader(http.StatusOK)
	}))

	keyQuery := `SELECT ak.id, ak.project_id, ak.permissions, p.user_id, p.name FROM public.api_keys ak JOIN public.projects p ON ak.project_id = p.id WHERE ak.api_key = $1;`

	mock.ExpectQuery(regexp.QuoteMeta(keyQuery)).
		WithArgs("dbk_valid").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "permissions", "user_id", "name"}).
			AddRow(1, 3, "read,write", 7, "school-app"))

	request := httptest.NewRequest(http.MethodGet, "/api/database/collections", nil)
	request.Header.Set("X-API-Key", "dbk_valid")
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusOK, recorder.Code)

	mock.ExpectQuery(regexp.QuoteMeta(keyQuery)).
		WithArgs("dbk_bogus").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "permissions", "user_id", "name"}))

	request = httptest.NewRequest(http.MethodGet, "/api/database/collections", nil)
	request.Header.Set("X-API-Key", "dbk_bogus")
	recorder = httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.JSONEq(t, `{"error":true,"message":"invalid API key"}`, recorder.Body.String())

	assert.NoError(t, mock.ExpectationsWereMet())
}
