package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbase-tech/docbase/cache"
	"github.com/docbase-tech/docbase/core/csql"
	"github.com/docbase-tech/docbase/core/registry"
)

func TestMaintenanceMode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	memory := cache.NewMemory(cache.DefaultConfig())
	t.Cleanup(func() { memory.Close() })

	mock.ExpectExec(`CREATE table IF NOT EXISTS`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	dbHandle := &csql.DB{DB: db, Schema: "public"}
	reg := registry.New(dbHandle)

	router := mux.NewRouter()
	New(&Builder{
		DB:        dbHandle,
		Router:    router,
		JWTSecret: "test-secret",
		Cache:     memory,
		Registry:  &reg,
	})

	// flag set: the database API answers 503 before authentication
	mock.ExpectQuery(`SELECT value, timestamp FROM`).
		WithArgs("_ops_:maintenance").
		WillReturnRows(sqlmock.NewRows([]string{"value", "timestamp"}).
			AddRow([]byte(`true`), time.Now()))

	recorder := doJSON(router, http.MethodGet, "/api/database/collections", "",
		map[string]string{"X-API-Key": "dbk_valid"})
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
	assert.Equal(t, "service is in maintenance mode, try again later", decodeBody(t, recorder)["message"])

	// flag clear: the request proceeds to key authentication
	mock.ExpectQuery(`SELECT value, timestamp FROM`).
		WithArgs("_ops_:maintenance").
		WillReturnRows(sqlmock.NewRows([]string{"value", "timestamp"}))
	mock.ExpectQuery(`SELECT ak\.id, ak\.project_id`).
		WithArgs("dbk_valid").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "permissions", "user_id", "name"}))

	recorder = doJSON(router, http.MethodGet, "/api/database/collections", "",
		map[string]string{"X-API-Key": "dbk_valid"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	// console routes stay reachable during maintenance
	recorder = doJSON(router, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
