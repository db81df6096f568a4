package api

import (
	"net/http"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	collectionInProjectSQL = `SELECT id FROM public.collections WHERE id = $1 AND project_id = $2;`
	documentSQL            = `SELECT id, collection_id, document_id, data, created_at, updated_at FROM public.documents WHERE collection_id = $1 AND document_id = $2;`
	anyDocumentSQL         = `SELECT collection_id, data FROM public.documents WHERE document_id = $1 ORDER BY collection_id ASC, id ASC LIMIT 1;`
	collectionNameSQL      = `SELECT name FROM public.collections WHERE id = $1;`
)

func expectCollectionInProject(mock sqlmock.Sqlmock, collectionID, projectID int64) {
	mock.ExpectQuery(regexp.QuoteMeta(collectionInProjectSQL)).
		WithArgs(collectionID, projectID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(collectionID))
}

// A student document referencing a school comes back with the school's
// data spliced in next to the reference field.
func TestGetDocumentResolvesReferences(t *testing.T) {
	_, mock, router := newTestBackend(t)

	expectKeyAuth(mock, "dbk_valid", 3, "read")
	expectCollectionInProject(mock, 7, 3)
	mock.ExpectQuery(regexp.QuoteMeta(documentSQL)).
		WithArgs(int64(7), "st1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "collection_id", "document_id", "data", "created_at", "updated_at"}).
			AddRow(1, 7, "st1", []byte(`{"name":"Alice","school_id":"sch1"}`), time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("sch1").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "data"}).
			AddRow(9, []byte(`{"name":"Springfield High"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(collectionNameSQL)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("schools"))

	recorder := doJSON(router, http.MethodGet, "/api/database/collections/7/documents/st1", "",
		map[string]string{"X-API-Key": "dbk_valid"})
	require.Equal(t, http.StatusOK, recorder.Code)

	document := decodeBody(t, recorder)["document"].(map[string]interface{})
	data := document["data"].(map[string]interface{})
	assert.Equal(t, "Alice", data["name"])
	assert.Equal(t, "sch1", data["school_id"])
	assert.Equal(t, map[string]interface{}{
		"name":        "Springfield High",
		"_collection": "schools",
	}, data["school_data"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentUnresolvedReferenceIsSilent(t *testing.T) {
	_, mock, router := newTestBackend(t)

	expectKeyAuth(mock, "dbk_valid", 3, "read")
	expectCollectionInProject(mock, 7, 3)
	mock.ExpectQuery(regexp.QuoteMeta(documentSQL)).
		WithArgs(int64(7), "st1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "collection_id", "document_id", "data", "created_at", "updated_at"}).
			AddRow(1, 7, "st1", []byte(`{"name":"Alice","school_id":"gone"}`), time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "data"}))

	recorder := doJSON(router, http.MethodGet, "/api/database/collections/7/documents/st1", "",
		map[string]string{"X-API-Key": "dbk_valid"})
	require.Equal(t, http.StatusOK, recorder.Code)

	data := decodeBody(t, recorder)["document"].(map[string]interface{})["data"].(map[string]interface{})
	assert.Equal(t, "gone", data["school_id"])
	_, spliced := data["school_data"]
	assert.False(t, spliced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListDocumentsExpandsEachElement(t *testing.T) {
	_, mock, router := newTestBackend(t)

	expectKeyAuth(mock, "dbk_valid", 3, "read")
	expectCollectionInProject(mock, 7, 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM public.documents WHERE collection_id = $1;`)).
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, collection_id, document_id, data, created_at, updated_at FROM public.documents WHERE collection_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`)).
		WithArgs(int64(7), 20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "collection_id", "document_id", "data", "created_at", "updated_at"}).
			AddRow(1, 7, "st1", []byte(`{"name":"Alice","school_id":"sch1"}`), time.Now(), time.Now()).
			AddRow(2, 7, "st2", []byte(`{"name":"Bob"}`), time.Now(), time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("sch1").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "data"}).
			AddRow(9, []byte(`{"name":"Springfield High"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(collectionNameSQL)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("schools"))

	recorder := doJSON(router, http.MethodGet, "/api/database/collections/7/documents", "",
		map[string]string{"X-API-Key": "dbk_valid"})
	require.Equal(t, http.StatusOK, recorder.Code)

	body := decodeBody(t, recorder)
	documents := body["documents"].([]interface{})
	require.Len(t, documents, 2)
	first := documents[0].(map[string]interface{})["data"].(map[string]interface{})
	assert.Contains(t, first, "school_data")
	second := documents[1].(map[string]interface{})["data"].(map[string]interface{})
	assert.NotContains(t, second, "school_data")

	p := body["pagination"].(map[string]interface{})
	assert.Equal(t, float64(2), p["total"])
	assert.Equal(t, float64(1), p["page"])
	assert.Equal(t, float64(20), p["limit"])
	assert.Equal(t, float64(1), p["pages"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentGeneratesIDAndBackfillsData(t *testing.T) {
	_, mock, router := newTestBackend(t)

	expectKeyAuth(mock, "dbk_valid", 3, "read,write")
	expectCollectionInProject(mock, 7, 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM public.documents WHERE collection_id = $1 AND document_id = $2;`)).
		WithArgs(int64(7), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO public.documents (collection_id, document_id, data) VALUES ($1, $2, $3) RETURNING id, created_at;`)).
		WithArgs(int64(7), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, time.Now()))

	recorder := doJSON(router, http.MethodPost, "/api/database/collections/7/documents",
		`{"data":{"name":"Alice"}}`, map[string]string{"X-API-Key": "dbk_valid"})
	require.Equal(t, http.StatusCreated, recorder.Code)

	document := decodeBody(t, recorder)["document"].(map[string]interface{})
	documentID := document["document_id"].(string)
	assert.Len(t, documentID, 24)
	data := document["data"].(map[string]interface{})
	assert.Equal(t, documentID, data["id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentValidation(t *testing.T) {
	_, mock, router := newTestBackend(t)
	headers := map[string]string{"X-API-Key": "dbk_valid"}

	expectKeyAuth(mock, "dbk_valid", 3, "read,write")
	expectCollectionInProject(mock, 7, 3)
	recorder := doJSON(router, http.MethodPost, "/api/database/collections/7/documents",
		`{"data":"not an object"}`, headers)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Equal(t, "document data is required and must be an object", decodeBody(t, recorder)["message"])

	expectKeyAuth(mock, "dbk_valid", 3, "read,write")
	expectCollectionInProject(mock, 7, 3)
	recorder = doJSON(router, http.MethodPost, "/api/database/collections/7/documents", `{}`, headers)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDocumentDuplicateID(t *testing.T) {
	_, mock, router := newTestBackend(t)

	expectKeyAuth(mock, "dbk_valid", 3, "read,write")
	expectCollectionInProject(mock, 7, 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM public.documents WHERE collection_id = $1 AND document_id = $2;`)).
		WithArgs(int64(7), "st1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	recorder := doJSON(router, http.MethodPost, "/api/database/collections/7/documents",
		`{"document_id":"st1","data":{"name":"Alice"}}`, map[string]string{"X-API-Key": "dbk_valid"})
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "document id already exists in this collection", decodeBody(t, recorder)["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A concurrent create can pass the exists check and still lose the insert
// to the unique constraint; that is a conflict, not an internal error.
func TestCreateDocumentConcurrentDuplicateID(t *testing.T) {
	_, mock, router := newTestBackend(t)

	expectKeyAuth(mock, "dbk_valid", 3, "read,write")
	expectCollectionInProject(mock, 7, 3)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id FROM public.documents WHERE collection_id = $1 AND document_id = $2;`)).
		WithArgs(int64(7), "st1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO public.documents (collection_id, document_id, data) VALUES ($1, $2, $3) RETURNING id, created_at;`)).
		WithArgs(int64(7), "st1", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	recorder := doJSON(router, http.MethodPost, "/api/database/collections/7/documents",
		`{"document_id":"st1","data":{"name":"Alice"}}`, map[string]string{"X-API-Key": "dbk_valid"})
	assert.Equal(t, http.StatusConflict, recorder.Code)
	assert.Equal(t, "document id already exists in this collection", decodeBody(t, recorder)["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAndDeleteMissingDocument(t *testing.T) {
	_, mock, router := newTestBackend(t)
	headers := map[string]string{"X-API-Key": "dbk_valid"}

	expectKeyAuth(mock, "dbk_valid", 3, "read,write")
	expectCollectionInProject(mock, 7, 3)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE public.documents SET data = $3, updated_at = now() WHERE collection_id = $1 AND document_id = $2;`)).
		WithArgs(int64(7), "gone", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	recorder := doJSON(router, http.MethodPut, "/api/database/collections/7/documents/gone",
		`{"data":{"name":"Alice"}}`, headers)
	assert.Equal(t, http.StatusNotFound, recorder.Code)

	expectKeyAuth(mock, "dbk_valid", 3, "read,write")
	expectCollectionInProject(mock, 7, 3)
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM public.documents WHERE collection_id = $1 AND document_id = $2;`)).
		WithArgs(int64(7), "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	recorder = doJSON(router, http.MethodDelete, "/api/database/collections/7/documents/gone", "", headers)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentWritesRequireWritePermission(t *testing.T) {
	_, mock, router := newTestBackend(t)
	headers := map[string]string{"X-API-Key": "dbk_readonly"}

	expectKeyAuth(mock, "dbk_readonly", 3, "read")
	recorder := doJSON(router, http.MethodPost, "/api/database/collections/7/documents",
		`{"data":{"name":"Alice"}}`, headers)
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	expectKeyAuth(mock, "dbk_readonly", 3, "read")
	recorder = doJSON(router, http.MethodDelete, "/api/database/collections/7/documents/st1", "", headers)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentInForeignCollection(t *testing.T) {
	_, mock, router := newTestBackend(t)

	expectKeyAuth(mock, "dbk_valid", 3, "read")
	mock.ExpectQuery(regexp.QuoteMeta(collectionInProjectSQL)).
		WithArgs(int64(99), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	recorder := doJSON(router, http.MethodGet, "/api/database/collections/99/documents/st1", "",
		map[string]string{"X-API-Key": "dbk_valid"})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
	assert.Equal(t, "collection not found or access denied", decodeBody(t, recorder)["message"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
