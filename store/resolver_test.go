package store

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	anyDocumentSQL    = `SELECT collection_id, data FROM public.documents WHERE document_id = $1 ORDER BY collection_id ASC, id ASC LIMIT 1;`
	collectionNameSQL = `SELECT name FROM public.collections WHERE id = $1;`
)

func TestResolveReference(t *testing.T) {
	s, mock := newTestStore(t)
	resolver := NewRefResolver(s)

	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("sch1").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "data"}).
			AddRow(3, []byte(`{"name":"Springfield High"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(collectionNameSQL)).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("schools"))

	payload, found := resolver.ResolveReference(context.Background(), "sch1")
	require.True(t, found)
	assert.Equal(t, map[string]interface{}{
		"name":        "Springfield High",
		"_collection": "schools",
	}, payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReferenceMiss(t *testing.T) {
	s, mock := newTestStore(t)
	resolver := NewRefResolver(s)

	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "data"}))

	_, found := resolver.ResolveReference(context.Background(), "missing")
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReferenceFailsOpenOnStorageError(t *testing.T) {
	s, mock := newTestStore(t)
	resolver := NewRefResolver(s)

	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("sch1").
		WillReturnError(fmt.Errorf("connection refused"))

	// a storage error is downgraded to a miss, never propagated
	_, found := resolver.ResolveReference(context.Background(), "sch1")
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReferenceNonObjectData(t *testing.T) {
	s, mock := newTestStore(t)
	resolver := NewRefResolver(s)

	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("scalar").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "data"}).
			AddRow(3, []byte(`"just a string"`)))

	_, found := resolver.ResolveReference(context.Background(), "scalar")
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReferenceNullData(t *testing.T) {
	s, mock := newTestStore(t)
	resolver := NewRefResolver(s)

	// null unmarshals into a nil map without error and must not be annotated
	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("nulldoc").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "data"}).
			AddRow(3, []byte(`null`)))

	_, found := resolver.ResolveReference(context.Background(), "nulldoc")
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveReferenceWithoutCollectionName(t *testing.T) {
	s, mock := newTestStore(t)
	resolver := NewRefResolver(s)

	mock.ExpectQuery(regexp.QuoteMeta(anyDocumentSQL)).
		WithArgs("orphan").
		WillReturnRows(sqlmock.NewRows([]string{"collection_id", "data"}).
			AddRow(9, []byte(`{"name":"X"}`)))
	mock.ExpectQuery(regexp.QuoteMeta(collectionNameSQL)).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"name"}))

	payload, found := resolver.ResolveReference(context.Background(), "orphan")
	require.True(t, found)
	_, hasAnnotation := payload["_collection"]
	assert.False(t, hasAnnotation)
	assert.NoError(t, mock.ExpectationsWereMet())
}
