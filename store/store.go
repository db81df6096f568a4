/*Package store implements the relational persistence layer of docbase.

All entities live in a fixed postgres schema: users own projects, projects
own api keys, collections and files, collections own documents. Documents
carry a schema-less JSON payload in the data column; the document_id is
unique within its collection but not globally.
*/
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/lib/pq"

	"github.com/docbase-tech/docbase/core/csql"
)

// Store bundles the prepared query strings for the docbase schema.
type Store struct {
	db *csql.DB

	documentsQuery      string
	documentsCountQuery string
	documentQuery       string
	anyDocumentQuery    string
	collectionNameQuery string
	insertDocumentQuery string
	updateDocumentQuery string
	deleteDocumentQuery string
	documentExistsQuery string
}

// New creates a store on the given database. Call EnsureSchema once at
// service startup to create the tables.
func New(db *csql.DB) *Store {
	if db == nil {
		panic("DB is missing")
	}
	s := &Store{db: db}

	schema := db.Schema
	s.documentsQuery = fmt.Sprintf(`SELECT id, collection_id, document_id, data, created_at, updated_at FROM %s.documents WHERE collection_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`, schema)
	s.documentsCountQuery = fmt.Sprintf(`SELECT count(*) FROM %s.documents WHERE collection_id = $1;`, schema)
	s.documentQuery = fmt.Sprintf(`SELECT id, collection_id, document_id, data, created_at, updated_at FROM %s.documents WHERE collection_id = $1 AND document_id = $2;`, schema)
	s.anyDocumentQuery = fmt.Sprintf(`SELECT collection_id, data FROM %s.documents WHERE document_id = $1 ORDER BY collection_id ASC, id ASC LIMIT 1;`, schema)
	s.collectionNameQuery = fmt.Sprintf(`SELECT name FROM %s.collections WHERE id = $1;`, schema)
	s.insertDocumentQuery = fmt.Sprintf(`INSERT INTO %s.documents (collection_id, document_id, data) VALUES ($1, $2, $3) RETURNING id, created_at;`, schema)
	s.updateDocumentQuery = fmt.Sprintf(`UPDATE %s.documents SET data = $3, updated_at = now() WHERE collection_id = $1 AND document_id = $2;`, schema)
	s.deleteDocumentQuery = fmt.Sprintf(`DELETE FROM %s.documents WHERE collection_id = $1 AND document_id = $2;`, schema)
	s.documentExistsQuery = fmt.Sprintf(`SELECT id FROM %s.documents WHERE collection_id = $1 AND document_id = $2;`, schema)
	return s
}

// DB returns the underlying database handle.
func (s *Store) DB() *csql.DB {
	return s.db
}

// IsUniqueViolation reports whether err is a postgres unique constraint
// violation. Unique violations are reported as code 23505; concurrent
// inserts can hit the constraint even after an exists check passed.
func IsUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}

// EnsureSchema creates the docbase tables if they do not exist yet. It
// panics when the schema cannot be created, like the rest of service
// construction.
func (s *Store) EnsureSchema() {
	schema := s.db.Schema
	_, err := s.db.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s.users (
	id serial PRIMARY KEY,
	email varchar UNIQUE NOT NULL,
	password varchar NOT NULL,
	name varchar NOT NULL DEFAULT '',
	role varchar NOT NULL DEFAULT 'user',
	created_at timestamp NOT NULL DEFAULT now(),
	updated_at timestamp NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS %[1]s.projects (
	id serial PRIMARY KEY,
	name varchar NOT NULL,
	description varchar NOT NULL DEFAULT '',
	user_id integer NOT NULL REFERENCES %[1]s.users(id) ON DELETE CASCADE,
	created_at timestamp NOT NULL DEFAULT now(),
	updated_at timestamp NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS %[1]s.api_keys (
	id serial PRIMARY KEY,
	project_id integer NOT NULL REFERENCES %[1]s.projects(id) ON DELETE CASCADE,
	api_key varchar UNIQUE NOT NULL,
	name varchar NOT NULL,
	permissions varchar NOT NULL DEFAULT 'read',
	created_at timestamp NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS %[1]s.collections (
	id serial PRIMARY KEY,
	project_id integer NOT NULL REFERENCES %[1]s.projects(id) ON DELETE CASCADE,
	name varchar NOT NULL,
	description varchar NOT NULL DEFAULT '',
	created_at timestamp NOT NULL DEFAULT now(),
	updated_at timestamp NOT NULL DEFAULT now(),
	UNIQUE (project_id, name)
);
CREATE TABLE IF NOT EXISTS %[1]s.documents (
	id serial PRIMARY KEY,
	collection_id integer NOT NULL REFERENCES %[1]s.collections(id) ON DELETE CASCADE,
	document_id varchar NOT NULL,
	data json NOT NULL,
	created_at timestamp NOT NULL DEFAULT now(),
	updated_at timestamp NOT NULL DEFAULT now(),
	UNIQUE (collection_id, document_id)
);
CREATE INDEX IF NOT EXISTS documents_document_id ON %[1]s.documents(document_id);
CREATE TABLE IF NOT EXISTS %[1]s.files (
	id serial PRIMARY KEY,
	project_id integer NOT NULL REFERENCES %[1]s.projects(id) ON DELETE CASCADE,
	file_name varchar NOT NULL,
	file_path varchar NOT NULL,
	file_size bigint NOT NULL,
	file_type varchar NOT NULL DEFAULT '',
	uploaded_by integer NOT NULL REFERENCES %[1]s.users(id),
	created_at timestamp NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS %[1]s.activity_logs (
	id serial PRIMARY KEY,
	user_id integer REFERENCES %[1]s.users(id) ON DELETE SET NULL,
	action varchar NOT NULL,
	entity_type varchar NOT NULL,
	entity_id varchar NOT NULL DEFAULT '',
	details json,
	ip_address varchar NOT NULL DEFAULT '',
	created_at timestamp NOT NULL DEFAULT now()
);`, schema))
	if err != nil {
		panic(fmt.Errorf("cannot create docbase schema: %s", err))
	}
}

// Document is a stored JSON document. The document_id is unique within the
// owning collection only.
type Document struct {
	ID           int64           `json:"id"`
	CollectionID int64           `json:"collection_id"`
	DocumentID   string          `json:"document_id"`
	Data         json.RawMessage `json:"data"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Documents returns one page of a collection's documents, newest first,
// together with the total count.
func (s *Store) Documents(ctx context.Context, collectionID int64, page, limit int) ([]Document, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx, s.documentsCountQuery, collectionID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, s.documentsQuery, collectionID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	documents := []Document{}
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.CollectionID, &d.DocumentID, &d.Data, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, 0, err
		}
		documents = append(documents, d)
	}
	return documents, total, rows.Err()
}

// Document returns a single document by collection and document id.
func (s *Store) Document(ctx context.Context, collectionID int64, documentID string) (Document, bool, error) {
	var d Document
	err := s.db.QueryRowContext(ctx, s.documentQuery, collectionID, documentID).
		Scan(&d.ID, &d.CollectionID, &d.DocumentID, &d.Data, &d.CreatedAt, &d.UpdatedAt)
	if err == csql.ErrNoRows {
		return d, false, nil
	}
	if err != nil {
		return d, false, err
	}
	return d, true, nil
}

// DocumentExists reports whether a document id is already taken within the
// collection.
func (s *Store) DocumentExists(ctx context.Context, collectionID int64, documentID string) (bool, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.documentExistsQuery, collectionID, documentID).Scan(&id)
	if err == csql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateDocument inserts a new document and returns it.
func (s *Store) CreateDocument(ctx context.Context, collectionID int64, documentID string, data json.RawMessage) (Document, error) {
	d := Document{
		CollectionID: collectionID,
		DocumentID:   documentID,
		Data:         data,
	}
	err := s.db.QueryRowContext(ctx, s.insertDocumentQuery, collectionID, documentID, string(data)).
		Scan(&d.ID, &d.CreatedAt)
	d.UpdatedAt = d.CreatedAt
	return d, err
}

// UpdateDocument replaces a document's data. It returns false if the
// document does not exist.
func (s *Store) UpdateDocument(ctx context.Context, collectionID int64, documentID string, data json.RawMessage) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.updateDocumentQuery, collectionID, documentID, string(data))
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// DeleteDocument removes a document. It returns false if the document does
// not exist.
func (s *Store) DeleteDocument(ctx context.Context, collectionID int64, documentID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.deleteDocumentQuery, collectionID, documentID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// AnyDocumentByDocumentID looks up a document by its document id across all
// collections. When several collections hold a document with the same id,
// the row with the lowest collection id wins, oldest row first; the
// tie-break is deterministic and does not depend on storage ordering.
func (s *Store) AnyDocumentByDocumentID(ctx context.Context, documentID string) (int64, json.RawMessage, bool, error) {
	var (
		collectionID int64
		data         json.RawMessage
	)
	err := s.db.QueryRowContext(ctx, s.anyDocumentQuery, documentID).Scan(&collectionID, &data)
	if err == csql.ErrNoRows {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	return collectionID, data, true, nil
}

// CollectionName returns the name of a collection.
func (s *Store) CollectionName(ctx context.Context, collectionID int64) (string, bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx, s.collectionNameQuery, collectionID).Scan(&name)
	if err == csql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}
