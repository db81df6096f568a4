package store

import (
	"context"
	"fmt"
	"time"

	"github.com/docbase-tech/docbase/core/csql"
)

// Collection groups documents within a project. Names are unique per
// project.
type Collection struct {
	ID            int64     `json:"id"`
	ProjectID     int64     `json:"project_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	DocumentCount *int      `json:"document_count,omitempty"`
}

// Collections returns all collections of a project, sorted by name.
func (s *Store) Collections(ctx context.Context, projectID int64) ([]Collection, error) {
	query := fmt.Sprintf(`SELECT id, project_id, name, description, created_at, updated_at FROM %s.collections WHERE project_id = $1 ORDER BY name ASC;`, s.db.Schema)
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collections := []Collection{}
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

// Collection returns a single collection of a project, including its
// document count.
func (s *Store) Collection(ctx context.Context, projectID, collectionID int64) (Collection, bool, error) {
	var c Collection
	query := fmt.Sprintf(`SELECT id, project_id, name, description, created_at, updated_at FROM %s.collections WHERE id = $1 AND project_id = $2;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, collectionID, projectID).
		Scan(&c.ID, &c.ProjectID, &c.Name, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if err == csql.ErrNoRows {
		return c, false, nil
	}
	if err != nil {
		return c, false, err
	}

	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s.documents WHERE collection_id = $1;`, s.db.Schema)
	var count int
	if err := s.db.QueryRowContext(ctx, countQuery, collectionID).Scan(&count); err != nil {
		return c, false, err
	}
	c.DocumentCount = &count
	return c, true, nil
}

// CollectionInProject reports whether the collection belongs to the project.
func (s *Store) CollectionInProject(ctx context.Context, collectionID, projectID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT id FROM %s.collections WHERE id = $1 AND project_id = $2;`, s.db.Schema)
	var id int64
	err := s.db.QueryRowContext(ctx, query, collectionID, projectID).Scan(&id)
	if err == csql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CollectionNameExists reports whether another collection of the project
// already uses the name. excludeID skips one collection, for rename checks;
// pass 0 on create.
func (s *Store) CollectionNameExists(ctx context.Context, projectID int64, name string, excludeID int64) (bool, error) {
	query := fmt.Sprintf(`SELECT id FROM %s.collections WHERE project_id = $1 AND name = $2 AND id <> $3;`, s.db.Schema)
	var id int64
	err := s.db.QueryRowContext(ctx, query, projectID, name, excludeID).Scan(&id)
	if err == csql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateCollection inserts a new collection and returns it.
func (s *Store) CreateCollection(ctx context.Context, projectID int64, name, description string) (Collection, error) {
	c := Collection{
		ProjectID:   projectID,
		Name:        name,
		Description: description,
	}
	query := fmt.Sprintf(`INSERT INTO %s.collections (project_id, name, description) VALUES ($1, $2, $3) RETURNING id, created_at;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, projectID, name, description).Scan(&c.ID, &c.CreatedAt)
	c.UpdatedAt = c.CreatedAt
	return c, err
}

// UpdateCollection renames a collection. It returns false if the collection
// does not exist in the project.
func (s *Store) UpdateCollection(ctx context.Context, projectID, collectionID int64, name, description string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.collections SET name = $3, description = $4, updated_at = now() WHERE id = $1 AND project_id = $2;`, s.db.Schema)
	res, err := s.db.ExecContext(ctx, query, collectionID, projectID, name, description)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// DeleteCollection removes a collection. Its documents are deleted by the
// cascade rule.
func (s *Store) DeleteCollection(ctx context.Context, projectID, collectionID int64) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s.collections WHERE id = $1 AND project_id = $2;`, s.db.Schema)
	res, err := s.db.ExecContext(ctx, query, collectionID, projectID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}
