package store

import (
	"context"
	"fmt"
	"time"

	"github.com/docbase-tech/docbase/core/csql"
)

// APIKey is a project-scoped API key. Permissions is one of "read", "write"
// or "read,write".
type APIKey struct {
	ID          int64     `json:"id"`
	ProjectID   int64     `json:"project_id"`
	Key         string    `json:"api_key"`
	Name        string    `json:"name"`
	Permissions string    `json:"permissions"`
	CreatedAt   time.Time `json:"created_at"`
}

// APIKeys returns all keys of a project.
func (s *Store) APIKeys(ctx context.Context, projectID int64) ([]APIKey, error) {
	query := fmt.Sprintf(`SELECT id, project_id, api_key, name, permissions, created_at FROM %s.api_keys WHERE project_id = $1 ORDER BY created_at DESC;`, s.db.Schema)
	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := []APIKey{}
	for rows.Next() {
		var k APIKey
		if err := rows.Scan(&k.ID, &k.ProjectID, &k.Key, &k.Name, &k.Permissions, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// APIKeyByID returns a key by id, restricted to projects owned by the user.
func (s *Store) APIKeyByID(ctx context.Context, userID, keyID int64) (APIKey, bool, error) {
	var k APIKey
	query := fmt.Sprintf(`SELECT ak.id, ak.project_id, ak.api_key, ak.name, ak.permissions, ak.created_at FROM %[1]s.api_keys ak JOIN %[1]s.projects p ON ak.project_id = p.id WHERE ak.id = $1 AND p.user_id = $2;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, keyID, userID).
		Scan(&k.ID, &k.ProjectID, &k.Key, &k.Name, &k.Permissions, &k.CreatedAt)
	if err == csql.ErrNoRows {
		return k, false, nil
	}
	if err != nil {
		return k, false, err
	}
	return k, true, nil
}

// CreateAPIKey inserts a new key and returns it.
func (s *Store) CreateAPIKey(ctx context.Context, projectID int64, key, name, permissions string) (APIKey, error) {
	k := APIKey{
		ProjectID:   projectID,
		Key:         key,
		Name:        name,
		Permissions: permissions,
	}
	query := fmt.Sprintf(`INSERT INTO %s.api_keys (project_id, api_key, name, permissions) VALUES ($1, $2, $3, $4) RETURNING id, created_at;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, projectID, key, name, permissions).Scan(&k.ID, &k.CreatedAt)
	return k, err
}

// UpdateAPIKey renames a key and changes its permissions, restricted to
// projects owned by the user. It returns false if there is no such key.
func (s *Store) UpdateAPIKey(ctx context.Context, userID, keyID int64, name, permissions string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %[1]s.api_keys SET name = $3, permissions = $4 WHERE id = $1 AND project_id IN (SELECT id FROM %[1]s.projects WHERE user_id = $2);`, s.db.Schema)
	res, err := s.db.ExecContext(ctx, query, keyID, userID, name, permissions)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// DeleteAPIKey removes a key, restricted to projects owned by the user.
func (s *Store) DeleteAPIKey(ctx context.Context, userID, keyID int64) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %[1]s.api_keys WHERE id = $1 AND project_id IN (SELECT id FROM %[1]s.projects WHERE user_id = $2);`, s.db.Schema)
	res, err := s.db.ExecContext(ctx, query, keyID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}
