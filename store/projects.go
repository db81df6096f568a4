package store

import (
	"context"
	"fmt"
	"time"

	"github.com/docbase-tech/docbase/core/csql"
)

// Project is a tenant workspace owned by a user.
type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Projects returns all projects of a user, newest first.
func (s *Store) Projects(ctx context.Context, userID int64) ([]Project, error) {
	query := fmt.Sprintf(`SELECT id, name, description, user_id, created_at, updated_at FROM %s.projects WHERE user_id = $1 ORDER BY created_at DESC;`, s.db.Schema)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []Project{}
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.UserID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Project returns a single project owned by the user. Projects owned by
// other users report not found, never a permission error.
func (s *Store) Project(ctx context.Context, userID, projectID int64) (Project, bool, error) {
	var p Project
	query := fmt.Sprintf(`SELECT id, name, description, user_id, created_at, updated_at FROM %s.projects WHERE id = $1 AND user_id = $2;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, projectID, userID).
		Scan(&p.ID, &p.Name, &p.Description, &p.UserID, &p.CreatedAt, &p.UpdatedAt)
	if err == csql.ErrNoRows {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	return p, true, nil
}

// CreateProject inserts a new project and returns it.
func (s *Store) CreateProject(ctx context.Context, userID int64, name, description string) (Project, error) {
	p := Project{
		Name:        name,
		Description: description,
		UserID:      userID,
	}
	query := fmt.Sprintf(`INSERT INTO %s.projects (name, description, user_id) VALUES ($1, $2, $3) RETURNING id, created_at;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, name, description, userID).Scan(&p.ID, &p.CreatedAt)
	p.UpdatedAt = p.CreatedAt
	return p, err
}

// UpdateProject updates name and description. It returns false if the user
// does not own such a project.
func (s *Store) UpdateProject(ctx context.Context, userID, projectID int64, name, description string) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s.projects SET name = $3, description = $4, updated_at = now() WHERE id = $1 AND user_id = $2;`, s.db.Schema)
	res, err := s.db.ExecContext(ctx, query, projectID, userID, name, description)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}

// DeleteProject removes a project. Keys, collections, documents and file
// rows go with it via the cascade rules.
func (s *Store) DeleteProject(ctx context.Context, userID, projectID int64) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s.projects WHERE id = $1 AND user_id = $2;`, s.db.Schema)
	res, err := s.db.ExecContext(ctx, query, projectID, userID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}
