package store

import (
	"context"
	"fmt"
	"time"

	"github.com/docbase-tech/docbase/core/csql"
)

// File is the metadata row of an uploaded binary file. The bytes themselves
// live behind the kss driver under file_path.
type File struct {
	ID         int64     `json:"id"`
	ProjectID  int64     `json:"project_id"`
	FileName   string    `json:"file_name"`
	FilePath   string    `json:"-"`
	FileSize   int64     `json:"file_size"`
	FileType   string    `json:"file_type"`
	UploadedBy int64     `json:"uploaded_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// Files returns one page of a project's file rows, newest first, together
// with the total count.
func (s *Store) Files(ctx context.Context, projectID int64, page, limit int) ([]File, int, error) {
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s.files WHERE project_id = $1;`, s.db.Schema)
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, projectID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT id, project_id, file_name, file_path, file_size, file_type, uploaded_by, created_at FROM %s.files WHERE project_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3;`, s.db.Schema)
	rows, err := s.db.QueryContext(ctx, query, projectID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	files := []File{}
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.ProjectID, &f.FileName, &f.FilePath, &f.FileSize, &f.FileType, &f.UploadedBy, &f.CreatedAt); err != nil {
			return nil, 0, err
		}
		files = append(files, f)
	}
	return files, total, rows.Err()
}

// File returns a single file row of a project.
func (s *Store) File(ctx context.Context, projectID, fileID int64) (File, bool, error) {
	var f File
	query := fmt.Sprintf(`SELECT id, project_id, file_name, file_path, file_size, file_type, uploaded_by, created_at FROM %s.files WHERE id = $1 AND project_id = $2;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, fileID, projectID).
		Scan(&f.ID, &f.ProjectID, &f.FileName, &f.FilePath, &f.FileSize, &f.FileType, &f.UploadedBy, &f.CreatedAt)
	if err == csql.ErrNoRows {
		return f, false, nil
	}
	if err != nil {
		return f, false, err
	}
	return f, true, nil
}

// CreateFile inserts a new file row and returns it.
func (s *Store) CreateFile(ctx context.Context, f File) (File, error) {
	query := fmt.Sprintf(`INSERT INTO %s.files (project_id, file_name, file_path, file_size, file_type, uploaded_by) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, f.ProjectID, f.FileName, f.FilePath, f.FileSize, f.FileType, f.UploadedBy).
		Scan(&f.ID, &f.CreatedAt)
	return f, err
}

// DeleteFile removes a file row.
func (s *Store) DeleteFile(ctx context.Context, projectID, fileID int64) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s.files WHERE id = $1 AND project_id = $2;`, s.db.Schema)
	res, err := s.db.ExecContext(ctx, query, fileID, projectID)
	if err != nil {
		return false, err
	}
	count, err := res.RowsAffected()
	return count > 0, err
}
