package store

import (
	"context"
	"fmt"
	"time"

	"github.com/docbase-tech/docbase/core/csql"
)

// User is a registered dashboard user. The password hash never leaves this
// package through the JSON representation.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// EmailExists reports whether a user with the email is already registered.
func (s *Store) EmailExists(ctx context.Context, email string) (bool, error) {
	query := fmt.Sprintf(`SELECT id FROM %s.users WHERE email = $1;`, s.db.Schema)
	var id int64
	err := s.db.QueryRowContext(ctx, query, email).Scan(&id)
	if err == csql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CreateUser inserts a new user with an already-hashed password.
func (s *Store) CreateUser(ctx context.Context, email, passwordHash, name string) (User, error) {
	u := User{
		Email:    email,
		Password: passwordHash,
		Name:     name,
		Role:     "user",
	}
	query := fmt.Sprintf(`INSERT INTO %s.users (email, password, name) VALUES ($1, $2, $3) RETURNING id, created_at;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, email, passwordHash, name).Scan(&u.ID, &u.CreatedAt)
	return u, err
}

// UserByEmail returns a user by email, including the password hash for
// credential verification.
func (s *Store) UserByEmail(ctx context.Context, email string) (User, bool, error) {
	var u User
	query := fmt.Sprintf(`SELECT id, email, password, name, role, created_at FROM %s.users WHERE email = $1;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, email).
		Scan(&u.ID, &u.Email, &u.Password, &u.Name, &u.Role, &u.CreatedAt)
	if err == csql.ErrNoRows {
		return u, false, nil
	}
	if err != nil {
		return u, false, err
	}
	return u, true, nil
}

// UserByID returns a user by id, without the password hash.
func (s *Store) UserByID(ctx context.Context, id int64) (User, bool, error) {
	var u User
	query := fmt.Sprintf(`SELECT id, email, name, role, created_at FROM %s.users WHERE id = $1;`, s.db.Schema)
	err := s.db.QueryRowContext(ctx, query, id).
		Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if err == csql.ErrNoRows {
		return u, false, nil
	}
	if err != nil {
		return u, false, err
	}
	return u, true, nil
}
