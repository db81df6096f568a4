package api

import (
	"net/http"
	"regexp"

	"github.com/docbase-tech/docbase/core"
	"github.com/docbase-tech/docbase/core/access"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func (b *Backend) registerHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Email == "" || body.Password == "" || body.Name == "" {
		sendError(w, http.StatusBadRequest, "email, password and name are required")
		return
	}
	if !emailPattern.MatchString(body.Email) {
		sendError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(body.Password) < 8 {
		sendError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	ctx := r.Context()
	exists, err := b.store.EmailExists(ctx, body.Email)
	if err != nil {
		internalError(w, r, 4301, err)
		return
	}
	if exists {
		sendError(w, http.StatusConflict, "email already registered")
		return
	}

	hash, err := access.HashPassword(body.Password)
	if err != nil {
		internalError(w, r, 4302, err)
		return
	}
	user, err := b.store.CreateUser(ctx, body.Email, hash, body.Name)
	if err != nil {
		internalError(w, r, 4303, err)
		return
	}
	token, err := b.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		internalError(w, r, 4304, err)
		return
	}

	b.record(r, &user.ID, string(core.OperationRegister), "user", user.Email, nil)
	sendJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "user registered successfully",
		"user":    user,
		"token":   token,
	})
}

func (b *Backend) loginHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	if body.Email == "" || body.Password == "" {
		sendError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, found, err := b.store.UserByEmail(r.Context(), body.Email)
	if err != nil {
		internalError(w, r, 4305, err)
		return
	}
	// same answer for unknown email and wrong password
	if !found || !access.CheckPassword(user.Password, body.Password) {
		sendError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := b.tokens.IssueToken(user.ID, user.Email)
	if err != nil {
		internalError(w, r, 4306, err)
		return
	}

	b.record(r, &user.ID, string(core.OperationLogin), "user", user.Email, nil)
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "login successful",
		"user":    user,
		"token":   token,
	})
}

// logoutHandler exists for client symmetry, tokens are stateless and
// simply expire.
func (b *Backend) logoutHandler(w http.ResponseWriter, r *http.Request) {
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"message": "logout successful",
	})
}

func (b *Backend) currentUserHandler(w http.ResponseWriter, r *http.Request) {
	authenticated, _ := access.UserFromContext(r.Context())
	user, found, err := b.store.UserByID(r.Context(), authenticated.ID)
	if err != nil {
		internalError(w, r, 4307, err)
		return
	}
	if !found {
		sendError(w, http.StatusNotFound, "user not found")
		return
	}
	sendJSON(w, http.StatusOK, map[string]interface{}{
		"user": user,
	})
}
