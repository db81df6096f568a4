// Package access implements authentication for the two faces of the
// service: JWT bearer tokens for the management console and project API
// keys for the database API.
package access

import "context"

type contextKey string

const (
	contextKeyUser contextKey = "user"
	contextKeyKey  contextKey = "api_key"
)

// User identifies an authenticated console user.
type User struct {
	ID    int64
	Email string
}

// ContextWithUser returns a new context with the authenticated user.
func ContextWithUser(ctx context.Context, user User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}

// UserFromContext returns the authenticated user from the context.
func UserFromContext(ctx context.Context) (User, bool) {
	user, ok := ctx.Value(contextKeyUser).(User)
	return user, ok
}

// KeyDetails identifies an authenticated API key and the project it
// belongs to.
type KeyDetails struct {
	KeyID       int64
	ProjectID   int64
	UserID      int64
	ProjectName string
	Permissions string
}

// HasWrite reports whether the key may mutate data.
func (k KeyDetails) HasWrite() bool {
	for _, p := range splitPermissions(k.Permissions) {
		if p == "write" {
			return true
		}
	}
	return false
}

// HasRead reports whether the key may read data.
func (k KeyDetails) HasRead() bool {
	for _, p := range splitPermissions(k.Permissions) {
		if p == "read" {
			return true
		}
	}
	return false
}

// ContextWithKeyDetails returns a new context with the authenticated key.
func ContextWithKeyDetails(ctx context.Context, details KeyDetails) context.Context {
	return context.WithValue(ctx, contextKeyKey, details)
}

// KeyDetailsFromContext returns the authenticated key from the context.
func KeyDetailsFromContext(ctx context.Context) (KeyDetails, bool) {
	details, ok := ctx.Value(contextKeyKey).(KeyDetails)
	return details, ok
}
