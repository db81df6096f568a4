package access

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/docbase-tech/docbase/core/csql"
	"github.com/docbase-tech/docbase/core/logger"
)

// KeyAuthenticator authenticates database API requests by project API key.
type KeyAuthenticator struct {
	db    *csql.DB
	query string
}

// NewKeyAuthenticator creates an authenticator reading keys from db. It
// panics when db is nil.
func NewKeyAuthenticator(db *csql.DB) *KeyAuthenticator {
	if db == nil {
		panic("please specify a database")
	}
	query := fmt.Sprintf(`SELECT ak.id, ak.project_id, ak.permissions, p.user_id, p.name FROM %[1]s.api_keys ak JOIN %[1]s.projects p ON ak.project_id = p.id WHERE ak.api_key = $1;`, db.Schema)
	return &KeyAuthenticator{db: db, query: query}
}

// Authenticate looks up a raw key string and returns its details.
func (a *KeyAuthenticator) Authenticate(r *http.Request, key string) (KeyDetails, bool) {
	var details KeyDetails
	err := a.db.QueryRowContext(r.Context(), a.query, key).
		Scan(&details.KeyID, &details.ProjectID, &details.Permissions, &details.UserID, &details.ProjectName)
	if err == csql.ErrNoRows {
		return details, false
	}
	if err != nil {
		logger.FromContext(r.Context()).WithError(err).Errorf("Error 4201: cannot execute API key query")
		return details, false
	}
	return details, true
}

// Middleware authenticates requests by API key. The key is taken from the
// X-API-Key header, the api_key query parameter, or an
// "Authorization: Bearer" header, in that order.
func (a *KeyAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := KeyFromRequest(r)
		if key == "" {
			writeAuthError(w, "API key required")
			return
		}
		details, ok := a.Authenticate(r, key)
		if !ok {
			writeAuthError(w, "invalid API key")
			return
		}
		ctx := ContextWithKeyDetails(r.Context(), details)
		ctx, _ = logger.ContextWithLoggerIdentity(ctx, details.ProjectName)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// KeyFromRequest extracts the raw API key string from a request, or "".
func KeyFromRequest(r *http.Request) string {
	for _, key := range []string{r.Header.Get("X-API-Key"), r.URL.Query().Get("api_key"), bearerToken(r)} {
		if key != "" {
			return key
		}
	}
	return ""
}

// ValidPermissions reports whether s is one of the accepted permission
// sets: "read", "write" or "read,write".
func ValidPermissions(s string) bool {
	return s == "read" || s == "write" || s == "read,write"
}

func splitPermissions(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	body, _ := json.MarshalWithOption(map[string]interface{}{
		"error":   true,
		"message": message,
	}, json.DisableHTMLEscape())
	w.Write(body)
}
