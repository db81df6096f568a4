package access

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/docbase-tech/docbase/core/logger"
)

// TokenService issues and validates the HS256 bearer tokens of the
// management console.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
}

// TokenLifetime is how long an issued console token stays valid.
const TokenLifetime = 24 * time.Hour

// NewTokenService creates a token service. It panics when the signing
// secret is empty.
func NewTokenService(secret string) *TokenService {
	if secret == "" {
		panic("please specify a JWT secret")
	}
	return &TokenService{secret: []byte(secret), lifetime: TokenLifetime}
}

type userClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// IssueToken returns a signed token for the user.
func (t *TokenService) IssueToken(userID int64, email string) (string, error) {
	now := time.Now()
	claims := userClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// ParseToken validates a token and returns the user it was issued to.
func (t *TokenService) ParseToken(tokenString string) (User, error) {
	claims := userClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil {
		return User{}, err
	}
	if !token.Valid {
		return User{}, fmt.Errorf("invalid token")
	}
	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return User{}, fmt.Errorf("invalid token subject '%s'", claims.Subject)
	}
	return User{ID: userID, Email: claims.Email}, nil
}

// Middleware authenticates requests carrying an "Authorization: Bearer"
// token and rejects all others. On success the user lands in the request
// context.
func (t *TokenService) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString := bearerToken(r)
		if tokenString == "" {
			writeAuthError(w, "authentication required")
			return
		}
		user, err := t.ParseToken(tokenString)
		if err != nil {
			logger.FromContext(r.Context()).WithError(err).Infoln("rejected bearer token")
			writeAuthError(w, "invalid or expired token")
			return
		}
		ctx := ContextWithUser(r.Context(), user)
		ctx, _ = logger.ContextWithLoggerIdentity(ctx, user.Email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	bearer := r.Header.Get("Authorization")
	if len(bearer) >= 8 && strings.ToLower(bearer[:7]) == "bearer " {
		return bearer[7:]
	}
	return ""
}
