package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// Authenticator validates the caller's credential before any pipeline work
// runs. A static API key always passes; when a JWT secret is configured,
// HS256 bearer tokens are accepted as well. An empty configuration disables
// the check entirely (development only).
type Authenticator struct {
	apiKey    string
	jwtSecret []byte
	logger    *zap.SugaredLogger
}

func NewAuthenticator(apiKey string, jwtSecret string, logger *zap.SugaredLogger) *Authenticator {
	var secret []byte
	if jwtSecret != "" {
		secret = []byte(jwtSecret)
	}
	return &Authenticator{
		apiKey:    apiKey,
		jwtSecret: secret,
		logger:    logger,
	}
}

// Middleware short-circuits unauthenticated requests with a structured 401
// payload.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.apiKey == "" && a.jwtSecret == nil {
			next.ServeHTTP(w, r)
			return
		}

		credential, ok := bearerCredential(r)
		if !ok || !a.validate(credential) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid credential")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerCredential(r *http.Request) (string, bool) {
	headerSplit := strings.Split(r.Header.Get("Authorization"), " ")
	if len(headerSplit) != 2 || strings.ToLower(headerSplit[0]) != "bearer" || headerSplit[1] == "" {
		return "", false
	}
	return headerSplit[1], true
}

func (a *Authenticator) validate(credential string) bool {
	if a.apiKey != "" && credential == a.apiKey {
		return true
	}
	if a.jwtSecret == nil {
		return false
	}

	token, err := jwt.Parse(credential, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.jwtSecret, nil
	})
	if err != nil {
		a.logger.Debugw("JWT validation failed", "error", err)
		return false
	}
	return token.Valid
}
