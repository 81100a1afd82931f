package middleware

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/s1natex/lightly-tasks/internal/identity"
)

type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthAPIKey AuthMode = "apikey"
	AuthBearer AuthMode = "bearer"
	AuthJWT    AuthMode = "jwt"
)

type AuthConfig struct {
	Mode        AuthMode
	APIKey      string
	BearerToken string
	Verifier    *identity.Verifier // required for AuthJWT
	SkipPaths   []string
}

type authErr struct {
	Error string `json:"error"`
}

// authenticator checks one request. A verified identity, if the mode yields
// one, is returned with ok=true.
type authenticator struct {
	check     func(r *http.Request) (identity.Identity, bool)
	challenge string
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	switch cfg.Mode {
	case AuthAPIKey:
		// Header: X-API-Key: <key>
		return &authenticator{
			check: func(r *http.Request) (identity.Identity, bool) {
				return identity.Identity{}, constantTimeEq(r.Header.Get("X-API-Key"), cfg.APIKey)
			},
			challenge: `ApiKey realm="lightly", header="X-API-Key"`,
		}

	case AuthBearer:
		// Header: Authorization: Bearer <static token>
		return &authenticator{
			check: func(r *http.Request) (identity.Identity, bool) {
				token, ok := bearerToken(r)
				return identity.Identity{}, ok && constantTimeEq(token, cfg.BearerToken)
			},
			challenge: `Bearer realm="lightly"`,
		}

	case AuthJWT:
		// Header: Authorization: Bearer <session token from the identity provider>
		return &authenticator{
			check: func(r *http.Request) (identity.Identity, bool) {
				token, ok := bearerToken(r)
				if !ok || cfg.Verifier == nil {
					return identity.Identity{}, false
				}
				id, err := cfg.Verifier.Verify(token)
				return id, err == nil
			},
			challenge: `Bearer realm="lightly", error="invalid_token"`,
		}
	}
	return nil
}

func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}
	auth := newAuthenticator(cfg)

	return func(next http.Handler) http.Handler {
		if auth == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			id, ok := auth.check(r)
			if !ok {
				unauthorized(w, auth.challenge)
				return
			}
			if id != (identity.Identity{}) {
				r = r.WithContext(identity.Record(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(authz, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func constantTimeEq(a, b string) bool {
	if len(a) != len(b) || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unauthorized(w http.ResponseWriter, challenge string) {
	w.Header().Set("Content-Type", "application/json")
	if challenge != "" {
		w.Header().Set("WWW-Authenticate", challenge)
	}
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(authErr{Error: "unauthorized"})
}
