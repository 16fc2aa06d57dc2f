package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// Authenticate rejects requests without a valid bearer token and stores the
// caller identity in the request context.
func (t *Tokens) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		id, err := t.Parse(raw)
		if err != nil {
			log.Warn().Err(err).Msg("auth: rejected bearer token")
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		if t.accounts != nil {
			role, err := t.accounts.CurrentRole(r.Context(), id.UserID)
			switch {
			case errors.Is(err, ErrAccountNotFound):
				log.Warn().Stringer("user_id", id.UserID).Msg("auth: token for deleted account")
				writeError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			case err != nil:
				log.Error().Err(err).Stringer("user_id", id.UserID).Msg("auth: failed to look up account")
				writeError(w, http.StatusInternalServerError, "Failed to verify account")
				return
			}
			if role != id.Role {
				log.Info().Stringer("user_id", id.UserID).Stringer("token_role", id.Role).Stringer("role", role).Msg("auth: role changed since token was issued")
				id.Role = role
			}
		}

		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireRole lets through only identities holding one of roles.
func RequireRole(roles ...Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "Authentication required")
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Warn().Stringer("user_id", id.UserID).Stringer("role", id.Role).Str("path", r.URL.Path).Msg("auth: role not permitted")
			writeError(w, http.StatusForbidden, "Access restricted")
		})
	}
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
