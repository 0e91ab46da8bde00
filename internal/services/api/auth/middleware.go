package auth

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/NordCoder/Reelpass/internal/apperr"
	"github.com/NordCoder/Reelpass/internal/domain/user"
)

type ctxKey int

const userKey ctxKey = 1

func UserFromCtx(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userKey).(*user.User)
	return u, ok
}

// requireUser resolves the access token from the access_token cookie or an
// Authorization: Bearer header and rejects the request with 401 when it
// does not name a live user.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := accessToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		u, err := s.uc.ValidateAccessToken(r.Context(), token)
		if err != nil {
			if apperr.CodeOf(err) == apperr.CodeUnauthenticated {
				writeError(w, http.StatusUnauthorized, "not authenticated")
				return
			}
			s.log.Error("validate access token", zap.Error(err))
			writeError(w, http.StatusInternalServerError, apperr.Message(err))
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	}
}

func accessToken(r *http.Request) string {
	if v := readCookie(r, AccessCookie); v != "" {
		return v
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
