package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/NordCoder/Reelpass/internal/apperr"
	"github.com/NordCoder/Reelpass/internal/domain/user"
	"github.com/NordCoder/Reelpass/internal/obs"
	"github.com/NordCoder/Reelpass/internal/services/api/users"
)

const maxBodyBytes = 1 << 20

// Profiles is the part of the account service behind /auth/me and
// /auth/change-password.
type Profiles interface {
	ChangePassword(ctx context.Context, id int64, in *users.PasswordChange) (*user.User, error)
	Update(ctx context.Context, id int64, p user.Patch) (*user.User, error)
}

type Server struct {
	log          *zap.Logger
	uc           *Usecase
	profiles     Profiles
	cookieDomain string
	cookiePath   string
	cookieSecure bool
}

type Opts struct {
	Logger       *zap.Logger
	CookieDomain string
	CookiePath   string
	CookieSecure bool
}

func NewServer(uc *Usecase, profiles Profiles, o Opts) *Server {
	log := o.Logger
	if log == nil {
		log = zap.NewNop()
	}
	path := o.CookiePath
	if path == "" {
		path = "/"
	}
	return &Server{
		log:          log,
		uc:           uc,
		profiles:     profiles,
		cookieDomain: o.CookieDomain,
		cookiePath:   path,
		cookieSecure: o.CookieSecure,
	}
}

// Routes registers the /auth endpoints on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	handle := func(pattern, name string, h http.HandlerFunc) {
		mux.Handle(pattern, obs.InstrumentHTTP(name, h))
	}
	handle("POST /auth/register", "auth.register", s.register)
	handle("POST /auth/login", "auth.login", s.login)
	handle("POST /auth/logout", "auth.logout", s.logout)
	handle("POST /auth/logout-all", "auth.logout_all", s.requireUser(s.logoutAll))
	handle("POST /auth/refresh", "auth.refresh", s.refresh)
	handle("POST /auth/change-password", "auth.change_password", s.requireUser(s.changePassword))
	handle("GET /auth/me", "auth.me", s.requireUser(s.me))
	handle("PATCH /auth/me", "auth.update_me", s.requireUser(s.updateMe))
}

type sessionResponse struct {
	Message  string `json:"message"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type profileResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toProfile(u *user.User) profileResponse {
	return profileResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt,
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.Message(err))
		return
	}

	sess, err := s.uc.Register(r.Context(), req)
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeInvalidArgument, apperr.CodeAlreadyExists:
			writeError(w, http.StatusBadRequest, apperr.Message(err))
		default:
			s.fail(w, r, "register", err)
		}
		return
	}

	s.setSessionCookies(w, sess.TokenPair)
	writeJSON(w, http.StatusCreated, sessionResponse{Message: "register success", UserID: sess.UserID, Username: sess.Username})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.Message(err))
		return
	}

	sess, err := s.uc.Login(r.Context(), users.Credentials{Username: req.Username, Password: req.Password})
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, apperr.Message(err))
			return
		}
		s.fail(w, r, "login", err)
		return
	}

	s.setSessionCookies(w, sess.TokenPair)
	writeJSON(w, http.StatusOK, sessionResponse{Message: "login success", UserID: sess.UserID, Username: sess.Username})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	active, err := s.uc.Logout(r.Context(), readCookie(r, RefreshCookie))
	s.clearSessionCookies(w)
	if err != nil {
		s.log.Warn("logout", zap.Error(err))
		writeError(w, http.StatusBadRequest, "logout failed")
		return
	}
	if active {
		writeJSON(w, http.StatusOK, messageResponse{Message: "success logout"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out (no active session)"})
}

func (s *Server) logoutAll(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	n, err := s.uc.LogoutAll(r.Context(), u.ID)
	s.clearSessionCookies(w)
	if err != nil {
		s.log.Warn("logout all", zap.Int64("user_id", u.ID), zap.Error(err))
		writeError(w, http.StatusBadRequest, "logout failed")
		return
	}
	if n > 0 {
		writeJSON(w, http.StatusOK, messageResponse{Message: "success logout from all devices"})
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out (no active session)"})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	raw := readCookie(r, RefreshCookie)
	if raw == "" {
		s.clearSessionCookies(w)
		writeError(w, http.StatusUnauthorized, "refresh token missing")
		return
	}

	sess, err := s.uc.Refresh(r.Context(), raw)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			s.clearSessionCookies(w)
			writeError(w, http.StatusUnauthorized, apperr.Message(err))
			return
		}
		s.fail(w, r, "refresh", err)
		return
	}

	s.setSessionCookies(w, sess.TokenPair)
	writeJSON(w, http.StatusOK, messageResponse{Message: "token refresh success"})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())

	var req users.PasswordChange
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, apperr.Message(err))
		return
	}

	if _, err := s.profiles.ChangePassword(r.Context(), u.ID, &req); err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeInvalidArgument:
			writeError(w, http.StatusBadRequest, apperr.Message(err))
		case apperr.CodeNotFound, apperr.CodeUnauthenticated:
			writeError(w, http.StatusUnauthorized, "not authenticated")
		default:
			s.fail(w, r, "change password", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "password changed"})
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())
	writeJSON(w, http.StatusOK, toProfile(u))
}

func (s *Server) updateMe(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromCtx(r.Context())

	var patch user.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, apperr.Message(err))
		return
	}

	updated, err := s.profiles.Update(r.Context(), u.ID, patch)
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeNotFound:
			writeError(w, http.StatusNotFound, apperr.Message(err))
		case apperr.CodeInvalidArgument, apperr.CodeAlreadyExists:
			writeError(w, http.StatusBadRequest, apperr.Message(err))
		default:
			s.fail(w, r, "update profile", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, toProfile(updated))
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.log.Error(op, append(obs.TraceFields(r.Context()), zap.Error(err))...)
	writeError(w, http.StatusInternalServerError, apperr.Message(err))
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Wrap(apperr.CodeInvalidArgument, "malformed request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
