package auth

import (
	"net/http"
	"time"
)

const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

func (s *Server) cookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.cookiePath,
		Domain:   s.cookieDomain,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(ttl.Seconds()),
		Expires:  time.Now().Add(ttl).UTC(),
	}
}

func (s *Server) setSessionCookies(w http.ResponseWriter, p TokenPair) {
	http.SetCookie(w, s.cookie(AccessCookie, p.AccessToken, s.uc.AccessTTL()))
	http.SetCookie(w, s.cookie(RefreshCookie, p.RefreshToken, s.uc.RefreshTTL()))
}

func (s *Server) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		c := s.cookie(name, "", 0)
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0).UTC()
		http.SetCookie(w, c)
	}
}

func readCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
