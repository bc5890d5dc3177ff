package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/teemow/calassist/internal/google"
	"github.com/teemow/calassist/internal/logging"
)

const (
	cookieIssuer = "calassist"

	// cookieRefreshAfter is the age after which a request re-issues the
	// cookie, so its expiry follows the session's idle timeout.
	cookieRefreshAfter = time.Minute
)

// ErrInvalidCookie is returned for session cookies that are malformed,
// tampered with or expired.
var ErrInvalidCookie = errors.New("invalid session cookie")

// sign returns the cookie value for a session: an HS256 JWT whose subject
// is the session id.
func (m *Manager) sign(id string) (string, error) {
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    cookieIssuer,
		Subject:   id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session cookie: %w", err)
	}
	return token, nil
}

// parse verifies a cookie value and returns its claims. The subject is
// the session id.
func (m *Manager) parse(value string) (*jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(value, &claims,
		func(*jwt.Token) (any, error) { return m.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(cookieIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCookie, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: bad session id", ErrInvalidCookie)
	}
	return &claims, nil
}

// Middleware attaches the request's session to its context. The session
// also becomes the credential overlay seen by google.Store.
//
// A request without a valid cookie gets a fresh session that the manager
// only keeps, and only sends a cookie for, once an authorization starts on
// it. Known sessions get their cookie re-issued as they are used.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := m.resolve(w, r)
		ctx := WithSession(r.Context(), s)
		ctx = google.WithCache(ctx, s)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Manager) resolve(w http.ResponseWriter, r *http.Request) *Session {
	ctx := r.Context()

	if c, err := r.Cookie(m.cookieName); err == nil {
		claims, err := m.parse(c.Value)
		if err == nil {
			if s, ok := m.Get(ctx, claims.Subject); ok {
				if claims.IssuedAt == nil || m.now().Sub(claims.IssuedAt.Time) >= cookieRefreshAfter {
					m.setCookie(w, r, s)
				}
				return s
			}
		} else {
			m.logger.Debug("discarding session cookie", logging.Err(err))
		}
	}

	s := m.newSession()
	s.keep = func() {
		m.store(ctx, s)
		m.setCookie(w, r, s)
	}
	return s
}

// setCookie issues the cookie for s. It must run before the response
// headers are written.
func (m *Manager) setCookie(w http.ResponseWriter, r *http.Request, s *Session) {
	value, err := m.sign(s.ID())
	if err != nil {
		// The session still serves this request; the next one starts over.
		m.logger.Error("failed to issue session cookie", logging.Err(err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.timeout / time.Second),
		HttpOnly: true,
		Secure:   isSecure(r),
		// Lax keeps the cookie on the top-level redirect back from the consent page.
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
