package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/teemow/calassist/internal/google"
	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
	"github.com/teemow/calassist/internal/session"
)

// handleAuthorize starts the authorization-code flow: a fresh state is
// kept in the session and the browser is sent to the consent page.
func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, s.authorizeFailed, http.StatusInternalServerError)
		return
	}

	conf, err := google.LoadOAuthConfig(s.clientSecretFile, s.redirectURL(r))
	if err != nil {
		s.logger.Error("cannot start authorization", logging.Err(err))
		http.Error(w, s.authorizeFailed, http.StatusInternalServerError)
		return
	}

	state, err := google.NewState()
	if err != nil {
		s.logger.Error("cannot start authorization", logging.Err(err))
		http.Error(w, s.authorizeFailed, http.StatusInternalServerError)
		return
	}
	sess.SetState(state)

	http.Redirect(w, r, google.AuthCodeURL(conf, state), http.StatusFound)
}

// handleOAuthCallback finishes the flow: the state must match the one
// issued to this session, the code is exchanged and the credentials saved
// to both tiers of the store.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	sess, ok := session.FromContext(ctx)
	if !ok {
		http.Error(w, s.authorizeFailed, http.StatusInternalServerError)
		return
	}
	want := sess.TakeState()

	if reason := query.Get("error"); reason != "" {
		s.logger.Warn("authorization declined by provider", "reason", reason, logging.Session(sess.ID()))
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if want == "" || query.Get("state") != want {
		s.logger.Warn("OAuth state mismatch", logging.Session(sess.ID()))
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	conf, err := google.LoadOAuthConfig(s.clientSecretFile, s.redirectURL(r))
	if err != nil {
		s.logger.Error("cannot finish authorization", logging.Err(err))
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		http.Error(w, s.authorizeFailed, http.StatusInternalServerError)
		return
	}

	creds, err := google.Exchange(ctx, conf, code)
	if err != nil {
		s.logger.Error("authorization code exchange failed", logging.Err(err))
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		http.Error(w, s.authorizeFailed, http.StatusInternalServerError)
		return
	}

	if err := s.creds.Save(ctx, creds); err != nil {
		s.logger.Error("failed to store credentials", logging.Err(err))
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		http.Error(w, s.authorizeFailed, http.StatusInternalServerError)
		return
	}

	s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	s.logger.Info("calendar authorized",
		logging.Session(sess.ID()),
		"access_token", logging.SanitizeToken(creds.AccessToken),
		"scopes", strings.Join(creds.Scopes, " "),
	)
	http.Redirect(w, r, "/", http.StatusFound)
}

// redirectURL is BASE_URL + callbackPath, or the request's own origin when
// no base URL is configured. Behind a TLS-terminating proxy the scheme is
// taken from X-Forwarded-Proto.
func (s *Server) redirectURL(r *http.Request) string {
	base := s.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + callbackPath
}

// validateHTTPSRequirement checks that baseURL uses HTTPS. Plain HTTP is
// accepted only for loopback hosts (localhost, 127.0.0.1, ::1).
func validateHTTPSRequirement(baseURL string) error {
	if baseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	if u.Scheme == "http" {
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth requires HTTPS outside development (got: %s). Use HTTPS or localhost", baseURL)
		}
	} else if u.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: %s. Must be http (localhost only) or https", u.Scheme)
	}

	return nil
}
