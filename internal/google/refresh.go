package google

import (
	"context"

	"github.com/teemow/calassist/internal/instrumentation"
	"github.com/teemow/calassist/internal/logging"
)

func (s *Store) refresh(ctx context.Context, stale *Credentials) (*Credentials, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	// The durable copy may already have been refreshed by another session
	if current, err := s.file.Load(); err == nil && current.Valid() {
		if cache, ok := CacheFromContext(ctx); ok {
			cache.SetCredentials(current.Clone())
		}
		return current, nil
	}

	if !stale.CanRefresh() {
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultExpired)
		s.logger.Debug("credentials expired without refresh token")
		return nil, ErrNoCredentials
	}

	conf, err := LoadOAuthConfig(s.clientSecretFile, "")
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		s.logger.Warn("cannot refresh credentials", logging.Err(err))
		return nil, ErrNoCredentials
	}

	tok, err := conf.TokenSource(ctx, stale.Token()).Token()
	if err != nil {
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		s.logger.Warn("token refresh failed", logging.Err(err))
		return nil, ErrNoCredentials
	}

	fresh := FromToken(tok)
	if len(fresh.Scopes) == 0 {
		fresh.Scopes = stale.Scopes
	}
	if err := s.Save(ctx, fresh); err != nil {
		s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultFailure)
		s.logger.Error("failed to persist refreshed credentials", logging.Err(err))
		return nil, ErrNoCredentials
	}

	s.metrics.RecordOAuthTokenRefresh(ctx, instrumentation.OAuthResultSuccess)
	s.logger.Info("credentials refreshed", "access_token", logging.SanitizeToken(fresh.AccessToken))
	return fresh, nil
}
