package google

import (
	"context"

	"golang.org/x/oauth2"
)

// TokenProvider supplies a valid OAuth token for calendar API calls.
// It returns ErrNoCredentials when the account is not connected.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

var _ TokenProvider = (*Store)(nil)

// Token returns a valid token, refreshing it when needed.
func (s *Store) Token(ctx context.Context) (*oauth2.Token, error) {
	creds, err := s.Valid(ctx)
	if err != nil {
		return nil, err
	}
	return creds.Token(), nil
}
