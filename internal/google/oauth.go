package google

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrClientSecretMissing is returned when the OAuth client configuration
// file is absent or unreadable.
var ErrClientSecretMissing = errors.New("client secret file missing or invalid")

// LoadOAuthConfig builds the OAuth2 configuration from a Google client
// secret file. redirectURL overrides the file's redirect URI when set.
func LoadOAuthConfig(clientSecretFile, redirectURL string) (*oauth2.Config, error) {
	data, err := os.ReadFile(clientSecretFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientSecretMissing, err)
	}

	conf, err := google.ConfigFromJSON(data, CalendarScopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClientSecretMissing, err)
	}
	if redirectURL != "" {
		conf.RedirectURL = redirectURL
	}
	return conf, nil
}

// AuthCodeURL returns the consent page URL. Offline access and a forced
// consent prompt make the provider issue a refresh token on every grant.
func AuthCodeURL(conf *oauth2.Config, state string) string {
	return conf.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.ApprovalForce,
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for credentials.
func Exchange(ctx context.Context, conf *oauth2.Config, code string) (*Credentials, error) {
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	creds := FromToken(tok)
	if len(creds.Scopes) == 0 {
		creds.Scopes = append([]string(nil), conf.Scopes...)
	}
	return creds, nil
}

// NewState returns a random OAuth state value.
func NewState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
