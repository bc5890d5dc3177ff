package google

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Credentials is the OAuth2 token bundle for the connected calendar account.
// It is stored as JSON in the durable token file and cached in the session.
type Credentials struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
}

// FromToken converts an oauth2 token into Credentials. Granted scopes are
// taken from the "scope" field of the token response when present.
func FromToken(tok *oauth2.Token) *Credentials {
	if tok == nil {
		return nil
	}
	creds := &Credentials{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		creds.Scopes = strings.Fields(scope)
	}
	return creds
}

// Token returns the credentials as an oauth2 token.
func (c *Credentials) Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		TokenType:    c.TokenType,
		RefreshToken: c.RefreshToken,
		Expiry:       c.Expiry,
	}
}

// Valid reports whether the access token is present and not expired.
// A zero expiry never expires.
func (c *Credentials) Valid() bool {
	return c != nil && c.Token().Valid()
}

// CanRefresh reports whether a refresh token is available.
func (c *Credentials) CanRefresh() bool {
	return c != nil && c.RefreshToken != ""
}

// Clone returns a deep copy.
func (c *Credentials) Clone() *Credentials {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Scopes = append([]string(nil), c.Scopes...)
	return &cp
}
