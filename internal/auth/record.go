package auth

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Identity is the stable identifier of an authenticated Google account (the OIDC subject)
type Identity string

// TokenRecord holds the OAuth2 credentials issued to one identity.
// Records are replaced wholesale on refresh; never mutate one that has been shared.
type TokenRecord struct {
	Identity     Identity  `json:"identity" firestore:"identity"`
	Email        string    `json:"email,omitempty" firestore:"email,omitempty"`
	AccessToken  string    `json:"access_token" firestore:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty" firestore:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty" firestore:"token_type,omitempty"`
	Expiry       time.Time `json:"expiry" firestore:"expiry"`
	Scopes       []string  `json:"scopes,omitempty" firestore:"scopes,omitempty"`
	UpdatedAt    time.Time `json:"updated_at" firestore:"updated_at"`
}

// Refreshable reports whether the record carries a refresh token
func (r *TokenRecord) Refreshable() bool {
	return r != nil && r.RefreshToken != ""
}

// Expired reports whether the access token is past its expiry at now.
// A zero expiry never expires.
func (r *TokenRecord) Expired(now time.Time) bool {
	return !r.Expiry.IsZero() && !now.Before(r.Expiry)
}

// Clone returns a deep copy
func (r *TokenRecord) Clone() *TokenRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.Scopes = slices.Clone(r.Scopes)
	return &c
}

// OAuth2Token converts the record for use with golang.org/x/oauth2
func (r *TokenRecord) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		Expiry:       r.Expiry,
	}
}

func newRecord(identity Identity, email string, tok *oauth2.Token, fallbackScopes []string, now time.Time) *TokenRecord {
	scopes := fallbackScopes
	if granted, ok := tok.Extra("scope").(string); ok && granted != "" {
		scopes = strings.Fields(granted)
	}
	return &TokenRecord{
		Identity:     identity,
		Email:        email,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
		Scopes:       slices.Clone(scopes),
		UpdatedAt:    now,
	}
}

// Credentials is the immutable view of a session's tokens handed to
// downstream calls for the duration of one request.
type Credentials struct {
	Identity  Identity
	Email     string
	SessionID string
	token     oauth2.Token
}

// NewCredentials snapshots rec for one request
func NewCredentials(sessionID string, rec *TokenRecord) Credentials {
	return Credentials{
		Identity:  rec.Identity,
		Email:     rec.Email,
		SessionID: sessionID,
		token:     *rec.OAuth2Token(),
	}
}

// TokenSource returns a source that always yields a copy of the snapshotted
// access token. It never refreshes; refresh happens before dispatch.
func (c Credentials) TokenSource() oauth2.TokenSource {
	tok := c.token
	tok.RefreshToken = ""
	return oauth2.StaticTokenSource(&tok)
}

// AccessToken returns the snapshotted access token
func (c Credentials) AccessToken() string {
	return c.token.AccessToken
}
