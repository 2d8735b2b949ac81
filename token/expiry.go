// Package token converts identity provider token responses into sessions.
package token

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/jrsteele09/go-elearning-portal/session"
)

// ExpiryFromJWT reads the exp claim of a JWT without verifying its signature.
// The portal never trusts the access token's contents; it only needs to know
// when to renew it.
func ExpiryFromJWT(rawToken string) (time.Time, error) {
	parsed, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read exp claim: %w", err)
	}
	if exp == nil {
		return time.Time{}, fmt.Errorf("access token has no exp claim")
	}
	return exp.Time, nil
}

// AccessTokenExpiry prefers the expires_in of the token response and falls back to the JWT exp claim.
func AccessTokenExpiry(tok *oauth2.Token) (time.Time, error) {
	if !tok.Expiry.IsZero() {
		return tok.Expiry, nil
	}
	return ExpiryFromJWT(tok.AccessToken)
}

// IDToken returns the id_token carried in the token response, if any.
func IDToken(tok *oauth2.Token) string {
	idToken, _ := tok.Extra("id_token").(string)
	return idToken
}

// SessionFromToken builds an authenticated session from a token response.
// previous supplies the refresh and ID tokens when the response omits them,
// which is allowed on a refresh grant.
func SessionFromToken(tok *oauth2.Token, previous session.Session, now time.Time) (session.Session, error) {
	if tok == nil || tok.AccessToken == "" {
		return session.Session{}, fmt.Errorf("token response without access_token")
	}

	expiresAt, err := AccessTokenExpiry(tok)
	if err != nil {
		return session.Session{}, err
	}

	next := session.Session{
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		IDToken:       IDToken(tok),
		ExpiresAt:     expiresAt,
		Authenticated: true,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = previous.RefreshToken
		next.RefreshExpiresAt = previous.RefreshExpiresAt
	}
	if next.IDToken == "" {
		next.IDToken = previous.IDToken
	}
	if secs := refreshExpiresIn(tok); secs > 0 {
		next.RefreshExpiresAt = now.Add(time.Duration(secs) * time.Second)
	}
	return next, nil
}

// refreshExpiresIn reads Keycloak's refresh_expires_in extension.
func refreshExpiresIn(tok *oauth2.Token) int64 {
	switch v := tok.Extra("refresh_expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}
