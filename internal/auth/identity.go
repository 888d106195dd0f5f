package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/notesync/internal/common"
)

// TokenSource yields the current access token, "" when signed out.
type TokenSource interface {
	SessionToken(ctx context.Context) (string, error)
}

// StaticToken is a TokenSource that always returns the same token.
type StaticToken string

func (s StaticToken) SessionToken(context.Context) (string, error) { return string(s), nil }

// TokenIdentity answers "who is signed in" by validating the access token.
type TokenIdentity struct {
	tokens TokenSource
	secret []byte
}

func NewTokenIdentity(tokens TokenSource, secret []byte) *TokenIdentity {
	return &TokenIdentity{tokens: tokens, secret: secret}
}

// CurrentUser returns the user id, or an error wrapping
// common.ErrUnauthenticated when there is no usable token.
func (i *TokenIdentity) CurrentUser(ctx context.Context) (string, error) {
	tok, err := i.tokens.SessionToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	if tok == "" {
		return "", common.ErrUnauthenticated
	}
	uid, err := GetUserIDFromToken(tok, i.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrUnauthenticated, err)
	}
	return uid, nil
}

// FirstToken returns the first non-empty token among sources.
type FirstToken []TokenSource

func (f FirstToken) SessionToken(ctx context.Context) (string, error) {
	var errs []error
	for _, s := range f {
		tok, err := s.SessionToken(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if tok != "" {
			return tok, nil
		}
	}
	return "", errors.Join(errs...)
}
