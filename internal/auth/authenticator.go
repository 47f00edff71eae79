package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Authenticator turns an inbound request into an Identity: extract the
// token, verify it, then load the account it names. It holds no
// per-request state and is safe for concurrent use.
type Authenticator struct {
	extractor *TokenExtractor
	tokens    *TokenService
	store     CredentialStore
}

// NewAuthenticator wires the request authentication pipeline.
func NewAuthenticator(extractor *TokenExtractor, tokens *TokenService, store CredentialStore) *Authenticator {
	return &Authenticator{extractor: extractor, tokens: tokens, store: store}
}

// Authenticate resolves the caller of r.
//
// Errors, in pipeline order:
//   - ErrNoToken when no carrier is present
//   - ErrMalformedToken, ErrTokenInvalid or ErrTokenExpired when the
//     token is unusable
//   - ErrTokenInvalid when the account named by the token is gone
//   - ErrAccountDisabled when the account is deactivated
//
// Any other error is a store failure.
func (a *Authenticator) Authenticate(ctx context.Context, r *http.Request) (Identity, error) {
	raw, _, err := a.extractor.Extract(r)
	if err != nil {
		return Identity{}, err
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return Identity{}, err
	}

	return a.Current(ctx, claims.AccountID())
}

// Current loads the live identity for accountID from the store. Role and
// tenant changes are visible on the next request, not at token expiry.
func (a *Authenticator) Current(ctx context.Context, accountID string) (Identity, error) {
	acc, err := a.store.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return Identity{}, fmt.Errorf("%w: account no longer exists", ErrTokenInvalid)
		}
		return Identity{}, fmt.Errorf("loading account: %w", err)
	}
	if !acc.IsActive {
		return Identity{}, ErrAccountDisabled
	}
	return acc.Identity(), nil
}
