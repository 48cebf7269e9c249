package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"canvasboard/broker/internal/auth"
	"canvasboard/broker/internal/identity"
)

// websocketAuthenticator resolves the identity.Identity of a channel
// request. hmacWebsocketAuthenticator derives it from a verified token;
// allowAllAuthenticator takes it from the client's `identity` query
// parameter (default "anonymous"). Either way the client may add an
// optional display name.
type websocketAuthenticator interface {
	Authenticate(r *http.Request) (identity.Identity, error)
}

type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(r *http.Request) (identity.Identity, error) {
	id := strings.TrimSpace(r.URL.Query().Get("identity"))
	if id == "" {
		id = "anonymous"
	}
	claims := &auth.TokenClaims{Subject: id}
	return identity.FromClaims(claims, displayNameFromRequest(r)), nil
}

type hmacWebsocketAuthenticator struct {
	verifier *auth.HMACTokenVerifier
}

func newHMACWebsocketAuthenticator(secret string) (websocketAuthenticator, error) {
	verifier, err := auth.NewHMACTokenVerifier(secret, 2*time.Second)
	if err != nil {
		return nil, err
	}
	return &hmacWebsocketAuthenticator{verifier: verifier}, nil
}

// Authenticate validates the incoming token and derives the caller's
// identity from its verified claims, with an optional client-supplied
// display name layered on top (the token carries no display-name claim).
func (a *hmacWebsocketAuthenticator) Authenticate(r *http.Request) (identity.Identity, error) {
	if a == nil || a.verifier == nil {
		return identity.Identity{}, errors.New("verifier not configured")
	}
	token := strings.TrimSpace(r.URL.Query().Get("auth_token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Auth-Token"))
	}
	if token == "" {
		return identity.Identity{}, errors.New("missing auth token")
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return identity.Identity{}, err
	}
	return identity.FromClaims(claims, displayNameFromRequest(r)), nil
}

// displayNameFromRequest reads the client-supplied display name, preferred
// over the bare subject for presence/selection UI. Absent a claim for it in
// the token, this is the only source of a human-readable name.
func displayNameFromRequest(r *http.Request) string {
	name := strings.TrimSpace(r.URL.Query().Get("display_name"))
	if name == "" {
		name = strings.TrimSpace(r.Header.Get("X-Display-Name"))
	}
	return name
}

// WithWebsocketAuthenticator wires a custom authenticator into the broker.
func WithWebsocketAuthenticator(authenticator websocketAuthenticator) BrokerOption {
	return func(b *Broker) {
		if b == nil || authenticator == nil {
			return
		}
		b.wsAuthenticator = authenticator
	}
}
