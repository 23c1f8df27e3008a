package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CredentialKind selects how a session authenticates against the portal.
type CredentialKind string

const (
	// ClaveUnica is the national unified credential.
	ClaveUnica CredentialKind = "clave_unica"
	// ClavePoderJudicial is the credential issued by the judiciary.
	ClavePoderJudicial CredentialKind = "clave_poder_judicial"
)

// ErrUnknownCredential is returned for a credential kind with no authenticator.
var ErrUnknownCredential = errors.New("unknown credential kind")

const homePath = "/home/index.php"

// Authenticator performs the login handshake for one credential kind. It may
// use the session's Get and PostForm so cookies land in the session's jar.
type Authenticator interface {
	Authenticate(ctx context.Context, s *Session, username, password string) error
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, s *Session, username, password string) error

func (f AuthenticatorFunc) Authenticate(ctx context.Context, s *Session, username, password string) error {
	return f(ctx, s, username, password)
}

// portalVisit opens the portal home page and pauses like a person would. It
// does not negotiate credentials: the real Clave Única and Poder Judicial
// flows are not implemented, so any reachable portal counts as a login.
type portalVisit struct {
	delay time.Duration
}

func (a portalVisit) Authenticate(ctx context.Context, s *Session, _, _ string) error {
	if _, err := s.Get(ctx, homePath); err != nil {
		return fmt.Errorf("fetch portal home: %w", err)
	}
	return pause(ctx, a.delay)
}

// DefaultAuthenticators returns the stand-in authenticators for both kinds.
func DefaultAuthenticators(p Pacing) map[CredentialKind]Authenticator {
	visit := portalVisit{delay: p.Login}
	return map[CredentialKind]Authenticator{
		ClaveUnica:         visit,
		ClavePoderJudicial: visit,
	}
}

// ParseCredentialKind resolves the wire value; empty means ClaveUnica.
func ParseCredentialKind(s string) (CredentialKind, error) {
	switch k := CredentialKind(s); k {
	case "":
		return ClaveUnica, nil
	case ClaveUnica, ClavePoderJudicial:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCredential, s)
	}
}
