package auth

import (
	"context"
	"errors"
)

const RoleAdmin = "admin"

var ErrUnauthenticated = errors.New("auth: no verified subject")

// Subject is the opaque authenticated identity supplied by the identity
// provider. ID is the only key the storefront persists against.
type Subject struct {
	ID   string
	Role string
}

func (s Subject) IsAdmin() bool { return s.Role == RoleAdmin }

// Verifier resolves a bearer token to a Subject.
type Verifier interface {
	Verify(ctx context.Context, token string) (Subject, error)
}

type ctxKey struct{}

func WithSubject(ctx context.Context, s Subject) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

func SubjectFrom(ctx context.Context) (Subject, bool) {
	s, ok := ctx.Value(ctxKey{}).(Subject)
	return s, ok
}
