package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type sessionKey struct{}

// Session identifies one authenticated editing session. It is created once
// when the session is established and passed explicitly into every audit
// write; there is no package-level session state.
type Session struct {
	ID        string
	UserAgent string
	RemoteIP  string
	StartedAt time.Time
}

// NewSession creates a session with a fresh identifier. Used when the
// identity provider did not supply a session id (dev mode, CLI tools).
func NewSession(userAgent, remoteIP string) Session {
	return Session{
		ID:        uuid.New().String(),
		UserAgent: userAgent,
		RemoteIP:  remoteIP,
		StartedAt: time.Now().UTC(),
	}
}

// sessionFromClaims builds the request session from token claims, falling
// back to a generated id when the token carries none.
func sessionFromClaims(c echo.Context, claims *Claims) Session {
	s := NewSession(c.Request().UserAgent(), c.RealIP())
	if claims.SessionID != "" {
		s.ID = claims.SessionID
	}
	return s
}

// WithSession returns a context carrying the given session.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the session attached to ctx. The zero Session
// is returned when none is present.
func SessionFromContext(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}
