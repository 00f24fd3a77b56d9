package audit

import (
	"context"
	"fmt"

	"github.com/wardnote/wardnote/internal/platform/auth"
)

// Logger validates and records identity-attributable actions. The session is
// an explicit argument on every call; the logger holds no ambient session
// state.
type Logger struct {
	repo Repository
}

func NewLogger(repo Repository) *Logger {
	return &Logger{repo: repo}
}

// Log stamps the entry with the caller's session and persists it. The entry
// is returned with its server-assigned id and timestamp filled in.
func (l *Logger) Log(ctx context.Context, sess auth.Session, e Entry) (*Entry, error) {
	e.SessionID = sess.ID
	e.UserAgent = sess.UserAgent
	if err := e.validate(); err != nil {
		return nil, err
	}
	if err := l.repo.Insert(ctx, &e); err != nil {
		return nil, fmt.Errorf("record %s: %w", e.Action, err)
	}
	return &e, nil
}
