package audit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wardnote/wardnote/internal/platform/auth"
)

type mockRepo struct {
	entries []*Entry
	fail    bool
}

func (m *mockRepo) Insert(_ context.Context, e *Entry) error {
	if m.fail {
		return fmt.Errorf("connection reset")
	}
	e.RecordedAt = time.Now().UTC()
	m.entries = append(m.entries, e)
	return nil
}

func testSession() auth.Session {
	return auth.Session{ID: "sess-9", UserAgent: "ward-web/2.1"}
}

func TestLog_StampsSessionAndTimestamp(t *testing.T) {
	repo := &mockRepo{}
	l := NewLogger(repo)

	got, err := l.Log(context.Background(), testSession(), Entry{
		Action:       ActionNoteSign,
		ActorID:      "actor-1",
		ActorName:    "Dr Osei",
		ResourceType: ResourceNote,
		ResourceID:   uuid.New().String(),
		Metadata:     Metadata{Sign: &SignMetadata{Signature: "SHA256:" + "ab"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.SessionID != "sess-9" {
		t.Errorf("session id = %q, want sess-9", got.SessionID)
	}
	if got.UserAgent != "ward-web/2.1" {
		t.Errorf("user agent = %q", got.UserAgent)
	}
	if got.RecordedAt.IsZero() {
		t.Error("expected server-assigned timestamp")
	}
	if len(repo.entries) != 1 {
		t.Fatalf("expected 1 persisted entry, got %d", len(repo.entries))
	}
}

func TestLog_RejectsInvalidEntries(t *testing.T) {
	l := NewLogger(&mockRepo{})
	ctx := context.Background()

	cases := []struct {
		name  string
		entry Entry
	}{
		{"missing action", Entry{ActorID: "a", ResourceType: ResourceNote, ResourceID: "n"}},
		{"missing actor", Entry{Action: ActionNoteSign, ResourceType: ResourceNote, ResourceID: "n"}},
		{"bad resource type", Entry{Action: ActionNoteSign, ActorID: "a", ResourceType: "spaceship", ResourceID: "n"}},
		{"missing resource id", Entry{Action: ActionNoteSign, ActorID: "a", ResourceType: ResourceNote}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := l.Log(ctx, testSession(), tc.entry); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLog_RejectsConflictingMetadata(t *testing.T) {
	l := NewLogger(&mockRepo{})
	_, err := l.Log(context.Background(), testSession(), Entry{
		Action:       ActionNoteAmend,
		ActorID:      "a",
		ResourceType: ResourceNote,
		ResourceID:   "n",
		Metadata: Metadata{
			Sign:  &SignMetadata{},
			Amend: &AmendMetadata{},
		},
	})
	if err == nil {
		t.Error("expected error for conflicting typed payloads")
	}
}

func TestLog_BoundsExtraMap(t *testing.T) {
	l := NewLogger(&mockRepo{})
	extra := make(map[string]string)
	for i := 0; i < maxExtraKeys+1; i++ {
		extra[fmt.Sprintf("k%d", i)] = "v"
	}
	_, err := l.Log(context.Background(), testSession(), Entry{
		Action:       ActionNoteSign,
		ActorID:      "a",
		ResourceType: ResourceNote,
		ResourceID:   "n",
		Metadata:     Metadata{Extra: extra},
	})
	if err == nil {
		t.Error("expected error for oversized extra map")
	}
}

func TestLog_PropagatesInsertFailure(t *testing.T) {
	l := NewLogger(&mockRepo{fail: true})
	_, err := l.Log(context.Background(), testSession(), Entry{
		Action:       ActionNoteSign,
		ActorID:      "a",
		ResourceType: ResourceNote,
		ResourceID:   "n",
	})
	if err == nil {
		t.Error("expected insert failure to propagate")
	}
}
