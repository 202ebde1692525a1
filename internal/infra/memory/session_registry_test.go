package memory

import (
	"context"
	"errors"
	"testing"

	"serpukhov-quiz-bot/internal/domain"
)

func TestSessionRegistryLifecycle(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry()

	session := domain.AttemptSession{
		AttemptID: 7,
		ChatID:    "chat-1",
		Questions: []domain.Question{{Text: "q", Options: []string{"a", "b"}, CorrectAnswer: "a"}},
	}
	if err := registry.Start(ctx, session); err != nil {
		t.Fatalf("start: %v", err)
	}

	got, err := registry.Get(ctx, 7)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ChatID != "chat-1" || got.Cursor != 0 {
		t.Fatalf("unexpected session %+v", got)
	}

	advanced, err := registry.Advance(ctx, 7)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if advanced.Cursor != 1 {
		t.Fatalf("expected cursor 1, got %d", advanced.Cursor)
	}

	if err := registry.End(ctx, 7); err != nil {
		t.Fatalf("end: %v", err)
	}
	if _, err := registry.Get(ctx, 7); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired after end, got %v", err)
	}
}

func TestSessionRegistryUnknownAttempt(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry()

	if _, err := registry.Get(ctx, 1); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if _, err := registry.Advance(ctx, 1); !errors.Is(err, domain.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestSessionRegistryKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry()

	_ = registry.Start(ctx, domain.AttemptSession{AttemptID: 1, ChatID: "chat-1"})
	_ = registry.Start(ctx, domain.AttemptSession{AttemptID: 2, ChatID: "chat-1"})

	if _, err := registry.Advance(ctx, 1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	second, err := registry.Get(ctx, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if second.Cursor != 0 {
		t.Fatalf("advancing one attempt moved another: %+v", second)
	}
}
