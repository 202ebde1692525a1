package domain

import (
	"errors"
	"testing"
)

func TestAnswerTokenRoundTrip(t *testing.T) {
	token := EncodeAnswerToken(42, 3, 1)
	if token != "ans|42|3|1" {
		t.Fatalf("unexpected token %q", token)
	}

	event, err := ParseAnswerToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if event.AttemptID != 42 || event.QuestionIndex != 3 || event.OptionIndex != 1 {
		t.Fatalf("unexpected event %+v", event)
	}
}

func TestParseAnswerTokenRejectsMalformed(t *testing.T) {
	bad := []string{
		"",
		"ans",
		"ans|1|2",
		"ans|1|2|3|4",
		"nope|1|2|3",
		"ans|x|2|3",
		"ans|1|x|3",
		"ans|1|2|x",
		"ans|1|-2|0",
		"ans|1|2|-1",
	}
	for _, token := range bad {
		if _, err := ParseAnswerToken(token); !errors.Is(err, ErrMalformedEvent) {
			t.Fatalf("token %q: expected ErrMalformedEvent, got %v", token, err)
		}
	}
}

func TestCorrectIndex(t *testing.T) {
	q := Question{Options: []string{"A", "B", "C"}, CorrectAnswer: "B"}
	if got := q.CorrectIndex(); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	q.CorrectAnswer = "D"
	if got := q.CorrectIndex(); got != -1 {
		t.Fatalf("expected -1 for missing answer, got %d", got)
	}
}
