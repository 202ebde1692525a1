package domain

import "errors"

var (
	// ErrSessionExpired is returned when the registry has no entry for an
	// attempt (process restarted, or the attempt already finished).
	ErrSessionExpired = errors.New("attempt session expired")
	// ErrAlreadyAnswered is returned for a duplicate answer to a question
	// index that has already left the unanswered sentinel.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrAttemptNotFound indicates the referenced attempt does not exist.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrInsufficientQuestions indicates the bank is smaller than a draw.
	ErrInsufficientQuestions = errors.New("not enough questions in bank")
	// ErrDataIntegrity indicates a bank entry whose correct answer is not
	// among its options.
	ErrDataIntegrity = errors.New("question bank integrity violation")
	// ErrStorageUnavailable wraps any persistence failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrMalformedEvent indicates an unparseable inbound event payload.
	ErrMalformedEvent = errors.New("malformed event")
)
