package bank

import (
	"fmt"
	"log"

	"serpukhov-quiz-bot/internal/domain"
)

// Validate filters a loaded bank down to well-formed entries: non-empty text,
// at least two unique options, and the declared correct answer present among
// them. Corrupt entries are logged and dropped; an empty result is fatal so
// the process refuses to start on a broken bank.
func Validate(questions []domain.Question) ([]domain.Question, error) {
	valid := make([]domain.Question, 0, len(questions))
	for i, q := range questions {
		if err := check(q); err != nil {
			log.Printf("rejecting bank entry %d (%.40q): %v", i, q.Text, err)
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("%w: no valid entries", domain.ErrDataIntegrity)
	}
	return valid, nil
}

func check(q domain.Question) error {
	if q.Text == "" {
		return fmt.Errorf("%w: empty question text", domain.ErrDataIntegrity)
	}
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: fewer than two options", domain.ErrDataIntegrity)
	}
	seen := make(map[string]struct{}, len(q.Options))
	for _, opt := range q.Options {
		if _, dup := seen[opt]; dup {
			return fmt.Errorf("%w: duplicate option %q", domain.ErrDataIntegrity, opt)
		}
		seen[opt] = struct{}{}
	}
	if q.CorrectIndex() < 0 {
		return fmt.Errorf("%w: correct answer %q not among options", domain.ErrDataIntegrity, q.CorrectAnswer)
	}
	return nil
}
