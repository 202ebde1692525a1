package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"serpukhov-quiz-bot/internal/domain"
	"github.com/uptrace/bun"
)

// SeedQuestions replaces the Postgres question bank with the given set.
func SeedQuestions(ctx context.Context, db *bun.DB, questions []domain.Question) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM questions`); err != nil {
			return fmt.Errorf("clear question bank: %w", err)
		}
		for _, q := range questions {
			data, err := json.Marshal(q)
			if err != nil {
				return fmt.Errorf("marshal question: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO questions (data) VALUES (?::jsonb)`, string(data)); err != nil {
				return fmt.Errorf("insert question: %w", err)
			}
		}
		return nil
	})
}
