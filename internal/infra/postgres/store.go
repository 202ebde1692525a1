package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"serpukhov-quiz-bot/internal/domain"
	"github.com/uptrace/bun"
)

type userRow struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID          int64     `bun:"id,pk,autoincrement"`
	ExternalID  string    `bun:"external_id,notnull"`
	DisplayName string    `bun:"display_name,notnull"`
	FirstSeen   time.Time `bun:"first_seen,notnull"`
}

type attemptRow struct {
	bun.BaseModel `bun:"table:attempts,alias:a"`

	ID            int64     `bun:"id,pk,autoincrement"`
	UserID        int64     `bun:"user_id,notnull"`
	StartedAt     time.Time `bun:"started_at,notnull"`
	Completed     bool      `bun:"completed,notnull"`
	Score         int       `bun:"score,notnull"`
	QuestionCount int       `bun:"question_count,notnull"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:answers,alias:ans"`

	AttemptID     int64 `bun:"attempt_id,pk"`
	QuestionIndex int   `bun:"question_index,pk"`
	Chosen        int   `bun:"chosen,notnull"`
	Correct       int   `bun:"correct,notnull"`
}

// Store is the bun-backed implementation of app.AttemptStore.
type Store struct {
	db *bun.DB
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertUser(ctx context.Context, externalID, displayName string) (int64, error) {
	row := &userRow{
		ExternalID:  externalID,
		DisplayName: displayName,
		FirstSeen:   time.Now().UTC(),
	}
	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (external_id) DO UPDATE").
		Set("display_name = CASE WHEN EXCLUDED.display_name <> '' THEN EXCLUDED.display_name ELSE u.display_name END").
		Returning("id").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("upsert user: %w", err)
	}
	return row.ID, nil
}

// CreateAttempt inserts the attempt and its unanswered placeholder rows in
// one transaction so a partially initialized attempt is never observable.
func (s *Store) CreateAttempt(ctx context.Context, userID int64, questionCount int) (int64, error) {
	attempt := &attemptRow{
		UserID:        userID,
		StartedAt:     time.Now().UTC(),
		QuestionCount: questionCount,
	}
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(attempt).Returning("id").Exec(ctx); err != nil {
			return err
		}
		placeholders := make([]answerRow, questionCount)
		for i := range placeholders {
			placeholders[i] = answerRow{
				AttemptID:     attempt.ID,
				QuestionIndex: i,
				Chosen:        domain.Unanswered,
				Correct:       domain.Unanswered,
			}
		}
		_, err := tx.NewInsert().Model(&placeholders).Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("create attempt: %w", err)
	}
	return attempt.ID, nil
}

// RecordAnswer flips the placeholder exactly once: the update is guarded by
// the unanswered sentinel, and the score increment is SQL arithmetic so
// concurrent answers for different questions never lose updates.
func (s *Store) RecordAnswer(ctx context.Context, attemptID int64, questionIndex, chosen int, correct bool) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*answerRow)(nil)).
			Set("chosen = ?", chosen).
			Set("correct = ?", boolToInt(correct)).
			Where("attempt_id = ?", attemptID).
			Where("question_index = ?", questionIndex).
			Where("chosen = ?", domain.Unanswered).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("record answer: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("record answer: %w", err)
		}
		if affected == 0 {
			exists, err := tx.NewSelect().
				Model((*answerRow)(nil)).
				Where("attempt_id = ?", attemptID).
				Where("question_index = ?", questionIndex).
				Exists(ctx)
			if err != nil {
				return fmt.Errorf("record answer: %w", err)
			}
			if exists {
				return domain.ErrAlreadyAnswered
			}
			return domain.ErrAttemptNotFound
		}
		if correct {
			if _, err := tx.NewUpdate().
				Model((*attemptRow)(nil)).
				Set("score = score + 1").
				Where("id = ?", attemptID).
				Exec(ctx); err != nil {
				return fmt.Errorf("increment score: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) CompleteAttempt(ctx context.Context, attemptID int64) error {
	res, err := s.db.NewUpdate().
		Model((*attemptRow)(nil)).
		Set("completed = TRUE").
		Where("id = ?", attemptID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	if affected == 0 {
		return domain.ErrAttemptNotFound
	}
	return nil
}

func (s *Store) AttemptScore(ctx context.Context, attemptID int64) (int, int, error) {
	var row attemptRow
	err := s.db.NewSelect().
		Model(&row).
		Column("score", "question_count").
		Where("id = ?", attemptID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, domain.ErrAttemptNotFound
	}
	if err != nil {
		return 0, 0, fmt.Errorf("attempt score: %w", err)
	}
	return row.Score, row.QuestionCount, nil
}

func (s *Store) RecentAttempts(ctx context.Context, userID int64, limit int) ([]domain.AttemptSummary, error) {
	var rows []attemptRow
	err := s.db.NewSelect().
		Model(&rows).
		Column("id", "started_at", "score").
		Where("user_id = ?", userID).
		OrderExpr("id DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	summaries := make([]domain.AttemptSummary, len(rows))
	for i, row := range rows {
		summaries[i] = domain.AttemptSummary{
			AttemptID: row.ID,
			StartedAt: row.StartedAt,
			Score:     row.Score,
		}
	}
	return summaries, nil
}

func (s *Store) BestScores(ctx context.Context, limit int) ([]domain.LeaderboardRow, error) {
	var rows []struct {
		DisplayName string `bun:"display_name"`
		BestScore   int    `bun:"best_score"`
	}
	err := s.db.NewRaw(`
		SELECT u.display_name, MAX(a.score) AS best_score
		FROM attempts a
		JOIN users u ON u.id = a.user_id
		GROUP BY a.user_id, u.display_name
		ORDER BY best_score DESC, a.user_id ASC
		LIMIT ?`, limit).
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("best scores: %w", err)
	}
	board := make([]domain.LeaderboardRow, len(rows))
	for i, row := range rows {
		board[i] = domain.LeaderboardRow{DisplayName: row.DisplayName, BestScore: row.BestScore}
	}
	return board, nil
}

// EraseUser deletes answers, attempts and the user row in one transaction.
func (s *Store) EraseUser(ctx context.Context, userID int64) error {
	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*answerRow)(nil)).
			Where("attempt_id IN (SELECT id FROM attempts WHERE user_id = ?)", userID).
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().
			Model((*attemptRow)(nil)).
			Where("user_id = ?", userID).
			Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().
			Model((*userRow)(nil)).
			Where("id = ?", userID).
			Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("erase user: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
