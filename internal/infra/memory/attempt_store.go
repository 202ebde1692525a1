package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"serpukhov-quiz-bot/internal/domain"
)

type answerRow struct {
	chosen  int
	correct int
}

// Store is the in-memory implementation of app.AttemptStore, used when no
// Postgres URL is configured and throughout the unit tests.
type Store struct {
	mu          sync.Mutex
	nextUserID  int64
	nextAttempt int64
	users       map[string]*domain.User
	attempts    map[int64]*domain.Attempt
	answers     map[int64][]answerRow
	userOrder   []string
}

func NewStore() *Store {
	return &Store{
		users:    make(map[string]*domain.User),
		attempts: make(map[int64]*domain.Attempt),
		answers:  make(map[int64][]answerRow),
	}
}

func (s *Store) UpsertUser(_ context.Context, externalID, displayName string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[externalID]; ok {
		if displayName != "" {
			user.DisplayName = displayName
		}
		return user.ID, nil
	}
	s.nextUserID++
	s.users[externalID] = &domain.User{
		ID:          s.nextUserID,
		ExternalID:  externalID,
		DisplayName: displayName,
		FirstSeen:   time.Now().UTC(),
	}
	s.userOrder = append(s.userOrder, externalID)
	return s.nextUserID, nil
}

func (s *Store) CreateAttempt(_ context.Context, userID int64, questionCount int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextAttempt++
	id := s.nextAttempt
	s.attempts[id] = &domain.Attempt{
		ID:            id,
		UserID:        userID,
		StartedAt:     time.Now().UTC(),
		QuestionCount: questionCount,
	}
	rows := make([]answerRow, questionCount)
	for i := range rows {
		rows[i] = answerRow{chosen: domain.Unanswered, correct: domain.Unanswered}
	}
	s.answers[id] = rows
	return id, nil
}

func (s *Store) RecordAnswer(_ context.Context, attemptID int64, questionIndex, chosen int, correct bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows, ok := s.answers[attemptID]
	if !ok || questionIndex < 0 || questionIndex >= len(rows) {
		return domain.ErrAttemptNotFound
	}
	if rows[questionIndex].chosen != domain.Unanswered {
		return domain.ErrAlreadyAnswered
	}
	rows[questionIndex].chosen = chosen
	if correct {
		rows[questionIndex].correct = 1
		s.attempts[attemptID].Score++
	} else {
		rows[questionIndex].correct = 0
	}
	return nil
}

func (s *Store) CompleteAttempt(_ context.Context, attemptID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return domain.ErrAttemptNotFound
	}
	attempt.Completed = true
	return nil
}

func (s *Store) AttemptScore(_ context.Context, attemptID int64) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	attempt, ok := s.attempts[attemptID]
	if !ok {
		return 0, 0, domain.ErrAttemptNotFound
	}
	return attempt.Score, attempt.QuestionCount, nil
}

func (s *Store) RecentAttempts(_ context.Context, userID int64, limit int) ([]domain.AttemptSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var summaries []domain.AttemptSummary
	for _, attempt := range s.attempts {
		if attempt.UserID == userID {
			summaries = append(summaries, domain.AttemptSummary{
				AttemptID: attempt.ID,
				StartedAt: attempt.StartedAt,
				Score:     attempt.Score,
			})
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].AttemptID > summaries[j].AttemptID
	})
	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

func (s *Store) BestScores(_ context.Context, limit int) ([]domain.LeaderboardRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	best := make(map[int64]int)
	for _, attempt := range s.attempts {
		if score, ok := best[attempt.UserID]; !ok || attempt.Score > score {
			best[attempt.UserID] = attempt.Score
		}
	}

	// Iterate users in insertion order so ties break first-inserted-wins.
	var rows []domain.LeaderboardRow
	type ranked struct {
		row   domain.LeaderboardRow
		order int
	}
	var all []ranked
	for order, externalID := range s.userOrder {
		user := s.users[externalID]
		score, ok := best[user.ID]
		if !ok {
			continue
		}
		all = append(all, ranked{row: domain.LeaderboardRow{DisplayName: user.DisplayName, BestScore: score}, order: order})
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].row.BestScore != all[j].row.BestScore {
			return all[i].row.BestScore > all[j].row.BestScore
		}
		return all[i].order < all[j].order
	})
	for _, r := range all {
		rows = append(rows, r.row)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *Store) EraseUser(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, attempt := range s.attempts {
		if attempt.UserID == userID {
			delete(s.answers, id)
			delete(s.attempts, id)
		}
	}
	for externalID, user := range s.users {
		if user.ID == userID {
			delete(s.users, externalID)
			for i, eid := range s.userOrder {
				if eid == externalID {
					s.userOrder = append(s.userOrder[:i], s.userOrder[i+1:]...)
					break
				}
			}
			break
		}
	}
	return nil
}
