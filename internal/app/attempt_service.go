package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"serpukhov-quiz-bot/internal/domain"
)

// AttemptStore is the durable side of an attempt: users, attempts, answers.
// Every method is a single atomic operation from the caller's perspective.
type AttemptStore interface {
	// UpsertUser returns the existing user id for externalID or inserts a
	// fresh row with the current timestamp.
	UpsertUser(ctx context.Context, externalID, displayName string) (int64, error)
	// CreateAttempt inserts the attempt plus questionCount placeholder
	// answer rows in one transaction.
	CreateAttempt(ctx context.Context, userID int64, questionCount int) (int64, error)
	// RecordAnswer updates the single matching placeholder row and, when
	// correct, increments the attempt score in the same transaction.
	// Returns domain.ErrAlreadyAnswered if the row already left the
	// unanswered sentinel, domain.ErrAttemptNotFound if no such row exists.
	RecordAnswer(ctx context.Context, attemptID int64, questionIndex, chosen int, correct bool) error
	// CompleteAttempt marks the attempt completed; idempotent.
	CompleteAttempt(ctx context.Context, attemptID int64) error
	AttemptScore(ctx context.Context, attemptID int64) (score, questionCount int, err error)
	RecentAttempts(ctx context.Context, userID int64, limit int) ([]domain.AttemptSummary, error)
	BestScores(ctx context.Context, limit int) ([]domain.LeaderboardRow, error)
	// EraseUser cascades answers -> attempts -> user in one transaction.
	EraseUser(ctx context.Context, userID int64) error
}

// SessionRegistry holds the transient working set of in-flight attempts.
type SessionRegistry interface {
	Start(ctx context.Context, session domain.AttemptSession) error
	// Get returns domain.ErrSessionExpired for unknown attempt ids.
	Get(ctx context.Context, attemptID int64) (domain.AttemptSession, error)
	// Advance increments the cursor and returns the updated session.
	Advance(ctx context.Context, attemptID int64) (domain.AttemptSession, error)
	End(ctx context.Context, attemptID int64) error
}

// QuestionBank draws the question set for a new attempt.
type QuestionBank interface {
	Draw(ctx context.Context, n int) ([]domain.Question, error)
}

// Notifier is the outbound chat adapter boundary.
type Notifier interface {
	SendText(chatID, text string)
	SendQuestion(chatID, text string, options []domain.AnswerOption)
}

// Options tune one service instance.
type Options struct {
	QuestionsPerTest int
	PassScore        int
	LeaderboardSize  int
}

// AttemptService drives an attempt from creation through question-by-question
// answering to completion, and serves the read-side score/leaderboard views.
type AttemptService struct {
	store    AttemptStore
	registry SessionRegistry
	bank     QuestionBank
	notifier Notifier
	opts     Options
}

func NewAttemptService(store AttemptStore, registry SessionRegistry, bank QuestionBank, notifier Notifier, opts Options) *AttemptService {
	if opts.QuestionsPerTest <= 0 {
		opts.QuestionsPerTest = 12
	}
	if opts.PassScore <= 0 {
		opts.PassScore = 10
	}
	if opts.LeaderboardSize <= 0 {
		opts.LeaderboardSize = 10
	}
	return &AttemptService{store: store, registry: registry, bank: bank, notifier: notifier, opts: opts}
}

// StartQuiz draws a fresh question set, creates the attempt with its answer
// placeholders, registers the session and emits the first question. A user
// mid-way through another attempt keeps that attempt's session intact.
func (s *AttemptService) StartQuiz(ctx context.Context, chatID, externalID, displayName string) error {
	userID, err := s.store.UpsertUser(ctx, externalID, displayName)
	if err != nil {
		return s.report(chatID, err)
	}

	questions, err := s.bank.Draw(ctx, s.opts.QuestionsPerTest)
	if err != nil {
		return s.report(chatID, err)
	}

	attemptID, err := s.store.CreateAttempt(ctx, userID, len(questions))
	if err != nil {
		return s.report(chatID, err)
	}

	session := domain.AttemptSession{
		AttemptID: attemptID,
		ChatID:    chatID,
		Questions: questions,
		Cursor:    0,
		StartedAt: time.Now().UTC(),
	}
	if err := s.registry.Start(ctx, session); err != nil {
		return s.report(chatID, err)
	}

	s.sendQuestion(session, 0)
	return nil
}

// HandleAnswer processes one answer action token: records the answer exactly
// once, reports feedback and the running score, then either emits the next
// question or finalizes the attempt.
func (s *AttemptService) HandleAnswer(ctx context.Context, chatID, token string) error {
	event, err := domain.ParseAnswerToken(token)
	if err != nil {
		return s.report(chatID, err)
	}

	session, err := s.registry.Get(ctx, event.AttemptID)
	if err != nil {
		return s.report(chatID, err)
	}
	if event.QuestionIndex >= len(session.Questions) {
		return s.report(chatID, domain.ErrMalformedEvent)
	}

	question := session.Questions[event.QuestionIndex]
	if event.OptionIndex >= len(question.Options) {
		return s.report(chatID, domain.ErrMalformedEvent)
	}
	correctIndex := question.CorrectIndex()
	if correctIndex < 0 {
		// Bank validation should make this unreachable; never guess
		// correctness from a corrupt entry.
		return s.report(chatID, domain.ErrDataIntegrity)
	}
	correct := event.OptionIndex == correctIndex

	if err := s.store.RecordAnswer(ctx, event.AttemptID, event.QuestionIndex, event.OptionIndex, correct); err != nil {
		return s.report(chatID, err)
	}

	feedback := fmt.Sprintf("You picked: %s\nCorrect answer: %s", question.Options[event.OptionIndex], question.CorrectAnswer)
	if question.Explanation != "" {
		feedback += "\n" + question.Explanation
	}
	s.notifier.SendText(chatID, feedback)

	score, total, err := s.store.AttemptScore(ctx, event.AttemptID)
	if err != nil {
		return s.report(chatID, err)
	}
	s.notifier.SendText(chatID, fmt.Sprintf("Current score: %d of %d", score, total))

	session, err = s.registry.Advance(ctx, event.AttemptID)
	if err != nil {
		return s.report(chatID, err)
	}
	if session.Cursor >= len(session.Questions) {
		return s.finalize(ctx, chatID, event.AttemptID)
	}
	s.sendQuestion(session, session.Cursor)
	return nil
}

// finalize marks the attempt completed, drops the session and reports the
// pass/fail summary followed by the leaderboard. Completing twice is a no-op.
func (s *AttemptService) finalize(ctx context.Context, chatID string, attemptID int64) error {
	if err := s.store.CompleteAttempt(ctx, attemptID); err != nil {
		return s.report(chatID, err)
	}
	if err := s.registry.End(ctx, attemptID); err != nil && !errors.Is(err, domain.ErrSessionExpired) {
		return s.report(chatID, err)
	}

	score, total, err := s.store.AttemptScore(ctx, attemptID)
	if err != nil {
		return s.report(chatID, err)
	}
	if score >= s.opts.PassScore {
		s.notifier.SendText(chatID, fmt.Sprintf("Congratulations! You scored %d/%d and qualified for the Serpukhov trip!", score, total))
	} else {
		s.notifier.SendText(chatID, fmt.Sprintf("Quiz finished. You scored %d/%d. Try again to reach at least %d.", score, total, s.opts.PassScore))
	}
	return s.ShowLeaderboard(ctx, chatID)
}

// ShowScore lists the user's most recent attempts.
func (s *AttemptService) ShowScore(ctx context.Context, chatID, externalID, displayName string) error {
	userID, err := s.store.UpsertUser(ctx, externalID, displayName)
	if err != nil {
		return s.report(chatID, err)
	}
	attempts, err := s.store.RecentAttempts(ctx, userID, 10)
	if err != nil {
		return s.report(chatID, err)
	}
	if len(attempts) == 0 {
		s.notifier.SendText(chatID, "No results yet. Send /test to take the quiz.")
		return nil
	}

	var b strings.Builder
	b.WriteString("Your recent attempts:\n")
	for i, attempt := range attempts {
		fmt.Fprintf(&b, "%d. %d/%d — %s\n", i+1, attempt.Score, s.opts.QuestionsPerTest, attempt.StartedAt.Format(time.RFC3339))
	}
	s.notifier.SendText(chatID, b.String())
	return nil
}

// ShowLeaderboard renders the best score per user, ranked descending.
func (s *AttemptService) ShowLeaderboard(ctx context.Context, chatID string) error {
	rows, err := s.store.BestScores(ctx, s.opts.LeaderboardSize)
	if err != nil {
		return s.report(chatID, err)
	}
	if len(rows) == 0 {
		s.notifier.SendText(chatID, "The leaderboard is empty so far.")
		return nil
	}

	var b strings.Builder
	b.WriteString("Top players:\n")
	for i, row := range rows {
		name := row.DisplayName
		if name == "" {
			name = "Player"
		}
		fmt.Fprintf(&b, "%d. %s — %d/%d\n", i+1, name, row.BestScore, s.opts.QuestionsPerTest)
	}
	s.notifier.SendText(chatID, b.String())
	return nil
}

// ResetUser erases everything owned by the user. In-flight sessions are left
// to expire: their attempt rows are gone, so any further answer resolves to a
// session-expired notice.
func (s *AttemptService) ResetUser(ctx context.Context, chatID, externalID, displayName string) error {
	userID, err := s.store.UpsertUser(ctx, externalID, displayName)
	if err != nil {
		return s.report(chatID, err)
	}
	if err := s.store.EraseUser(ctx, userID); err != nil {
		return s.report(chatID, err)
	}
	s.notifier.SendText(chatID, "All your data has been deleted.")
	return nil
}

// Help greets the user and registers them on first contact.
func (s *AttemptService) Help(ctx context.Context, chatID, externalID, displayName string) error {
	if _, err := s.store.UpsertUser(ctx, externalID, displayName); err != nil {
		return s.report(chatID, err)
	}
	s.notifier.SendText(chatID,
		"Hi! I'm the Serpukhov history and culture quiz bot.\n\n"+
			"Commands:\n"+
			"/test — start the quiz\n"+
			"/score — see your results\n"+
			"/leaderboard — top players by best score\n"+
			"/reset — delete your data")
	return nil
}

// Unknown answers anything that is not a recognized command.
func (s *AttemptService) Unknown(chatID string) {
	s.notifier.SendText(chatID, "Send /test to take the quiz, or /help for the command list.")
}

func (s *AttemptService) sendQuestion(session domain.AttemptSession, index int) {
	question := session.Questions[index]
	options := make([]domain.AnswerOption, len(question.Options))
	for i, opt := range question.Options {
		options[i] = domain.AnswerOption{
			Label: opt,
			Token: domain.EncodeAnswerToken(session.AttemptID, index, i),
		}
	}
	s.notifier.SendQuestion(session.ChatID, fmt.Sprintf("Question %d:\n%s", index+1, question.Text), options)
}

// report translates an error into exactly one user-facing message per
// category and passes the original through for transport-level logging.
func (s *AttemptService) report(chatID string, err error) error {
	switch {
	case errors.Is(err, domain.ErrSessionExpired), errors.Is(err, domain.ErrAttemptNotFound):
		s.notifier.SendText(chatID, "This quiz session has expired. Send /test to start over.")
	case errors.Is(err, domain.ErrAlreadyAnswered):
		s.notifier.SendText(chatID, "You already answered that question.")
	case errors.Is(err, domain.ErrMalformedEvent):
		s.notifier.SendText(chatID, "I couldn't read that answer. Send /test to start over.")
	case errors.Is(err, domain.ErrInsufficientQuestions):
		s.notifier.SendText(chatID, "The quiz is not available right now, please try again later.")
	case errors.Is(err, domain.ErrDataIntegrity):
		s.notifier.SendText(chatID, "Something went wrong with that question. Send /test to start over.")
	default:
		log.Printf("storage failure for chat %s: %v", chatID, err)
		s.notifier.SendText(chatID, "Something went wrong, please try again.")
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	return err
}
