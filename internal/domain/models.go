package domain

import "time"

// Unanswered is the sentinel stored in an answer row until the user picks an
// option. It gates scoring: an answer row leaves the sentinel exactly once.
const Unanswered = -1

// Question is one multiple-choice question from the bank.
type Question struct {
	Text          string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// CorrectIndex locates the declared correct answer within the option list.
// Returns -1 when the bank entry is corrupt (correct answer not among options).
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt == q.CorrectAnswer {
			return i
		}
	}
	return -1
}

// User is a chat-platform user as persisted by the store.
type User struct {
	ID          int64
	ExternalID  string
	DisplayName string
	FirstSeen   time.Time
}

// Attempt is one run of the quiz by one user.
type Attempt struct {
	ID            int64
	UserID        int64
	StartedAt     time.Time
	Completed     bool
	Score         int
	QuestionCount int
}

// AttemptSummary is the per-user history view (most recent first).
type AttemptSummary struct {
	AttemptID int64
	StartedAt time.Time
	Score     int
}

// LeaderboardRow ranks a user by their best score across all attempts.
type LeaderboardRow struct {
	DisplayName string
	BestScore   int
}

// AttemptSession is the transient working set for an in-flight attempt: the
// exact questions drawn for it and the delivery cursor. Keyed by attempt id,
// never by user, so concurrent attempts by one user stay independent.
type AttemptSession struct {
	AttemptID int64      `json:"attemptId"`
	ChatID    string     `json:"chatId"`
	Questions []Question `json:"questions"`
	Cursor    int        `json:"cursor"`
	StartedAt time.Time  `json:"startedAt"`
}

// AnswerOption is one selectable control rendered by the chat adapter.
type AnswerOption struct {
	Label string `json:"label"`
	Token string `json:"token"`
}
