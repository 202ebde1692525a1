package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const answerTokenPrefix = "ans"

// AnswerEvent is the decoded form of an answer action token.
type AnswerEvent struct {
	AttemptID     int64
	QuestionIndex int
	OptionIndex   int
}

// EncodeAnswerToken builds the opaque callback token attached to one option
// control: "ans|{attemptID}|{questionIndex}|{optionIndex}".
func EncodeAnswerToken(attemptID int64, questionIndex, optionIndex int) string {
	return fmt.Sprintf("%s|%d|%d|%d", answerTokenPrefix, attemptID, questionIndex, optionIndex)
}

// ParseAnswerToken decodes a token produced by EncodeAnswerToken. Any
// deviation from the expected shape yields ErrMalformedEvent.
func ParseAnswerToken(token string) (AnswerEvent, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 4 || parts[0] != answerTokenPrefix {
		return AnswerEvent{}, ErrMalformedEvent
	}
	attemptID, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return AnswerEvent{}, ErrMalformedEvent
	}
	questionIndex, err := strconv.Atoi(parts[2])
	if err != nil || questionIndex < 0 {
		return AnswerEvent{}, ErrMalformedEvent
	}
	optionIndex, err := strconv.Atoi(parts[3])
	if err != nil || optionIndex < 0 {
		return AnswerEvent{}, ErrMalformedEvent
	}
	return AnswerEvent{AttemptID: attemptID, QuestionIndex: questionIndex, OptionIndex: optionIndex}, nil
}
