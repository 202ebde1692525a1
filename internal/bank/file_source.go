package bank

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"serpukhov-quiz-bot/internal/domain"
)

// FileSource reads the bank from a JSON file: an array of records with
// "question", "options", "correct_answer" and optional "explanation".
type FileSource struct {
	path string
}

func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

func (s *FileSource) Load(_ context.Context) ([]domain.Question, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	return questions, nil
}

// StaticSource is an in-memory source for tests and demos.
type StaticSource struct {
	questions []domain.Question
}

func NewStaticSource(questions []domain.Question) *StaticSource {
	return &StaticSource{questions: questions}
}

func (s *StaticSource) Load(_ context.Context) ([]domain.Question, error) {
	return s.questions, nil
}
