// Package scoring grades multiple-choice answers against a job's answer key.
package scoring

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoAnswerKey is returned when the job has no questions to grade.
	ErrNoAnswerKey = errors.New("job has no answer key")
)

// Result is the outcome of grading one submission.
type Result struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Score   float64 `json:"score"`
}

// Grade compares answers to key position by position. A missing answer
// counts as wrong; comparison ignores surrounding whitespace and case.
// Score is correct/total*100.
func Grade(key, answers []string) (Result, error) {
	if len(key) == 0 {
		return Result{}, ErrNoAnswerKey
	}
	if len(answers) > len(key) {
		return Result{}, fmt.Errorf("got %d answers for %d questions", len(answers), len(key))
	}

	var correct int
	for i, want := range key {
		if i >= len(answers) {
			break
		}
		if normalize(answers[i]) == normalize(want) {
			correct++
		}
	}
	return Result{
		Correct: correct,
		Total:   len(key),
		Score:   float64(correct) / float64(len(key)) * 100,
	}, nil
}

func normalize(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
