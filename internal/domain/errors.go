package domain

import "errors"

var (
	// ErrQuestionSetNotFound indicates the requested set is not in the backing store.
	ErrQuestionSetNotFound = errors.New("question set not found")
	// ErrEmptyQuestionSet indicates a set exists but holds no questions to draw from.
	ErrEmptyQuestionSet = errors.New("question set has no questions")
)
