package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AttemptAnswersKey returns the cache key for an attempt's autosaved answers.
func (r *CacheKeyStruct) AttemptAnswersKey(studentID, quizID string) string {
	return fmt.Sprintf("attempt:%s:%s:answers", studentID, quizID)
}

// AttemptViolationsKey returns the cache key for an attempt's violation counter.
func (r *CacheKeyStruct) AttemptViolationsKey(studentID, quizID string) string {
	return fmt.Sprintf("attempt:%s:%s:violations", studentID, quizID)
}

// AttemptStartKey returns the cache key for an attempt's start timestamp.
func (r *CacheKeyStruct) AttemptStartKey(studentID, quizID string) string {
	return fmt.Sprintf("attempt:%s:%s:started_at", studentID, quizID)
}

var CacheKey = NewCacheKeyStruct()
