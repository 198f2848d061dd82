package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(studentID int) string {
	return fmt.Sprintf("login:%d", studentID)
}

// QuizPayloadKey returns the cache key for a quiz's student-facing payload
func (r *CacheKeyStruct) QuizPayloadKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:payload", quizID)
}

// LeaderboardTopKey returns the cache key for a cached top-N leaderboard snapshot
func (r *CacheKeyStruct) LeaderboardTopKey(subjectKey, scopeID, bucket string) string {
	return fmt.Sprintf("lb:%s:%s:%s:top", subjectKey, scopeID, bucket)
}

var CacheKey = NewCacheKeyStruct()
