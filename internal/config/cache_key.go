package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// AnswerDraftKey returns the cache key for a student's in-progress answers
// on one attempt. The attempt deadline is part of the key so a restarted
// attempt never inherits a stale draft.
func (r *CacheKeyStruct) AnswerDraftKey(examID, studentID string, endUnix int64) string {
	return fmt.Sprintf("proctor:student:%s:exam:%s:attempt:%d:draft", studentID, examID, endUnix)
}

var CacheKey = NewCacheKeyStruct()
