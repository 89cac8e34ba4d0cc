// Package draft keeps in-progress answers in Redis so an agent restart
// during an attempt does not lose them.
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// Cmdable is the slice of the Redis API the store uses.
type Cmdable interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// record is the stored value.
type record struct {
	Answers []model.AnswerEntry `json:"answers"`
	SavedAt model.Timestamp     `json:"savedAt"`
}

// RedisStore saves one draft per attempt. The key includes the attempt
// deadline so a new attempt of the same exam starts clean.
type RedisStore struct {
	rdb       Cmdable
	ttl       time.Duration
	studentID string
	now       func() time.Time
	log       zerolog.Logger
}

// NewRedisStore builds a store. studentID is used for attempts the backend
// returned without one.
func NewRedisStore(rdb Cmdable, ttl time.Duration, studentID string, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		rdb:       rdb,
		ttl:       ttl,
		studentID: studentID,
		now:       time.Now,
		log:       log.With().Str("component", "draft").Logger(),
	}
}

func (s *RedisStore) key(attempt *model.AttemptSession) (string, error) {
	if attempt == nil {
		return "", errors.New("draft key: no attempt")
	}
	student := attempt.StudentID.String()
	if student == "" {
		student = s.studentID
	}
	if student == "" || attempt.ExamID == "" || attempt.EndTime.IsZero() {
		return "", errors.New("draft key: attempt is missing student, exam or deadline")
	}
	return config.CacheKey.AnswerDraftKey(attempt.ExamID.String(), student, attempt.EndTime.Unix()), nil
}

// Load returns the saved answers, or nil when there is no draft.
func (s *RedisStore) Load(ctx context.Context, attempt *model.AttemptSession) ([]model.AnswerEntry, error) {
	key, err := s.key(attempt)
	if err != nil {
		return nil, err
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding malformed draft")
		return nil, nil
	}
	return rec.Answers, nil
}

// Save overwrites the draft for attempt.
func (s *RedisStore) Save(ctx context.Context, attempt *model.AttemptSession, answers []model.AnswerEntry) error {
	key, err := s.key(attempt)
	if err != nil {
		return err
	}
	data, err := json.Marshal(record{Answers: answers, SavedAt: model.NewTimestamp(s.now())})
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	if err := s.rdb.Set(ctx, key, data, s.expiry(attempt)).Err(); err != nil {
		return fmt.Errorf("set draft: %w", err)
	}
	return nil
}

// Clear removes the draft once the attempt is submitted.
func (s *RedisStore) Clear(ctx context.Context, attempt *model.AttemptSession) error {
	key, err := s.key(attempt)
	if err != nil {
		return err
	}
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// expiry keeps a draft until the deadline plus the configured grace, so a
// draft never outlives its attempt by more than ttl.
func (s *RedisStore) expiry(attempt *model.AttemptSession) time.Duration {
	left := attempt.EndTime.Sub(s.now())
	if left < 0 {
		left = 0
	}
	return left + s.ttl
}
