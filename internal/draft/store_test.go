package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

var now = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func newStore(rdb Cmdable) *RedisStore {
	s := NewRedisStore(rdb, time.Hour, "42", zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

func attempt() *model.AttemptSession {
	return &model.AttemptSession{ExamID: "e1", EndTime: model.NewTimestamp(now.Add(30 * time.Minute))}
}

func TestSaveLoadClear(t *testing.T) {
	rdb := newFakeRedis()
	s := newStore(rdb)
	ctx := context.Background()
	opt := 2

	got, err := s.Load(ctx, attempt())
	require.NoError(t, err)
	assert.Nil(t, got)

	answers := []model.AnswerEntry{{QuestionID: "q1", SelectedOption: &opt}, {QuestionID: "q2"}}
	require.NoError(t, s.Save(ctx, attempt(), answers))

	key := "proctor:student:42:exam:e1:attempt:" + "1772440200" + ":draft"
	require.Contains(t, rdb.data, key)
	assert.Equal(t, 90*time.Minute, rdb.ttls[key])

	got, err = s.Load(ctx, attempt())
	require.NoError(t, err)
	assert.Equal(t, answers, got)

	require.NoError(t, s.Clear(ctx, attempt()))
	assert.Empty(t, rdb.data)
}

func TestAttemptStudentIDWins(t *testing.T) {
	rdb := newFakeRedis()
	s := newStore(rdb)
	a := attempt()
	a.StudentID = "7"
	require.NoError(t, s.Save(context.Background(), a, nil))
	for k := range rdb.data {
		assert.Contains(t, k, "student:7:")
	}
}

func TestNewAttemptDoesNotSeeOldDraft(t *testing.T) {
	rdb := newFakeRedis()
	s := newStore(rdb)
	opt := 1
	require.NoError(t, s.Save(context.Background(), attempt(), []model.AnswerEntry{{QuestionID: "q1", SelectedOption: &opt}}))

	next := attempt()
	next.EndTime = model.NewTimestamp(now.Add(2 * time.Hour))
	got, err := s.Load(context.Background(), next)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadErrors(t *testing.T) {
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")
	s := newStore(rdb)
	_, err := s.Load(context.Background(), attempt())
	assert.ErrorContains(t, err, "connection refused")

	_, err = newStore(newFakeRedis()).Load(context.Background(), &model.AttemptSession{ExamID: "e1"})
	assert.Error(t, err)
}

func TestMalformedDraftIsIgnored(t *testing.T) {
	rdb := newFakeRedis()
	s := newStore(rdb)
	key, err := s.key(attempt())
	require.NoError(t, err)
	rdb.data[key] = "{not json"

	got, err := s.Load(context.Background(), attempt())
	require.NoError(t, err)
	assert.Nil(t, got)
}
