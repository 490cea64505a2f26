package rule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harutaka/shiwake/internal/model"
	"github.com/harutaka/shiwake/internal/service"
)

// stubCounter implements the single store method the recorder needs.
type stubCounter struct {
	err error
	ids []int64
}

func (s *stubCounter) RecordMatch(_ context.Context, ruleID int64) {
	s.ids = append(s.ids, ruleID)
}

// stubRuleStore is a service.RuleStore whose counter update can be made to
// fail; every other method is unused by the recorder.
type stubRuleStore struct {
	err         error
	incremented []int64
}

func (s *stubRuleStore) CreateLearningRule(_ context.Context, _ *model.LearningRule) error {
	return nil
}

func (s *stubRuleStore) GetLearningRule(_ context.Context, _ int64) (*model.LearningRule, error) {
	return nil, nil
}

func (s *stubRuleStore) GetEnabledLearningRules(_ context.Context) ([]model.LearningRule, error) {
	return nil, nil
}

func (s *stubRuleStore) UpdateLearningRule(_ context.Context, _ int64, _ service.RuleUpdate) error {
	return nil
}

func (s *stubRuleStore) DeleteLearningRule(_ context.Context, _ int64) error { return nil }

func (s *stubRuleStore) SearchLearningRules(_ context.Context, _ service.RuleSearchFilter) (*service.RuleSearchResult, error) {
	return nil, nil
}

func (s *stubRuleStore) IncrementLearningRuleMatchCount(_ context.Context, id int64) error {
	s.incremented = append(s.incremented, id)
	return s.err
}

func TestStoreRecorder_RecordsThroughStore(t *testing.T) {
	store := &stubRuleStore{}
	recorder := NewStoreRecorder(store)

	recorder.RecordMatch(context.Background(), 7)
	assert.Equal(t, []int64{7}, store.incremented)
}

func TestStoreRecorder_SwallowsStoreError(t *testing.T) {
	store := &stubRuleStore{err: errors.New("disk full")}
	recorder := NewStoreRecorder(store)

	// Must not panic or surface the error in any way.
	assert.NotPanics(t, func() {
		recorder.RecordMatch(context.Background(), 7)
	})
	assert.Equal(t, []int64{7}, store.incremented)
}

func TestAsyncRecorder_DrainsOnClose(t *testing.T) {
	inner := &stubCounter{}
	recorder := NewAsyncRecorder(inner, 16)

	for i := int64(1); i <= 5; i++ {
		recorder.RecordMatch(context.Background(), i)
	}
	recorder.Close()

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, inner.ids)
}

func TestAsyncRecorder_CloseIsIdempotent(t *testing.T) {
	recorder := NewAsyncRecorder(&stubCounter{}, 1)
	recorder.Close()
	assert.NotPanics(t, func() { recorder.Close() })
}

func TestAsyncRecorder_DropsEventsAfterClose(t *testing.T) {
	inner := &stubCounter{}
	recorder := NewAsyncRecorder(inner, 4)
	recorder.Close()

	// A match racing shutdown loses its counter tick, nothing more.
	assert.NotPanics(t, func() {
		recorder.RecordMatch(context.Background(), 42)
	})
	assert.Empty(t, inner.ids)
}
