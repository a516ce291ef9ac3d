package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo_EventualSuccess(t *testing.T) {
	calls := 0
	var retried []int
	err := Do(context.Background(), RetryConfig{
		MaxRetries: 3,
		RetryDelay: time.Millisecond,
		OnRetry:    func(attempt int, _ error) { retried = append(retried, attempt) },
	}, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDo_Exhausted(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond},
		func(context.Context) error {
			calls++
			return boom
		})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestDo_ZeroRetriesStillTriesOnce(t *testing.T) {
	calls := 0
	_ = Do(context.Background(), RetryConfig{}, func(context.Context) error {
		calls++
		return errors.New("x")
	})
	assert.Equal(t, 1, calls)
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Do(ctx, RetryConfig{MaxRetries: 5, RetryDelay: time.Hour}, func(context.Context) error {
		calls++
		cancel()
		return errors.New("x")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
