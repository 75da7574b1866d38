package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestEnqueueWithRetrySucceedsFirstTry(t *testing.T) {
	q := new(MockQueue)
	task := Task{Type: TaskTypeIngest, Payload: []byte(`{}`)}
	q.On("Enqueue", mock.Anything, task).Return(nil).Once()

	err := EnqueueWithRetry(context.Background(), q, task, 3, time.Millisecond)

	require.NoError(t, err)
	q.AssertExpectations(t)
}

func TestEnqueueWithRetryRecovers(t *testing.T) {
	q := new(MockQueue)
	task := Task{Type: TaskTypeIngest}
	q.On("Enqueue", mock.Anything, task).Return(errors.New("broker down")).Once()
	q.On("Enqueue", mock.Anything, task).Return(nil).Once()

	err := EnqueueWithRetry(context.Background(), q, task, 3, time.Millisecond)

	require.NoError(t, err)
	q.AssertExpectations(t)
}

func TestEnqueueWithRetryExhaustsAttempts(t *testing.T) {
	q := new(MockQueue)
	task := Task{Type: TaskTypeIngest}
	q.On("Enqueue", mock.Anything, task).Return(errors.New("broker down")).Times(3)

	err := EnqueueWithRetry(context.Background(), q, task, 3, time.Millisecond)

	require.Error(t, err)
	assert.ErrorContains(t, err, "broker down")
	q.AssertExpectations(t)
}

func TestEnqueueWithRetryRespectsContext(t *testing.T) {
	q := new(MockQueue)
	task := Task{Type: TaskTypeIngest}
	q.On("Enqueue", mock.Anything, task).Return(errors.New("broker down")).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := EnqueueWithRetry(ctx, q, task, 3, time.Hour)

	require.ErrorIs(t, err, context.Canceled)
	q.AssertExpectations(t)
}

func TestEnqueueWithRetryZeroAttempts(t *testing.T) {
	q := new(MockQueue)
	task := Task{Type: TaskTypeIngest}
	q.On("Enqueue", mock.Anything, task).Return(nil).Once()

	err := EnqueueWithRetry(context.Background(), q, task, 0, time.Millisecond)

	require.NoError(t, err)
	q.AssertExpectations(t)
}
