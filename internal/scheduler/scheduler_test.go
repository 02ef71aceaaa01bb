package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// recordingNotifier captures Notify calls and signals each delivery.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
	err   error
	ch    chan notifyCall
}

type notifyCall struct {
	chatID int64
	text   string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{ch: make(chan notifyCall, 16)}
}

func (n *recordingNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	n.mu.Lock()
	call := notifyCall{chatID: chatID, text: text}
	n.calls = append(n.calls, call)
	n.mu.Unlock()
	n.ch <- call
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func (n *recordingNotifier) waitForCall(t *testing.T, timeout time.Duration) notifyCall {
	t.Helper()
	select {
	case call := <-n.ch:
		return call
	case <-time.After(timeout):
		t.Fatal("timed out waiting for notify call")
		return notifyCall{}
	}
}

func newTestScheduler(t *testing.T, notifier Notifier, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(notifier, zap.NewNop(), opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestNew(t *testing.T) {
	t.Run("rejects nil notifier", func(t *testing.T) {
		_, err := New(nil, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("nil logger falls back to nop", func(t *testing.T) {
		s, err := New(newRecordingNotifier(), nil)
		require.NoError(t, err)
		defer s.Close()
		assert.NotNil(t, s)
	})
}

func TestSchedule(t *testing.T) {
	t.Run("fires exactly once after the duration", func(t *testing.T) {
		notifier := newRecordingNotifier()
		s := newTestScheduler(t, notifier, WithReminderText("window closed"))

		start := time.Now()
		token, err := s.Schedule(1, 42, 50*time.Millisecond)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, 1, s.Active())

		call := notifier.waitForCall(t, time.Second)
		assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
		assert.Equal(t, int64(42), call.chatID)
		assert.Equal(t, "window closed", call.text)

		// No second delivery, registry drained.
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 1, notifier.count())
		assert.Equal(t, 0, s.Active())
	})

	t.Run("rejects non-positive duration", func(t *testing.T) {
		s := newTestScheduler(t, newRecordingNotifier())

		_, err := s.Schedule(1, 1, 0)
		assert.Error(t, err)

		_, err = s.Schedule(1, 1, -time.Minute)
		assert.Error(t, err)
	})

	t.Run("new schedule supersedes pending timer for same user", func(t *testing.T) {
		notifier := newRecordingNotifier()
		s := newTestScheduler(t, notifier)

		first, err := s.Schedule(7, 70, time.Hour)
		require.NoError(t, err)

		second, err := s.Schedule(7, 70, 40*time.Millisecond)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
		assert.Equal(t, 1, s.Active())

		// The superseded token is gone.
		assert.False(t, s.Cancel(first))

		notifier.waitForCall(t, time.Second)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, 1, notifier.count())
	})

	t.Run("independent users keep independent timers", func(t *testing.T) {
		notifier := newRecordingNotifier()
		s := newTestScheduler(t, notifier)

		_, err := s.Schedule(1, 10, 30*time.Millisecond)
		require.NoError(t, err)
		_, err = s.Schedule(2, 20, 30*time.Millisecond)
		require.NoError(t, err)
		assert.Equal(t, 2, s.Active())

		seen := map[int64]bool{}
		seen[notifier.waitForCall(t, time.Second).chatID] = true
		seen[notifier.waitForCall(t, time.Second).chatID] = true
		assert.True(t, seen[10])
		assert.True(t, seen[20])
	})

	t.Run("delivery failure is swallowed", func(t *testing.T) {
		notifier := newRecordingNotifier()
		notifier.err = errors.New("channel down")
		s := newTestScheduler(t, notifier)

		_, err := s.Schedule(1, 1, 20*time.Millisecond)
		require.NoError(t, err)

		notifier.waitForCall(t, time.Second)
		assert.Equal(t, 0, s.Active())
	})
}

func TestCancel(t *testing.T) {
	t.Run("before fire prevents delivery", func(t *testing.T) {
		notifier := newRecordingNotifier()
		s := newTestScheduler(t, notifier)

		token, err := s.Schedule(1, 1, 60*time.Millisecond)
		require.NoError(t, err)

		assert.True(t, s.Cancel(token))
		assert.Equal(t, 0, s.Active())

		time.Sleep(120 * time.Millisecond)
		assert.Equal(t, 0, notifier.count())
	})

	t.Run("after fire returns false", func(t *testing.T) {
		notifier := newRecordingNotifier()
		s := newTestScheduler(t, notifier)

		token, err := s.Schedule(1, 1, 20*time.Millisecond)
		require.NoError(t, err)

		notifier.waitForCall(t, time.Second)
		assert.False(t, s.Cancel(token))
	})

	t.Run("unknown token is a no-op", func(t *testing.T) {
		s := newTestScheduler(t, newRecordingNotifier())
		assert.False(t, s.Cancel("no-such-token"))
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		s := newTestScheduler(t, newRecordingNotifier())

		token, err := s.Schedule(1, 1, time.Hour)
		require.NoError(t, err)

		assert.True(t, s.Cancel(token))
		assert.False(t, s.Cancel(token))
	})
}

func TestClose(t *testing.T) {
	t.Run("cancels pending timers and rejects new ones", func(t *testing.T) {
		notifier := newRecordingNotifier()
		s, err := New(notifier, zap.NewNop())
		require.NoError(t, err)

		_, err = s.Schedule(1, 1, 50*time.Millisecond)
		require.NoError(t, err)

		s.Close()
		assert.Equal(t, 0, s.Active())

		_, err = s.Schedule(2, 2, time.Minute)
		assert.Error(t, err)

		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, 0, notifier.count())
	})

	t.Run("double close is safe", func(t *testing.T) {
		s, err := New(newRecordingNotifier(), zap.NewNop())
		require.NoError(t, err)
		s.Close()
		s.Close()
	})
}

func TestConcurrentScheduleCancel(t *testing.T) {
	notifier := newRecordingNotifier()
	notifier.ch = make(chan notifyCall, 1024)
	s := newTestScheduler(t, notifier)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				token, err := s.Schedule(userID, userID, time.Millisecond*time.Duration(5+j%10))
				if err != nil {
					continue
				}
				if j%3 == 0 {
					s.Cancel(token)
				}
			}
		}(int64(i % 8))
	}
	wg.Wait()

	// Registry converges: at most one live timer per distinct user.
	assert.LessOrEqual(t, s.Active(), 8)
}
