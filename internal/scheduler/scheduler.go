// Package scheduler owns the registry of pending reminder timers.
//
// Each allowed request with a bounded duration gets one cancellable
// one-shot timer; when it fires the notification channel is invoked
// exactly once. Reminders are best-effort, at-most-once: delivery failure
// is logged and the timer is never re-armed.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultReminderText is sent when no override is configured.
const DefaultReminderText = "Time's up! Your planned usage window has ended.\n\n" +
	"Close the app and get back to your goals."

const defaultNotifyTimeout = 15 * time.Second

// Notifier delivers a reminder to a chat. Implementations report failure;
// the scheduler never retries.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// entry is one pending timer. Lifecycle: Scheduled, then either Fired or
// Cancelled, both terminal.
type entry struct {
	userID int64
	chatID int64
	fireAt time.Time
	token  string
	timer  *time.Timer
}

// Scheduler is an explicit per-process timer registry. Construct one at
// startup and hand it to the orchestrator; there is no package-level
// instance.
//
// At most one timer is live per user: scheduling for a user with a
// pending timer cancels the prior one first.
type Scheduler struct {
	notifier      Notifier
	logger        *zap.Logger
	text          string
	notifyTimeout time.Duration

	mu      sync.Mutex
	byToken map[string]*entry
	byUser  map[int64]string
	closed  bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithReminderText overrides the reminder message.
func WithReminderText(text string) Option {
	return func(s *Scheduler) {
		if text != "" {
			s.text = text
		}
	}
}

// WithNotifyTimeout bounds each Notify call.
func WithNotifyTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.notifyTimeout = d
		}
	}
}

// New creates a scheduler delivering reminders through notifier.
func New(notifier Notifier, logger *zap.Logger, opts ...Option) (*Scheduler, error) {
	if notifier == nil {
		return nil, fmt.Errorf("notifier cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		notifier:      notifier,
		logger:        logger,
		text:          DefaultReminderText,
		notifyTimeout: defaultNotifyTimeout,
		byToken:       make(map[string]*entry),
		byUser:        make(map[int64]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Schedule registers a one-shot reminder for userID firing after d and
// returns a token usable for cancellation. d must be positive. A pending
// timer for the same user is cancelled and replaced.
func (s *Scheduler) Schedule(userID, chatID int64, d time.Duration) (string, error) {
	if d <= 0 {
		return "", fmt.Errorf("schedule: duration must be positive, got %s", d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", fmt.Errorf("schedule: scheduler is closed")
	}

	// One live reminder per user: supersede any pending timer.
	if prior, ok := s.byUser[userID]; ok {
		s.cancelLocked(prior)
		s.logger.Debug("superseded pending reminder",
			zap.Int64("user_id", userID),
			zap.String("token", prior),
		)
	}

	e := &entry{
		userID: userID,
		chatID: chatID,
		fireAt: time.Now().Add(d),
		token:  uuid.NewString(),
	}
	e.timer = time.AfterFunc(d, func() { s.fire(e.token) })
	s.byToken[e.token] = e
	s.byUser[userID] = e.token

	scheduledTotal.Inc()
	activeTimers.Set(float64(len(s.byToken)))

	s.logger.Info("reminder scheduled",
		zap.Int64("user_id", userID),
		zap.Int64("chat_id", chatID),
		zap.Time("fire_at", e.fireAt),
		zap.String("token", e.token),
	)
	return e.token, nil
}

// Cancel stops a scheduled timer before it fires. Cancelling an unknown
// or already-fired token is a benign no-op returning false.
func (s *Scheduler) Cancel(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byToken[token]; !ok {
		return false
	}
	s.cancelLocked(token)
	return true
}

// cancelLocked removes a timer. Caller holds s.mu.
func (s *Scheduler) cancelLocked(token string) {
	e, ok := s.byToken[token]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(s.byToken, token)
	delete(s.byUser, e.userID)
	cancelledTotal.Inc()
	activeTimers.Set(float64(len(s.byToken)))
}

// Active returns the number of pending timers.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

// fire transitions a timer to Fired and invokes the notifier exactly
// once. It runs on the timer's own goroutine.
func (s *Scheduler) fire(token string) {
	s.mu.Lock()
	e, ok := s.byToken[token]
	if ok {
		delete(s.byToken, token)
		delete(s.byUser, e.userID)
		activeTimers.Set(float64(len(s.byToken)))
	}
	s.mu.Unlock()

	// Lost the race against Cancel or Close.
	if !ok {
		return
	}

	firedTotal.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), s.notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(ctx, e.chatID, s.text); err != nil {
		notifyFailures.Inc()
		s.logger.Error("reminder delivery failed",
			zap.Int64("user_id", e.userID),
			zap.Int64("chat_id", e.chatID),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("reminder delivered",
		zap.Int64("user_id", e.userID),
		zap.Int64("chat_id", e.chatID),
	)
}

// Close cancels all pending timers and rejects further scheduling.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for token := range s.byToken {
		s.cancelLocked(token)
	}
}
