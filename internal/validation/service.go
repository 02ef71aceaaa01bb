// Package validation orchestrates one validation request end to end:
// load the user's rules, obtain a verdict from the decision pipeline,
// persist history, and arrange a reminder for allowed time-boxed requests.
//
// This is the only component that knows the store, the pipeline, and the
// scheduler at the same time.
package validation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blockmatelabs/blockmated/internal/judge"
	"github.com/blockmatelabs/blockmated/internal/user"
	"go.uber.org/zap"
)

// ErrInvalidRequest flags malformed caller input (empty text, bad
// duration). Distinct from user.ErrNotFound.
var ErrInvalidRequest = errors.New("invalid request")

// Store is the persistent user store the orchestrator depends on.
type Store interface {
	Create(ctx context.Context, telegramID int64, username string) error
	Get(ctx context.Context, telegramID int64) (user.User, error)
	SetGoals(ctx context.Context, telegramID int64, goals, allowed, forbidden []string) error
	AppendHistory(ctx context.Context, telegramID int64, entry user.HistoryEntry) error
	History(ctx context.Context, telegramID int64, limit int) ([]user.HistoryEntry, error)
}

// Decider produces a verdict for one request. Implemented by
// judge.Pipeline; never fails (fail-closed fallback inside).
type Decider interface {
	Decide(ctx context.Context, req judge.Request, uc user.Context) judge.Verdict
}

// ReminderScheduler registers one-shot reminders.
type ReminderScheduler interface {
	Schedule(userID, chatID int64, d time.Duration) (string, error)
}

// Request is one inbound validation request.
type Request struct {
	TelegramID      int64
	ChatID          int64 // defaults to TelegramID when zero
	Text            string
	DurationMinutes *int
}

// Result is what the caller gets back for one validated request.
type Result struct {
	Decision        judge.Decision
	Message         string
	Alternative     string
	ReminderMinutes *int
}

// Document is the full stored user view returned by User.
type Document struct {
	user.User
	History []user.HistoryEntry `json:"history"`
}

// Service glues the store, the decision pipeline, and the scheduler.
type Service struct {
	store       Store
	decider     Decider
	scheduler   ReminderScheduler
	logger      *zap.Logger
	maxDuration int // minutes
}

// Option configures a Service.
type Option func(*Service)

// WithMaxDurationMinutes caps the requested duration. Zero disables the cap.
func WithMaxDurationMinutes(minutes int) Option {
	return func(s *Service) { s.maxDuration = minutes }
}

// New creates the orchestrator service.
func New(store Store, decider Decider, scheduler ReminderScheduler, logger *zap.Logger, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if decider == nil {
		return nil, fmt.Errorf("decider cannot be nil")
	}
	if scheduler == nil {
		return nil, fmt.Errorf("scheduler cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		decider:   decider,
		scheduler: scheduler,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register registers a user. Idempotent: an existing user returns
// created=false without mutation.
func (s *Service) Register(ctx context.Context, telegramID int64, username string) (created bool, err error) {
	if telegramID <= 0 {
		return false, fmt.Errorf("%w: telegram id must be positive", ErrInvalidRequest)
	}

	_, err = s.store.Get(ctx, telegramID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, user.ErrNotFound) {
		return false, fmt.Errorf("register: %w", err)
	}

	if err := s.store.Create(ctx, telegramID, username); err != nil {
		// A concurrent register may have won the race; still idempotent.
		if errors.Is(err, user.ErrExists) {
			return false, nil
		}
		return false, fmt.Errorf("register: %w", err)
	}

	s.logger.Info("user registered", zap.Int64("telegram_id", telegramID))
	return true, nil
}

// SetGoals replaces the user's goals and usage rules.
// Returns user.ErrNotFound for unregistered users.
func (s *Service) SetGoals(ctx context.Context, telegramID int64, goals, allowed, forbidden []string) error {
	if telegramID <= 0 {
		return fmt.Errorf("%w: telegram id must be positive", ErrInvalidRequest)
	}
	if err := s.store.SetGoals(ctx, telegramID, goals, allowed, forbidden); err != nil {
		return err
	}
	s.logger.Info("goals updated",
		zap.Int64("telegram_id", telegramID),
		zap.Int("goals", len(goals)),
		zap.Int("allowed", len(allowed)),
		zap.Int("forbidden", len(forbidden)),
	)
	return nil
}

// Validate runs the full decision flow for one request.
//
// Unknown users surface user.ErrNotFound before any oracle call or
// history write. History is appended for both outcomes; its failure is
// logged, never fatal, so the verdict already produced still reaches the
// caller. An allowed request with a positive duration arranges a
// reminder; the timer token is not surfaced.
func (s *Service) Validate(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(s.maxDuration); err != nil {
		return Result{}, err
	}

	u, err := s.store.Get(ctx, req.TelegramID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("validate: load user: %w", err)
	}

	verdict := s.decider.Decide(ctx, judge.Request{
		Text:            req.Text,
		DurationMinutes: req.DurationMinutes,
	}, u.Context())

	entry := user.HistoryEntry{
		Timestamp:       verdict.ProducedAt,
		RequestText:     req.Text,
		Decision:        string(verdict.Decision),
		Alternative:     verdict.Alternative,
		DurationMinutes: req.DurationMinutes,
	}
	if err := s.store.AppendHistory(ctx, req.TelegramID, entry); err != nil {
		s.logger.Error("history append failed, verdict still returned",
			zap.Int64("telegram_id", req.TelegramID),
			zap.Error(err),
		)
	}

	result := Result{
		Decision:    verdict.Decision,
		Message:     verdict.Message,
		Alternative: verdict.Alternative,
	}

	if verdict.Decision == judge.DecisionAllow && req.DurationMinutes != nil && *req.DurationMinutes > 0 {
		chatID := req.ChatID
		if chatID == 0 {
			chatID = req.TelegramID
		}
		duration := time.Duration(*req.DurationMinutes) * time.Minute
		if _, err := s.scheduler.Schedule(req.TelegramID, chatID, duration); err != nil {
			s.logger.Error("reminder scheduling failed",
				zap.Int64("telegram_id", req.TelegramID),
				zap.Error(err),
			)
		} else {
			result.ReminderMinutes = req.DurationMinutes
		}
	}

	return result, nil
}

// User returns the stored user document with recent history.
func (s *Service) User(ctx context.Context, telegramID int64) (Document, error) {
	u, err := s.store.Get(ctx, telegramID)
	if err != nil {
		return Document{}, err
	}
	history, err := s.store.History(ctx, telegramID, 50)
	if err != nil {
		return Document{}, fmt.Errorf("user: load history: %w", err)
	}
	if history == nil {
		history = []user.HistoryEntry{}
	}
	return Document{User: u, History: history}, nil
}

func (r Request) validate(maxDuration int) error {
	if r.TelegramID <= 0 {
		return fmt.Errorf("%w: telegram id must be positive", ErrInvalidRequest)
	}
	if r.Text == "" {
		return fmt.Errorf("%w: request text must not be empty", ErrInvalidRequest)
	}
	if r.DurationMinutes != nil {
		if *r.DurationMinutes <= 0 {
			return fmt.Errorf("%w: duration must be positive", ErrInvalidRequest)
		}
		if maxDuration > 0 && *r.DurationMinutes > maxDuration {
			return fmt.Errorf("%w: duration exceeds maximum of %d minutes", ErrInvalidRequest, maxDuration)
		}
	}
	return nil
}
