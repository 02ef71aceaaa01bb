// Package user provides SQLite-backed persistence for registered users,
// their declared goals and usage rules, and their validation history.
package user

import "time"

// User is the full stored user document.
type User struct {
	TelegramID        int64     `json:"telegram_id"`
	Username          string    `json:"username,omitempty"`
	Goals             []string  `json:"goals"`
	AllowedUsecases   []string  `json:"allowed_usecases"`
	ForbiddenUsecases []string  `json:"forbidden_usecases"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Context is the immutable rules snapshot consumed by one decision call.
// The authoritative mutable copy stays in the store.
type Context struct {
	Goals             []string
	AllowedUsecases   []string
	ForbiddenUsecases []string
}

// Context returns the decision-pipeline snapshot of the user's rules.
func (u User) Context() Context {
	return Context{
		Goals:             u.Goals,
		AllowedUsecases:   u.AllowedUsecases,
		ForbiddenUsecases: u.ForbiddenUsecases,
	}
}

// HistoryEntry is one append-only validation record. Entries are written
// once per validated request and never mutated or deleted.
type HistoryEntry struct {
	Timestamp       time.Time `json:"timestamp"`
	RequestText     string    `json:"request"`
	Decision        string    `json:"decision"`
	Alternative     string    `json:"alternative,omitempty"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
}
