package user

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates the user has never registered.
var ErrNotFound = errors.New("user not found")

// ErrExists indicates a Create for an already-registered user.
var ErrExists = errors.New("user already exists")

// Store provides SQLite-backed persistence for users and their history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and runs migrations.
func Open(path string) (*sql.DB, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// NewStore returns a Store bound to an existing database handle.
func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

// Create inserts a new user with empty goals and rules. Returns ErrExists
// when the telegram id is already registered.
func (s *Store) Create(ctx context.Context, telegramID int64, username string) error {
	if telegramID <= 0 {
		return fmt.Errorf("create user: invalid telegram id %d", telegramID)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var usernameValue any
	if username != "" {
		usernameValue = username
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (telegram_id, username, goals, allowed_usecases, forbidden_usecases, created_at, updated_at)
		VALUES (?, ?, '[]', '[]', '[]', ?, ?)`,
		telegramID, usernameValue, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("create user: insert: %w", err)
	}
	return nil
}

// Get returns the stored user, or ErrNotFound.
func (s *Store) Get(ctx context.Context, telegramID int64) (User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT telegram_id, username, goals, allowed_usecases, forbidden_usecases, created_at, updated_at
		FROM users WHERE telegram_id = ?`, telegramID)

	var (
		u                                  User
		username                           sql.NullString
		goalsRaw, allowedRaw, forbiddenRaw string
		createdRaw, updatedRaw             string
	)
	err := row.Scan(&u.TelegramID, &username, &goalsRaw, &allowedRaw, &forbiddenRaw, &createdRaw, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: scan: %w", err)
	}

	u.Username = username.String
	if err := decodeList(goalsRaw, &u.Goals); err != nil {
		return User{}, fmt.Errorf("get user: goals: %w", err)
	}
	if err := decodeList(allowedRaw, &u.AllowedUsecases); err != nil {
		return User{}, fmt.Errorf("get user: allowed usecases: %w", err)
	}
	if err := decodeList(forbiddenRaw, &u.ForbiddenUsecases); err != nil {
		return User{}, fmt.Errorf("get user: forbidden usecases: %w", err)
	}
	if u.CreatedAt, err = parseTime(createdRaw); err != nil {
		return User{}, fmt.Errorf("get user: created_at: %w", err)
	}
	if u.UpdatedAt, err = parseTime(updatedRaw); err != nil {
		return User{}, fmt.Errorf("get user: updated_at: %w", err)
	}
	return u, nil
}

// SetGoals replaces the user's goals and usage rules. Returns ErrNotFound
// when the user has never registered.
func (s *Store) SetGoals(ctx context.Context, telegramID int64, goals, allowed, forbidden []string) error {
	goalsRaw, err := encodeList(goals)
	if err != nil {
		return fmt.Errorf("set goals: goals: %w", err)
	}
	allowedRaw, err := encodeList(allowed)
	if err != nil {
		return fmt.Errorf("set goals: allowed usecases: %w", err)
	}
	forbiddenRaw, err := encodeList(forbidden)
	if err != nil {
		return fmt.Errorf("set goals: forbidden usecases: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET goals = ?, allowed_usecases = ?, forbidden_usecases = ?, updated_at = ?
		WHERE telegram_id = ?`,
		goalsRaw, allowedRaw, forbiddenRaw, now, telegramID)
	if err != nil {
		return fmt.Errorf("set goals: update: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set goals: rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AppendHistory appends an immutable validation record for a user.
func (s *Store) AppendHistory(ctx context.Context, telegramID int64, entry HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var alternativeValue any
	if entry.Alternative != "" {
		alternativeValue = entry.Alternative
	}
	var durationValue any
	if entry.DurationMinutes != nil {
		durationValue = *entry.DurationMinutes
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO history (telegram_id, at, request_text, decision, alternative, duration_minutes)
		VALUES (?, ?, ?, ?, ?, ?)`,
		telegramID, entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.RequestText, entry.Decision, alternativeValue, durationValue)
	if err != nil {
		return fmt.Errorf("append history: insert: %w", err)
	}
	return nil
}

// History returns the user's most recent validation records, newest first.
func (s *Store) History(ctx context.Context, telegramID int64, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT at, request_text, decision, alternative, duration_minutes
		FROM history WHERE telegram_id = ?
		ORDER BY at DESC, id DESC LIMIT ?`, telegramID, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			entry       HistoryEntry
			atRaw       string
			alternative sql.NullString
			duration    sql.NullInt64
		)
		if err := rows.Scan(&atRaw, &entry.RequestText, &entry.Decision, &alternative, &duration); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if entry.Timestamp, err = parseTime(atRaw); err != nil {
			return nil, fmt.Errorf("history: timestamp: %w", err)
		}
		entry.Alternative = alternative.String
		if duration.Valid {
			minutes := int(duration.Int64)
			entry.DurationMinutes = &minutes
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return entries, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeList(raw string, dst *[]string) error {
	if raw == "" {
		*dst = []string{}
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func parseTime(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, raw)
}

// isUniqueViolation reports whether err is a SQLite primary-key conflict.
// modernc.org/sqlite surfaces these as generic errors carrying the SQLite
// message, so the check is textual.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "constraint failed")
}
