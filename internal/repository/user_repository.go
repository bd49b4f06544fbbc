package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Proton-105/birthday-bot/internal/domain"
)

// SQLUserStore keeps reminder preferences in the users table.
type SQLUserStore struct {
	db     *sql.DB
	driver string
}

func NewSQLUserStore(db *sql.DB, driver string) *SQLUserStore {
	return &SQLUserStore{db: db, driver: driver}
}

// Get retrieves a preference record by chat id.
func (s *SQLUserStore) Get(ctx context.Context, chatID string) (*domain.User, error) {
	const query = `
		SELECT chat_id, user_name, first_name, last_name, reminder_hour
		FROM users
		WHERE chat_id = ?
	`

	row := s.db.QueryRowContext(ctx, rebind(s.driver, query), chatID)

	var user domain.User
	if err := row.Scan(
		&user.ChatID,
		&user.UserName,
		&user.FirstName,
		&user.LastName,
		&user.ReminderHour,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("select user by chat id: %w", err)
	}

	return &user, nil
}

func (s *SQLUserStore) LoadByReminderHour(ctx context.Context, hour int) ([]domain.User, error) {
	const query = `
		SELECT chat_id, user_name, first_name, last_name, reminder_hour
		FROM users
		WHERE reminder_hour = ?
		ORDER BY chat_id
	`

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), hour)
	if err != nil {
		return nil, fmt.Errorf("select users by reminder hour: %w", err)
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(&user.ChatID, &user.UserName, &user.FirstName, &user.LastName, &user.ReminderHour); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// Store inserts or fully replaces the preference record.
func (s *SQLUserStore) Store(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (chat_id, user_name, first_name, last_name, reminder_hour)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET
			user_name     = excluded.user_name,
			first_name    = excluded.first_name,
			last_name     = excluded.last_name,
			reminder_hour = excluded.reminder_hour
	`

	if _, err := s.db.ExecContext(
		ctx,
		rebind(s.driver, query),
		user.ChatID,
		user.UserName,
		user.FirstName,
		user.LastName,
		user.ReminderHour,
	); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (s *SQLUserStore) UpdateReminderHour(ctx context.Context, chatID string, hour int) error {
	const query = `
		INSERT INTO users (chat_id, reminder_hour)
		VALUES (?, ?)
		ON CONFLICT (chat_id) DO UPDATE SET reminder_hour = excluded.reminder_hour
	`

	if _, err := s.db.ExecContext(ctx, rebind(s.driver, query), chatID, hour); err != nil {
		return fmt.Errorf("update reminder hour: %w", err)
	}
	return nil
}
