package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Proton-105/birthday-bot/internal/domain"
)

// rebind rewrites ? placeholders to $n for PostgreSQL.
func rebind(driver, query string) string {
	if driver != "postgres" {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// SQLBirthdayStore keeps birthdays in the birthdays table (PostgreSQL or SQLite).
type SQLBirthdayStore struct {
	db     *sql.DB
	driver string
}

func NewSQLBirthdayStore(db *sql.DB, driver string) *SQLBirthdayStore {
	return &SQLBirthdayStore{db: db, driver: driver}
}

func (s *SQLBirthdayStore) LoadByChat(ctx context.Context, chatID string) ([]domain.Birthday, error) {
	const query = `
		SELECT name, day, month, year
		FROM birthdays
		WHERE chat_id = ?
		ORDER BY month, day, name_key
	`

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), chatID)
	if err != nil {
		return nil, fmt.Errorf("select birthdays by chat: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Birthday, 0)
	for rows.Next() {
		b, err := scanBirthday(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate birthdays by chat: %w", err)
	}
	return out, nil
}

func (s *SQLBirthdayStore) LoadByDay(ctx context.Context, day time.Time) ([]domain.ChatBirthday, error) {
	const query = `
		SELECT chat_id, name, day, month, year
		FROM birthdays
		WHERE day = ? AND month = ?
		ORDER BY chat_id, name_key
	`

	rows, err := s.db.QueryContext(ctx, rebind(s.driver, query), day.Day(), int(day.Month()))
	if err != nil {
		return nil, fmt.Errorf("select birthdays by day: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ChatBirthday, 0)
	for rows.Next() {
		var (
			chatID string
			b      domain.Birthday
			year   sql.NullInt64
		)
		if err := rows.Scan(&chatID, &b.Name, &b.Day, &b.Month, &year); err != nil {
			return nil, fmt.Errorf("scan birthday: %w", err)
		}
		if year.Valid {
			b.Year = domain.WithYear(int(year.Int64))
		}
		out = append(out, domain.ChatBirthday{ChatID: chatID, Birthday: b})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate birthdays by day: %w", err)
	}
	return out, nil
}

func (s *SQLBirthdayStore) Get(ctx context.Context, chatID, name string) (*domain.Birthday, error) {
	const query = `
		SELECT name, day, month, year
		FROM birthdays
		WHERE chat_id = ? AND name_key = ?
	`

	row := s.db.QueryRowContext(ctx, rebind(s.driver, query), chatID, domain.NameKey(name))
	b, err := scanBirthday(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *SQLBirthdayStore) Store(ctx context.Context, chatID string, birthday domain.Birthday) error {
	const query = `
		INSERT INTO birthdays (chat_id, name_key, name, day, month, year)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (chat_id, name_key) DO UPDATE SET
			name  = excluded.name,
			day   = excluded.day,
			month = excluded.month,
			year  = excluded.year
	`

	var year any
	if birthday.Year != nil {
		year = *birthday.Year
	}

	if _, err := s.db.ExecContext(
		ctx,
		rebind(s.driver, query),
		chatID,
		birthday.Key(),
		birthday.Name,
		birthday.Day,
		birthday.Month,
		year,
	); err != nil {
		return fmt.Errorf("upsert birthday: %w", err)
	}
	return nil
}

func (s *SQLBirthdayStore) Delete(ctx context.Context, chatID, name string) (bool, error) {
	const query = `DELETE FROM birthdays WHERE chat_id = ? AND name_key = ?`

	res, err := s.db.ExecContext(ctx, rebind(s.driver, query), chatID, domain.NameKey(name))
	if err != nil {
		return false, fmt.Errorf("delete birthday: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete birthday rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBirthday(row rowScanner) (domain.Birthday, error) {
	var (
		b    domain.Birthday
		year sql.NullInt64
	)
	if err := row.Scan(&b.Name, &b.Day, &b.Month, &year); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Birthday{}, err
		}
		return domain.Birthday{}, fmt.Errorf("scan birthday: %w", err)
	}
	if year.Valid {
		b.Year = domain.WithYear(int(year.Int64))
	}
	return b, nil
}
