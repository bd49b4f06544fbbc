package repository

import (
	"context"
	"sort"
	"time"

	"github.com/Proton-105/birthday-bot/internal/domain"
)

// MemoryBirthdayStore keeps birthdays in a map. It is not safe for concurrent
// mutation and is meant for development and tests.
type MemoryBirthdayStore struct {
	chats map[string][]domain.Birthday
}

func NewMemoryBirthdayStore() *MemoryBirthdayStore {
	return &MemoryBirthdayStore{chats: make(map[string][]domain.Birthday)}
}

func (s *MemoryBirthdayStore) LoadByChat(_ context.Context, chatID string) ([]domain.Birthday, error) {
	stored := s.chats[chatID]
	out := make([]domain.Birthday, len(stored))
	copy(out, stored)
	return out, nil
}

func (s *MemoryBirthdayStore) LoadByDay(_ context.Context, day time.Time) ([]domain.ChatBirthday, error) {
	chatIDs := make([]string, 0, len(s.chats))
	for chatID := range s.chats {
		chatIDs = append(chatIDs, chatID)
	}
	sort.Strings(chatIDs)

	var out []domain.ChatBirthday
	for _, chatID := range chatIDs {
		for _, b := range s.chats[chatID] {
			if b.OccursOn(day) {
				out = append(out, domain.ChatBirthday{ChatID: chatID, Birthday: b})
			}
		}
	}
	return out, nil
}

func (s *MemoryBirthdayStore) Get(_ context.Context, chatID, name string) (*domain.Birthday, error) {
	if i := s.index(chatID, name); i >= 0 {
		b := s.chats[chatID][i]
		return &b, nil
	}
	return nil, nil
}

func (s *MemoryBirthdayStore) Store(_ context.Context, chatID string, birthday domain.Birthday) error {
	if i := s.index(chatID, birthday.Name); i >= 0 {
		s.chats[chatID][i] = birthday
		return nil
	}
	s.chats[chatID] = append(s.chats[chatID], birthday)
	return nil
}

func (s *MemoryBirthdayStore) Delete(_ context.Context, chatID, name string) (bool, error) {
	i := s.index(chatID, name)
	if i < 0 {
		return false, nil
	}

	stored := s.chats[chatID]
	s.chats[chatID] = append(stored[:i:i], stored[i+1:]...)
	if len(s.chats[chatID]) == 0 {
		delete(s.chats, chatID)
	}
	return true, nil
}

func (s *MemoryBirthdayStore) index(chatID, name string) int {
	key := domain.NameKey(name)
	for i, b := range s.chats[chatID] {
		if b.Key() == key {
			return i
		}
	}
	return -1
}

// MemoryUserStore keeps preferences in a map. Not safe for concurrent mutation.
type MemoryUserStore struct {
	users map[string]domain.User
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]domain.User)}
}

func (s *MemoryUserStore) Get(_ context.Context, chatID string) (*domain.User, error) {
	u, ok := s.users[chatID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (s *MemoryUserStore) LoadByReminderHour(_ context.Context, hour int) ([]domain.User, error) {
	var out []domain.User
	for _, u := range s.users {
		if u.ReminderHour == hour {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChatID < out[j].ChatID })
	return out, nil
}

func (s *MemoryUserStore) Store(_ context.Context, user domain.User) error {
	s.users[user.ChatID] = user
	return nil
}

func (s *MemoryUserStore) UpdateReminderHour(_ context.Context, chatID string, hour int) error {
	u := s.users[chatID]
	u.ChatID = chatID
	u.ReminderHour = hour
	s.users[chatID] = u
	return nil
}
