package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/birthday-bot/internal/domain"
)

const (
	birthdayKeyPrefix = "birthday:"
	scanCount         = 100
)

// RedisBirthdayStore keeps one key per birthday: birthday:{chat_id}:{name} -> dd/mm[/yyyy].
// The key carries the display name, so lookups scan the chat's keyspace and
// compare normalized names.
type RedisBirthdayStore struct {
	client goredis.Cmdable
	log    *slog.Logger
}

func NewRedisBirthdayStore(client goredis.Cmdable, log *slog.Logger) *RedisBirthdayStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBirthdayStore{client: client, log: log}
}

func birthdayKey(chatID, name string) string {
	return birthdayKeyPrefix + chatID + ":" + name
}

// encodableChat reports whether chatID survives the round trip through a key.
// The chat id ends at the first ':' so it cannot contain one; names can.
func encodableChat(chatID string) bool {
	return !strings.Contains(chatID, ":")
}

// splitBirthdayKey returns the chat id and display name encoded in key.
func splitBirthdayKey(key string) (string, string, bool) {
	rest, ok := strings.CutPrefix(key, birthdayKeyPrefix)
	if !ok {
		return "", "", false
	}
	return strings.Cut(rest, ":")
}

func (s *RedisBirthdayStore) LoadByChat(ctx context.Context, chatID string) ([]domain.Birthday, error) {
	if !encodableChat(chatID) {
		return []domain.Birthday{}, nil
	}
	keys, err := s.scan(ctx, birthdayKeyPrefix+escapeGlob(chatID)+":*")
	if err != nil {
		return nil, fmt.Errorf("scan chat birthdays: %w", err)
	}

	found, err := s.fetch(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Birthday, 0, len(found))
	for _, cb := range found {
		out = append(out, cb.Birthday)
	}
	sortBirthdays(out)
	return out, nil
}

func (s *RedisBirthdayStore) LoadByDay(ctx context.Context, day time.Time) ([]domain.ChatBirthday, error) {
	keys, err := s.scan(ctx, birthdayKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan birthdays: %w", err)
	}

	found, err := s.fetch(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChatBirthday, 0)
	for _, cb := range found {
		if cb.Birthday.OccursOn(day) {
			out = append(out, cb)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ChatID != out[j].ChatID {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].Birthday.Key() < out[j].Birthday.Key()
	})
	return out, nil
}

func (s *RedisBirthdayStore) Get(ctx context.Context, chatID, name string) (*domain.Birthday, error) {
	if !encodableChat(chatID) {
		return nil, nil
	}
	key, err := s.findKey(ctx, chatID, name)
	if err != nil || key == "" {
		return nil, err
	}

	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get birthday from redis: %w", err)
	}

	_, display, _ := splitBirthdayKey(key)
	b, err := domain.NewBirthday(display, value)
	if err != nil {
		return nil, fmt.Errorf("decode birthday %q: %w", key, err)
	}
	return &b, nil
}

func (s *RedisBirthdayStore) Store(ctx context.Context, chatID string, birthday domain.Birthday) error {
	if !encodableChat(chatID) {
		return fmt.Errorf("store birthday for chat %q: %w", chatID, ErrInvalidChatID)
	}
	old, err := s.findKey(ctx, chatID, birthday.Name)
	if err != nil {
		return err
	}

	key := birthdayKey(chatID, birthday.Name)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if old != "" && old != key {
			pipe.Del(ctx, old)
		}
		pipe.Set(ctx, key, birthday.Format(), 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set birthday to redis: %w", err)
	}
	return nil
}

func (s *RedisBirthdayStore) Delete(ctx context.Context, chatID, name string) (bool, error) {
	if !encodableChat(chatID) {
		return false, nil
	}
	key, err := s.findKey(ctx, chatID, name)
	if err != nil || key == "" {
		return false, err
	}

	n, err := s.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("delete birthday from redis: %w", err)
	}
	return n > 0, nil
}

// findKey returns the stored key for name in chatID, whatever its casing, or "".
func (s *RedisBirthdayStore) findKey(ctx context.Context, chatID, name string) (string, error) {
	keys, err := s.scan(ctx, birthdayKeyPrefix+escapeGlob(chatID)+":*")
	if err != nil {
		return "", fmt.Errorf("scan chat birthdays: %w", err)
	}

	want := domain.NameKey(name)
	for _, key := range keys {
		keyChat, display, ok := splitBirthdayKey(key)
		if ok && keyChat == chatID && domain.NameKey(display) == want {
			return key, nil
		}
	}
	return "", nil
}

func (s *RedisBirthdayStore) scan(ctx context.Context, match string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, match, scanCount).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// fetch reads keys with one MGET, skipping keys removed meanwhile and values that do not parse.
func (s *RedisBirthdayStore) fetch(ctx context.Context, keys []string) ([]domain.ChatBirthday, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("mget birthdays: %w", err)
	}

	out := make([]domain.ChatBirthday, 0, len(keys))
	for i, raw := range values {
		value, ok := raw.(string)
		if !ok {
			continue
		}

		chatID, display, ok := splitBirthdayKey(keys[i])
		if !ok {
			continue
		}

		b, err := domain.NewBirthday(display, value)
		if err != nil {
			s.log.Warn("skipping undecodable birthday",
				slog.String("key", keys[i]),
				slog.String("value", value),
				slog.Any("error", err),
			)
			continue
		}
		out = append(out, domain.ChatBirthday{ChatID: chatID, Birthday: b})
	}
	return out, nil
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

// sortBirthdays orders by month, day, then normalized name.
func sortBirthdays(list []domain.Birthday) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].SortKey() != list[j].SortKey() {
			return list[i].SortKey() < list[j].SortKey()
		}
		return list[i].Key() < list[j].Key()
	})
}
