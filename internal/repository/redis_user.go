package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Proton-105/birthday-bot/internal/domain"
)

const (
	userKeyPattern         = "user:%s"
	reminderHourKeyPattern = "reminder_hour:%d"
)

// RedisUserStore keeps a hash per chat plus a set per reminder hour indexing it.
type RedisUserStore struct {
	client goredis.Cmdable
	log    *slog.Logger
}

func NewRedisUserStore(client goredis.Cmdable, log *slog.Logger) *RedisUserStore {
	if log == nil {
		log = slog.Default()
	}
	return &RedisUserStore{client: client, log: log}
}

func (s *RedisUserStore) Get(ctx context.Context, chatID string) (*domain.User, error) {
	fields, err := s.client.HGetAll(ctx, fmt.Sprintf(userKeyPattern, chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get user from redis: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrUserNotFound
	}

	u, err := decodeUser(chatID, fields)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *RedisUserStore) LoadByReminderHour(ctx context.Context, hour int) ([]domain.User, error) {
	chatIDs, err := s.client.SMembers(ctx, fmt.Sprintf(reminderHourKeyPattern, hour)).Result()
	if err != nil {
		return nil, fmt.Errorf("load reminder hour index: %w", err)
	}
	if len(chatIDs) == 0 {
		return nil, nil
	}
	sort.Strings(chatIDs)

	cmds := make([]*goredis.MapStringStringCmd, len(chatIDs))
	_, err = s.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, chatID := range chatIDs {
			cmds[i] = pipe.HGetAll(ctx, fmt.Sprintf(userKeyPattern, chatID))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load users for hour %d: %w", hour, err)
	}

	out := make([]domain.User, 0, len(chatIDs))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		u, err := decodeUser(chatIDs[i], fields)
		if err != nil {
			s.log.Warn("skipping undecodable user", slog.String("chat_id", chatIDs[i]), slog.Any("error", err))
			continue
		}
		// the index can lag behind a concurrent update
		if u.ReminderHour == hour {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *RedisUserStore) Store(ctx context.Context, user domain.User) error {
	return s.write(ctx, user.ChatID, user.ReminderHour, map[string]any{
		"user_name":     user.UserName,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"reminder_hour": user.ReminderHour,
	})
}

func (s *RedisUserStore) UpdateReminderHour(ctx context.Context, chatID string, hour int) error {
	return s.write(ctx, chatID, hour, map[string]any{"reminder_hour": hour})
}

func (s *RedisUserStore) write(ctx context.Context, chatID string, hour int, fields map[string]any) error {
	key := fmt.Sprintf(userKeyPattern, chatID)

	previous, err := s.client.HGet(ctx, key, "reminder_hour").Result()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("get previous reminder hour: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if prev, convErr := strconv.Atoi(previous); convErr == nil && prev != hour {
			pipe.SRem(ctx, fmt.Sprintf(reminderHourKeyPattern, prev), chatID)
		}
		pipe.HSet(ctx, key, fields)
		pipe.SAdd(ctx, fmt.Sprintf(reminderHourKeyPattern, hour), chatID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set user to redis: %w", err)
	}
	return nil
}

func decodeUser(chatID string, fields map[string]string) (domain.User, error) {
	hour := 0
	if raw, ok := fields["reminder_hour"]; ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return domain.User{}, fmt.Errorf("decode reminder hour %q: %w", raw, err)
		}
		hour = parsed
	}

	return domain.User{
		ChatID:       chatID,
		UserName:     fields["user_name"],
		FirstName:    fields["first_name"],
		LastName:     fields["last_name"],
		ReminderHour: hour,
	}, nil
}
