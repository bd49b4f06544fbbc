package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Proton-105/birthday-bot/internal/domain"
	"github.com/Proton-105/birthday-bot/pkg/objectstore"
)

const csvHeader = "name,birthday"

// ObjectBirthdayStore keeps the birthdays of a single owner chat as one CSV
// object. Fields are not escaped. Every write reads and replaces the whole
// object, and concurrent writers can lose updates.
type ObjectBirthdayStore struct {
	bucket objectstore.Bucket
	key    string
	owner  string
}

func NewObjectBirthdayStore(bucket objectstore.Bucket, key, ownerChatID string) *ObjectBirthdayStore {
	return &ObjectBirthdayStore{bucket: bucket, key: key, owner: ownerChatID}
}

func (s *ObjectBirthdayStore) LoadByChat(ctx context.Context, chatID string) ([]domain.Birthday, error) {
	if chatID != s.owner {
		return []domain.Birthday{}, nil
	}
	return s.read(ctx)
}

func (s *ObjectBirthdayStore) LoadByDay(ctx context.Context, day time.Time) ([]domain.ChatBirthday, error) {
	all, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChatBirthday, 0)
	for _, b := range all {
		if b.OccursOn(day) {
			out = append(out, domain.ChatBirthday{ChatID: s.owner, Birthday: b})
		}
	}
	return out, nil
}

func (s *ObjectBirthdayStore) Get(ctx context.Context, chatID, name string) (*domain.Birthday, error) {
	if chatID != s.owner {
		return nil, nil
	}

	all, err := s.read(ctx)
	if err != nil {
		return nil, err
	}

	key := domain.NameKey(name)
	for _, b := range all {
		if b.Key() == key {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (s *ObjectBirthdayStore) Store(ctx context.Context, chatID string, birthday domain.Birthday) error {
	if chatID != s.owner {
		return ErrUnsupportedChat
	}

	all, err := s.read(ctx)
	if err != nil {
		return err
	}

	replaced := false
	for i, b := range all {
		if b.Key() == birthday.Key() {
			all[i] = birthday
			replaced = true
			break
		}
	}
	if !replaced {
		all = append(all, birthday)
	}

	return s.write(ctx, all)
}

func (s *ObjectBirthdayStore) Delete(ctx context.Context, chatID, name string) (bool, error) {
	if chatID != s.owner {
		return false, ErrUnsupportedChat
	}

	all, err := s.read(ctx)
	if err != nil {
		return false, err
	}

	key := domain.NameKey(name)
	kept := make([]domain.Birthday, 0, len(all))
	for _, b := range all {
		if b.Key() != key {
			kept = append(kept, b)
		}
	}
	if len(kept) == len(all) {
		return false, nil
	}

	if err := s.write(ctx, kept); err != nil {
		return false, err
	}
	return true, nil
}

func (s *ObjectBirthdayStore) read(ctx context.Context) ([]domain.Birthday, error) {
	data, err := s.bucket.Get(ctx, s.key)
	if errors.Is(err, objectstore.ErrObjectNotFound) {
		return []domain.Birthday{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read birthdays object: %w", err)
	}

	list, err := decodeCSV(string(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.key, err)
	}
	return list, nil
}

func (s *ObjectBirthdayStore) write(ctx context.Context, list []domain.Birthday) error {
	if err := s.bucket.Put(ctx, s.key, []byte(encodeCSV(list))); err != nil {
		return fmt.Errorf("write birthdays object: %w", err)
	}
	return nil
}

func decodeCSV(data string) ([]domain.Birthday, error) {
	lines := strings.Split(strings.ReplaceAll(data, "\r\n", "\n"), "\n")
	out := make([]domain.Birthday, 0, len(lines))

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if i == 0 && line == csvHeader {
			continue
		}

		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrCorruptObject, i+1, len(fields))
		}

		b, err := domain.NewBirthday(fields[0], strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorruptObject, i+1, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func encodeCSV(list []domain.Birthday) string {
	var sb strings.Builder
	sb.WriteString(csvHeader)
	sb.WriteByte('\n')
	for _, b := range list {
		sb.WriteString(b.Name)
		sb.WriteByte(',')
		sb.WriteString(b.Format())
		sb.WriteByte('\n')
	}
	return sb.String()
}
