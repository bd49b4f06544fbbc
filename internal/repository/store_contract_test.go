package repository

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Proton-105/birthday-bot/internal/database"
	"github.com/Proton-105/birthday-bot/internal/domain"
	"github.com/Proton-105/birthday-bot/pkg/objectstore"
)

const (
	ownerChat = "42"
	otherChat = "-1001"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, "sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, testLogger()).Apply(ctx))
	return db
}

type storeCase struct {
	name      string
	multiChat bool
	birthdays func(t *testing.T) BirthdayStore
}

func birthdayStoreCases() []storeCase {
	return []storeCase{
		{
			name:      "memory",
			multiChat: true,
			birthdays: func(*testing.T) BirthdayStore { return NewMemoryBirthdayStore() },
		},
		{
			name:      "redis",
			multiChat: true,
			birthdays: func(t *testing.T) BirthdayStore {
				_, client := setupTestRedis(t)
				return NewRedisBirthdayStore(client, testLogger())
			},
		},
		{
			name:      "sql",
			multiChat: true,
			birthdays: func(t *testing.T) BirthdayStore {
				return NewSQLBirthdayStore(setupTestDB(t), "sqlite")
			},
		},
		{
			name: "object",
			birthdays: func(*testing.T) BirthdayStore {
				return NewObjectBirthdayStore(objectstore.NewMemBucket(), "birthdays.csv", ownerChat)
			},
		},
		{
			name:      "instrumented memory",
			multiChat: true,
			birthdays: func(*testing.T) BirthdayStore {
				return InstrumentBirthdays(NewMemoryBirthdayStore(), "memory", time.Second, testLogger())
			},
		},
	}
}

func TestBirthdayStoreContract(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, time.October, 14, 9, 0, 0, 0, time.UTC)

	for _, sc := range birthdayStoreCases() {
		sc := sc
		t.Run(sc.name, func(t *testing.T) {
			t.Run("empty chat loads empty", func(t *testing.T) {
				store := sc.birthdays(t)
				got, err := store.LoadByChat(ctx, ownerChat)
				require.NoError(t, err)
				assert.Empty(t, got)

				b, err := store.Get(ctx, ownerChat, "nobody")
				require.NoError(t, err)
				assert.Nil(t, b)

				byDay, err := store.LoadByDay(ctx, day)
				require.NoError(t, err)
				assert.Empty(t, byDay)
			})

			t.Run("get is case insensitive", func(t *testing.T) {
				store := sc.birthdays(t)
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Ana", "01/02/1990")))

				got, err := store.Get(ctx, ownerChat, "  aNA ")
				require.NoError(t, err)
				require.NotNil(t, got)
				assert.Equal(t, "Ana", got.Name)
				assert.Equal(t, "01/02/1990", got.Format())
			})

			t.Run("store replaces with new casing", func(t *testing.T) {
				store := sc.birthdays(t)
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Ana", "01/02/1990")))
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "ANA", "03/04")))

				got, err := store.LoadByChat(ctx, ownerChat)
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, "ANA", got[0].Name)
				assert.Equal(t, "03/04", got[0].Format())
				assert.False(t, got[0].HasYear())
			})

			t.Run("delete reports removal", func(t *testing.T) {
				store := sc.birthdays(t)
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Ana", "01/02")))
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Bob", "05/06")))

				removed, err := store.Delete(ctx, ownerChat, "ana")
				require.NoError(t, err)
				assert.True(t, removed)

				removed, err = store.Delete(ctx, ownerChat, "ana")
				require.NoError(t, err)
				assert.False(t, removed)

				got, err := store.LoadByChat(ctx, ownerChat)
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, "Bob", got[0].Name)
			})

			t.Run("load by day matches month and day", func(t *testing.T) {
				store := sc.birthdays(t)
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Ana", "14/10/1990")))
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Bob", "15/10")))
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Cy", "14/11")))

				got, err := store.LoadByDay(ctx, day)
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.Equal(t, ownerChat, got[0].ChatID)
				assert.Equal(t, "Ana", got[0].Birthday.Name)
			})

			t.Run("feb 29 matches only on feb 29", func(t *testing.T) {
				store := sc.birthdays(t)
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Leap", "29/02")))
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Late", "28/02/1992")))

				leapDay, err := store.LoadByDay(ctx, time.Date(2028, time.February, 29, 0, 0, 0, 0, time.UTC))
				require.NoError(t, err)
				require.Len(t, leapDay, 1)
				assert.Equal(t, "Leap", leapDay[0].Birthday.Name)

				feb28, err := store.LoadByDay(ctx, time.Date(2027, time.February, 28, 0, 0, 0, 0, time.UTC))
				require.NoError(t, err)
				require.Len(t, feb28, 1)
				assert.Equal(t, "Late", feb28[0].Birthday.Name)

				mar1, err := store.LoadByDay(ctx, time.Date(2027, time.March, 1, 0, 0, 0, 0, time.UTC))
				require.NoError(t, err)
				assert.Empty(t, mar1)
			})

			t.Run("load by chat returns all", func(t *testing.T) {
				store := sc.birthdays(t)
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Zed", "01/12")))
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Ana", "29/02")))

				got, err := store.LoadByChat(ctx, ownerChat)
				require.NoError(t, err)
				assert.ElementsMatch(t, []string{"Zed", "Ana"}, names(got))
			})

			if !sc.multiChat {
				return
			}

			t.Run("chats are isolated", func(t *testing.T) {
				store := sc.birthdays(t)
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Ana", "14/10")))
				require.NoError(t, store.Store(ctx, otherChat, mustBirthday(t, "Ana", "14/10/2000")))
				require.NoError(t, store.Store(ctx, otherChat, mustBirthday(t, "Dee", "20/01")))

				got, err := store.LoadByChat(ctx, ownerChat)
				require.NoError(t, err)
				require.Len(t, got, 1)
				assert.False(t, got[0].HasYear())

				removed, err := store.Delete(ctx, otherChat, "ana")
				require.NoError(t, err)
				assert.True(t, removed)

				still, err := store.Get(ctx, ownerChat, "ana")
				require.NoError(t, err)
				assert.NotNil(t, still)
			})

			t.Run("load by day spans chats", func(t *testing.T) {
				store := sc.birthdays(t)
				require.NoError(t, store.Store(ctx, ownerChat, mustBirthday(t, "Ana", "14/10")))
				require.NoError(t, store.Store(ctx, otherChat, mustBirthday(t, "Eve", "14/10/2001")))

				got, err := store.LoadByDay(ctx, day)
				require.NoError(t, err)
				chats := make([]string, 0, len(got))
				for _, cb := range got {
					chats = append(chats, cb.ChatID)
				}
				assert.ElementsMatch(t, []string{ownerChat, otherChat}, chats)
			})
		})
	}
}

type userStoreCase struct {
	name  string
	users func(t *testing.T) UserStore
}

func userStoreCases() []userStoreCase {
	return []userStoreCase{
		{name: "memory", users: func(*testing.T) UserStore { return NewMemoryUserStore() }},
		{name: "redis", users: func(t *testing.T) UserStore {
			_, client := setupTestRedis(t)
			return NewRedisUserStore(client, testLogger())
		}},
		{name: "sql", users: func(t *testing.T) UserStore {
			return NewSQLUserStore(setupTestDB(t), "sqlite")
		}},
		{name: "instrumented memory", users: func(*testing.T) UserStore {
			return InstrumentUsers(NewMemoryUserStore(), "memory", time.Second, testLogger())
		}},
	}
}

func TestUserStoreContract(t *testing.T) {
	ctx := context.Background()

	for _, sc := range userStoreCases() {
		sc := sc
		t.Run(sc.name, func(t *testing.T) {
			t.Run("missing user", func(t *testing.T) {
				store := sc.users(t)
				_, err := store.Get(ctx, ownerChat)
				assert.ErrorIs(t, err, ErrUserNotFound)

				got, err := store.LoadByReminderHour(ctx, 0)
				require.NoError(t, err)
				assert.Empty(t, got)
			})

			t.Run("store and get", func(t *testing.T) {
				store := sc.users(t)
				want := domain.User{ChatID: ownerChat, UserName: "ana", FirstName: "Ana", LastName: "Lima", ReminderHour: 9}
				require.NoError(t, store.Store(ctx, want))

				got, err := store.Get(ctx, ownerChat)
				require.NoError(t, err)
				assert.Equal(t, want, *got)
			})

			t.Run("update hour upserts and moves index", func(t *testing.T) {
				store := sc.users(t)
				require.NoError(t, store.UpdateReminderHour(ctx, otherChat, 7))
				require.NoError(t, store.Store(ctx, domain.User{ChatID: ownerChat, FirstName: "Ana", ReminderHour: 9}))
				require.NoError(t, store.UpdateReminderHour(ctx, ownerChat, 7))

				created, err := store.Get(ctx, otherChat)
				require.NoError(t, err)
				assert.Equal(t, 7, created.ReminderHour)

				kept, err := store.Get(ctx, ownerChat)
				require.NoError(t, err)
				assert.Equal(t, "Ana", kept.FirstName)

				at9, err := store.LoadByReminderHour(ctx, 9)
				require.NoError(t, err)
				assert.Empty(t, at9)

				at7, err := store.LoadByReminderHour(ctx, 7)
				require.NoError(t, err)
				chats := make([]string, 0, len(at7))
				for _, u := range at7 {
					chats = append(chats, u.ChatID)
				}
				assert.ElementsMatch(t, []string{ownerChat, otherChat}, chats)
			})
		})
	}
}

func mustBirthday(t *testing.T, name, date string) domain.Birthday {
	t.Helper()
	b, err := domain.NewBirthday(name, date)
	require.NoError(t, err)
	return b
}

func names(list []domain.Birthday) []string {
	out := make([]string, 0, len(list))
	for _, b := range list {
		out = append(out, b.Name)
	}
	return out
}
