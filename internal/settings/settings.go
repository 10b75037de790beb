package settings

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tyB-or/weibu-ipSearch/internal/security"
)

const (
	KeyAPIKey          = "api_key"
	KeyLastQueryDate   = "last_query_date"
	KeyDailyQueryCount = "daily_query_count"

	dateLayout = "2006-01-02"
)

// Settings is the typed view over a Store.
type Settings struct {
	store Store
	now   func() time.Time
}

func New(store Store) *Settings {
	return &Settings{store: store, now: time.Now}
}

// WithClock replaces the clock used for the daily counter.
func (s *Settings) WithClock(now func() time.Time) *Settings {
	s.now = now
	return s
}

func (s *Settings) Close() error {
	return s.store.Close()
}

// APIKey returns the remembered key, or "" when none is stored.
func (s *Settings) APIKey(ctx context.Context) (string, error) {
	stored, ok, err := s.store.Get(ctx, KeyAPIKey)
	if err != nil || !ok {
		return "", err
	}

	key, plain, err := security.DecryptAPIKey(stored)
	if err != nil {
		return "", fmt.Errorf("settings: read api key: %w", err)
	}
	if plain && key != "" && security.Enabled() {
		// Stored before a secret was configured; seal it now.
		if err := s.SetAPIKey(ctx, key); err != nil {
			log.Warn("Failed to encrypt stored api key", "error", err)
		}
	}
	return key, nil
}

// SetAPIKey stores key, encrypted when a secret key is configured.
func (s *Settings) SetAPIKey(ctx context.Context, key string) error {
	if key == "" {
		return s.store.Delete(ctx, KeyAPIKey)
	}

	value := key
	if security.Enabled() {
		sealed, err := security.EncryptAPIKey(key)
		if err != nil {
			return fmt.Errorf("settings: encrypt api key: %w", err)
		}
		value = sealed
	} else {
		log.Warn("Storing api key without encryption", "hint", security.SecretKeyEnv)
	}

	return s.store.Set(ctx, KeyAPIKey, value)
}

func (s *Settings) today() string {
	return s.now().Format(dateLayout)
}

// CheckAndResetDaily zeroes the counter when the stored date is not today.
func (s *Settings) CheckAndResetDaily(ctx context.Context) error {
	stored, _, err := s.store.Get(ctx, KeyLastQueryDate)
	if err != nil {
		return err
	}

	today := s.today()
	if stored == today {
		return nil
	}

	if err := s.store.Set(ctx, KeyLastQueryDate, today); err != nil {
		return err
	}
	return s.store.Set(ctx, KeyDailyQueryCount, "0")
}

// DailyCount returns today's number of queried IPs.
func (s *Settings) DailyCount(ctx context.Context) (int, error) {
	if err := s.CheckAndResetDaily(ctx); err != nil {
		return 0, err
	}

	raw, ok, err := s.store.Get(ctx, KeyDailyQueryCount)
	if err != nil || !ok {
		return 0, err
	}
	count, err := strconv.Atoi(raw)
	if err != nil {
		log.Warn("Ignoring corrupt daily query count", "value", raw)
		return 0, nil
	}
	return count, nil
}

// AddQueries adds n to today's counter and returns the new total.
func (s *Settings) AddQueries(ctx context.Context, n int) (int, error) {
	count, err := s.DailyCount(ctx)
	if err != nil {
		return 0, err
	}

	count += n
	if err := s.store.Set(ctx, KeyDailyQueryCount, strconv.Itoa(count)); err != nil {
		return 0, err
	}
	return count, nil
}
