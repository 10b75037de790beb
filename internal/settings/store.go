package settings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tyB-or/weibu-ipSearch/internal/database"
	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/support"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendMemory   = "memory"
)

// Store is a flat string key-value store.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// OpenStore opens the backend by name. sqlitePath is only used by the sqlite
// backend.
func OpenStore(ctx context.Context, backend, sqlitePath string) (Store, error) {
	backend = strings.ToLower(strings.TrimSpace(backend))
	store, err := openBackend(ctx, backend, sqlitePath)
	if err != nil {
		return nil, err
	}
	log.Debug("Settings store ready", "backend", backend)
	return store, nil
}

func openBackend(ctx context.Context, backend, sqlitePath string) (Store, error) {
	switch backend {
	case "", BackendSQLite:
		dialector, err := database.SQLiteDialector(sqlitePath)
		if err != nil {
			return nil, err
		}
		db, err := database.SetupDB(database.WithDialector(dialector))
		if err != nil {
			return nil, err
		}
		return &GormStore{db: db, owned: true}, nil
	case BackendPostgres:
		db, err := database.SetupDB(database.WithDialector(database.PostgresDialector()))
		if err != nil {
			return nil, err
		}
		return &GormStore{db: db, owned: true}, nil
	case BackendRedis:
		client, err := support.GetRedisClient(ctx)
		if err != nil {
			return nil, err
		}
		return &RedisStore{client: client, prefix: DefaultRedisPrefix, closeFn: support.CloseRedisClient}, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("settings: unknown store backend %q", backend)
	}
}

type GormStore struct {
	db    *gorm.DB
	owned bool
}

// NewGormStore uses an already migrated connection. Close leaves it open.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, key string) (string, bool, error) {
	var setting domain.Setting
	err := s.db.WithContext(ctx).Where("key = ?", key).Take(&setting).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: get %s: %w", key, err)
	}
	return setting.Value, true, nil
}

func (s *GormStore) Set(ctx context.Context, key, value string) error {
	setting := domain.Setting{Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
	if err != nil {
		return fmt.Errorf("settings: set %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&domain.Setting{}).Error; err != nil {
		return fmt.Errorf("settings: delete %s: %w", key, err)
	}
	return nil
}

func (s *GormStore) Close() error {
	if !s.owned {
		return nil
	}
	return database.Close(s.db)
}

const DefaultRedisPrefix = "ipsearch:settings:"

type RedisStore struct {
	client  *redis.Client
	prefix  string
	closeFn func() error
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("settings: redis get %s: %w", key, err)
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("settings: redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("settings: redis delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}

// MemoryStore keeps settings for the lifetime of the process.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
