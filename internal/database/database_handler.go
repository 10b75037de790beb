package database

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/support"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultSQLitePath = "data/ipsearch.db"
)

type Config struct {
	Dialector  gorm.Dialector
	Migrations []any
}

type Option func(*Config)

var currentDSN atomic.Value

func setDSN(dsn string) {
	if dsn == "" {
		return
	}
	currentDSN.Store(dsn)
}

// CurrentDSN returns the connection string of the last opened database.
func CurrentDSN() string {
	if raw := currentDSN.Load(); raw != nil {
		if dsn, ok := raw.(string); ok {
			return dsn
		}
	}
	return ""
}

// SetupDB opens the settings database. Without options it opens the sqlite
// file at DefaultSQLitePath.
func SetupDB(opts ...Option) (*gorm.DB, error) {
	cfg := Config{
		Migrations: defaultMigrations(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.Dialector == nil {
		dialector, err := SQLiteDialector(DefaultSQLitePath)
		if err != nil {
			return nil, err
		}
		cfg.Dialector = dialector
	}

	db, err := gorm.Open(cfg.Dialector, &gorm.Config{Logger: silentLogger()})
	if err != nil {
		return nil, fmt.Errorf("database: open connection: %w", err)
	}
	configureConnectionPool(db)

	if len(cfg.Migrations) > 0 {
		if err := db.AutoMigrate(cfg.Migrations...); err != nil {
			return nil, fmt.Errorf("database: auto migrate: %w", err)
		}
		log.Debug("Database migration completed.")
	}

	return db, nil
}

// SQLiteDialector opens path, creating its directory first.
func SQLiteDialector(path string) (gorm.Dialector, error) {
	if path == "" {
		path = DefaultSQLitePath
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("database: create directory: %w", err)
		}
	}
	setDSN(path)
	return sqlite.Open(path), nil
}

// PostgresDialector builds the DSN from the DB_* environment variables.
func PostgresDialector() gorm.Dialector {
	dsn := buildPostgresDSN()
	setDSN(dsn)
	return postgres.Open(dsn)
}

func buildPostgresDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		support.GetEnv("DB_HOST", "localhost"),
		support.GetEnv("DB_PORT", "5432"),
		support.GetEnv("DB_USERNAME", "ipsearch"),
		support.GetEnv("DB_PASSWORD", "ipsearch"),
		support.GetEnv("DB_NAME", "ipsearch"),
		support.GetEnv("DB_SSLMODE", "disable"),
	)
}

func silentLogger() logger.Interface {
	return logger.New(
		log.Default(),
		logger.Config{LogLevel: logger.Silent},
	)
}

func defaultMigrations() []any {
	return []any{
		domain.Setting{},
	}
}

func WithDialector(d gorm.Dialector) Option {
	return func(cfg *Config) {
		cfg.Dialector = d
	}
}

func configureConnectionPool(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Error("database: get sql.DB", "error", err)
		return
	}

	maxOpen := support.GetEnvInt("DB_MAX_OPEN_CONNS", 4)
	maxIdle := support.GetEnvInt("DB_MAX_IDLE_CONNS", maxOpen)
	if maxIdle > maxOpen {
		maxIdle = maxOpen
	}
	lifetime := support.GetEnvInt("DB_CONN_MAX_LIFETIME", 300)

	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	if maxIdle >= 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if lifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(lifetime) * time.Second)
	}
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
