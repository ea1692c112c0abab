package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Skotchmaster/school_canteen/internal/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Store bundles the ORM handle used by repositories with a sqlx handle over
// the same connection pool for hand-written reporting queries.
type Store struct {
	Gorm *gorm.DB
	SQL  *sqlx.DB
}

func configurePool(sqlDB *sql.DB) {
	const (
		maxOpenConns    = 20
		maxIdleConns    = 10
		connMaxLifetime = 30 * time.Minute
		connMaxIdleTime = 5 * time.Minute
	)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
}

func gormConfig(prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:    prepare,
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	}
}

func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	switch driver {
	case DriverPostgres:
		return openPostgres(ctx, dsn)
	case DriverSQLite:
		return openSQLite(ctx, dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}
}

func openPostgres(ctx context.Context, dsn string) (*Store, error) {
	sqlxDB, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	configurePool(sqlxDB.DB)

	if err := ping(ctx, sqlxDB.DB); err != nil {
		_ = sqlxDB.Close()
		return nil, err
	}

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlxDB.DB}), gormConfig(true))
	if err != nil {
		_ = sqlxDB.Close()
		return nil, fmt.Errorf("gorm postgres: %w", err)
	}

	return &Store{Gorm: gdb, SQL: sqlxDB}, nil
}

func openSQLite(ctx context.Context, dsn string) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(dsn), gormConfig(false))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	// one writer at a time; also keeps in-memory databases alive
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := ping(ctx, sqlDB); err != nil {
		return nil, err
	}

	return &Store{Gorm: gdb, SQL: sqlx.NewDb(sqlDB, DriverSQLite)}, nil
}

func ping(ctx context.Context, sqlDB *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	if err := s.Gorm.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return ping(ctx, s.SQL.DB)
}

func (s *Store) Close() error {
	return s.SQL.Close()
}
