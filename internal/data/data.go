package data

import (
	"context"
	"time"

	"github.com/reelvault/reelvault/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(
	NewData,
	NewTransaction,
	NewRentalRepo,
	NewProgressRepo,
	NewCatalogClient,
)

// Data encapsulates database and cache connections
type Data struct {
	db  *gorm.DB
	rdb *redis.Client
	log *log.Helper
}

// NewData creates Data instance with database and Redis connections
func NewData(c *conf.Data, logger log.Logger) (*Data, func(), error) {
	l := log.NewHelper(logger)

	// Initialize PostgreSQL connection
	// TranslateError turns driver unique-violation errors into
	// gorm.ErrDuplicatedKey, which the rental repo relies on.
	db, err := gorm.Open(postgres.Open(c.Database.Source), &gorm.Config{TranslateError: true})
	if err != nil {
		l.Errorf("failed to connect to database: %v", err)
		return nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		l.Errorf("failed to get database instance: %v", err)
		return nil, nil, err
	}

	// Configure connection pool
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Schema ownership lives with the migrations tooling; AutoMigrate only
	// covers local development and tests.
	if err := db.AutoMigrate(&Rental{}, &WatchProgress{}); err != nil {
		l.Errorf("failed to migrate schema: %v", err)
		return nil, nil, err
	}

	l.Info("database connected successfully")

	// Initialize Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr:         c.Redis.Addr,
		ReadTimeout:  c.Redis.ReadTimeout.AsDuration(),
		WriteTimeout: c.Redis.WriteTimeout.AsDuration(),
	})

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		l.Warnf("failed to connect to redis: %v", err)
		// Redis is optional, continue without it
		rdb = nil
	} else {
		l.Info("redis connected successfully")
	}

	data := &Data{
		db:  db,
		rdb: rdb,
		log: l,
	}

	cleanup := func() {
		l.Info("closing data resources")
		if data.rdb != nil {
			if err := data.rdb.Close(); err != nil {
				l.Errorf("failed to close redis: %v", err)
			}
		}
		if sqlDB != nil {
			if err := sqlDB.Close(); err != nil {
				l.Errorf("failed to close database: %v", err)
			}
		}
	}

	return data, cleanup, nil
}

type txContextKey struct{}

// DB returns the transaction bound to ctx when one is open, the base
// connection otherwise. Repositories route every query through it so they
// transparently join transactions opened by the biz layer.
func (d *Data) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txContextKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return d.db.WithContext(ctx)
}
