package db

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlog "gorm.io/gorm/logger"

	"waos/internal/config"
	"waos/internal/models"
	console "waos/internal/utils/logger"
)

// DB is the process-wide pool set by Connect.
var DB *gorm.DB

var log = console.New("DB")

const firstBackoff = 2 * time.Second

// Tables lists every model AutoMigrate manages, in creation order.
var Tables = []interface{}{
	&models.User{},
	&models.AuthTransaction{},
	&models.PasswordReset{},
	&models.Task{},
	&models.File{},
}

// Connect dials postgres until it answers or ConnectAttempts runs out, sizes the pool
// and migrates.
func Connect(cfg *config.Config) error {
	dc := cfg.Database
	attempts := dc.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}
	log.Info("Dialing %s@%s:%d/%s", dc.User, dc.Host, dc.Port, dc.Name)

	var (
		conn *gorm.DB
		err  error
	)
	wait := firstBackoff
	for attempt := 1; ; attempt++ {
		if conn, err = Open(postgres.Open(dc.DSN()), dc.Debug); err == nil {
			break
		}
		if attempt == attempts {
			return log.Error("Database unreachable", fmt.Errorf("%d attempts: %w", attempts, err))
		}
		log.Warn("Database not ready (%d/%d), retrying in %s: %v", attempt, attempts, wait, err)
		time.Sleep(wait)
		wait *= 2
	}

	if err := tune(conn, dc); err != nil {
		return log.Error("Pool settings", err)
	}
	if err := Migrate(conn); err != nil {
		return log.Error("Migration failed", err)
	}

	DB = conn
	log.Success("Database ready")
	return nil
}

func tune(conn *gorm.DB, dc config.DatabaseConfig) error {
	pool, err := conn.DB()
	if err != nil {
		return err
	}
	if dc.MaxOpenConns > 0 {
		pool.SetMaxOpenConns(dc.MaxOpenConns)
	}
	if dc.MaxIdleConns > 0 {
		pool.SetMaxIdleConns(dc.MaxIdleConns)
	}
	if dc.ConnMaxLife > 0 {
		pool.SetConnMaxLifetime(dc.ConnMaxLife)
	}
	return nil
}

// Open applies the gorm settings shared by production and sqlmock-backed tests.
func Open(dialector gorm.Dialector, debug bool) (*gorm.DB, error) {
	level := gormlog.Warn
	if debug {
		level = gormlog.Info
	}
	return gorm.Open(dialector, &gorm.Config{
		Logger:                                   gormlog.Default.LogMode(level),
		DisableForeignKeyConstraintWhenMigrating: true,
		PrepareStmt:                              true,
	})
}

// Migrate runs AutoMigrate for Tables in a single transaction.
func Migrate(conn *gorm.DB) error {
	return conn.Transaction(func(tx *gorm.DB) error {
		return tx.AutoMigrate(Tables...)
	})
}

// Close releases the pool opened by Connect. Safe to call when Connect failed.
func Close() error {
	if DB == nil {
		return nil
	}
	pool, err := DB.DB()
	if err != nil {
		return err
	}
	return pool.Close()
}

func GetDB() *gorm.DB {
	return DB
}
