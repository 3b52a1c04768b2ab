package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	sqlbuilder "github.com/huandu/go-sqlbuilder"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var ErrNotFound = errors.New("not found")

//go:embed migrations
var migrations embed.FS

// Connect открывает подключение к БД. Пока база поднимается, пробуем
// переподключиться с экспоненциальной задержкой
func Connect(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	if err := checkDriver(driver); err != nil {
		return nil, err
	}

	var db *sqlx.DB
	connect := func() error {
		conn, err := sqlx.ConnectContext(ctx, driver, dataSource(driver, dsn))
		if err != nil {
			log.WithError(err).WithField("driver", driver).Warn("database is not ready")
			return err
		}

		db = conn
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5), ctx)
	if err := backoff.Retry(connect, policy); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// В SQLite одновременно пишет только одно соединение
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	return db, nil
}

// Migrate накатывает встроенные миграции для выбранного драйвера
func Migrate(driver, dsn string) error {
	if err := checkDriver(driver); err != nil {
		return err
	}

	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	db, err := sql.Open(driver, dataSource(driver, dsn))
	if err != nil {
		return fmt.Errorf("open %s: %w", driver, err)
	}

	var instance database.Driver
	switch driver {
	case DriverPostgres:
		instance, err = migratepg.WithInstance(db, &migratepg.Config{})
	case DriverSQLite:
		instance, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	}
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, instance)
	if err != nil {
		db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	// Закрывает и источник, и подключение
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}

func checkDriver(driver string) error {
	switch driver {
	case DriverPostgres, DriverSQLite:
		return nil
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Для SQLite dsn - это путь к файлу, к нему добавляем прагмы
func dataSource(driver, dsn string) string {
	if driver != DriverSQLite || strings.Contains(dsn, "?") {
		return dsn
	}

	return dsn + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}

func flavorOf(db *sqlx.DB) sqlbuilder.Flavor {
	if db.DriverName() == DriverSQLite {
		return sqlbuilder.SQLite
	}

	return sqlbuilder.PostgreSQL
}
