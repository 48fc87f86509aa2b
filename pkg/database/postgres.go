package database

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	migrateV4 "github.com/golang-migrate/migrate/v4"
	migratePostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewPostgresDB создает новое подключение к PostgreSQL
// logLevel задаёт подробность SQL-логов gorm (в CLI достаточно Warn).
func NewPostgresDB(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Настройка пула соединений
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Максимальное число открытых соединений
	sqlDB.SetMaxOpenConns(25)

	// Максимальное число простаивающих соединений
	sqlDB.SetMaxIdleConns(10)

	// Максимальное время жизни соединения
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// newMigrator создаёт экземпляр migrate поверх открытого подключения.
// path — каталог с SQL-миграциями ("migrations" по умолчанию).
func newMigrator(sqlDB *sql.DB, path string) (*migrateV4.Migrate, error) {
	// Убедимся, что подключение к БД активно
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("не удалось проверить подключение к БД перед миграцией: %w", err)
	}

	driver, err := migratePostgres.WithInstance(sqlDB, &migratePostgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("не удалось создать драйвер postgres для migrate: %w", err)
	}

	if path == "" {
		path = "migrations"
	}
	m, err := migrateV4.NewWithDatabaseInstance(
		"file://"+path,
		"postgres", // Имя базы данных (для логирования в migrate)
		driver,
	)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать экземпляр migrate: %w", err)
	}
	return m, nil
}

// MigrateDB применяет SQL-миграции из каталога path
func MigrateDB(db *gorm.DB, path string) error {
	log.Println("Запуск применения миграций базы данных...")

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("не удалось получить *sql.DB из *gorm.DB: %w", err)
	}
	return MigrateUp(sqlDB, path)
}

// MigrateUp применяет миграции поверх *sql.DB (используется CLI без gorm)
func MigrateUp(sqlDB *sql.DB, path string) error {
	m, err := newMigrator(sqlDB, path)
	if err != nil {
		return err
	}

	log.Println("Применяем миграции 'up'...")
	err = m.Up()
	if err != nil && !errors.Is(err, migrateV4.ErrNoChange) {
		log.Printf("Ошибка применения миграций: %v", err)
		return fmt.Errorf("ошибка применения миграций 'up': %w", err)
	} else if errors.Is(err, migrateV4.ErrNoChange) {
		log.Println("Изменений в миграциях не найдено, база данных уже актуальна.")
	} else {
		log.Println("Миграции успешно применены.")
	}

	return nil
}

// ForceMigrationVersion снимает признак dirty, принудительно выставляя версию схемы.
// Нужна после упавшей миграции, которую исправили вручную.
func ForceMigrationVersion(sqlDB *sql.DB, path string, version int) error {
	m, err := newMigrator(sqlDB, path)
	if err != nil {
		return err
	}
	if err := m.Force(version); err != nil {
		return fmt.Errorf("failed to force migration version %d: %w", version, err)
	}
	log.Printf("Версия миграций принудительно установлена в %d", version)
	return nil
}

// MigrationVersion возвращает текущую версию схемы и признак dirty
func MigrationVersion(sqlDB *sql.DB, path string) (uint, bool, error) {
	m, err := newMigrator(sqlDB, path)
	if err != nil {
		return 0, false, err
	}
	version, dirty, err := m.Version()
	if errors.Is(err, migrateV4.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close закрывает пул соединений
func Close(gormDB *gorm.DB) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}
