package server

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"taskboard/internal/auth"
	"taskboard/internal/config"
	"taskboard/internal/tasks"
)

// OpenSQLite открывает базу SQLite.
//
// TranslateError нужен, чтобы дубликат email приходил как
// gorm.ErrDuplicatedKey. Для ":memory:" пул ограничен одним
// соединением: иначе каждое соединение видит свою пустую базу.
func OpenSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// NewTaskStore выбирает хранилище задач по store.driver.
func NewTaskStore(cfg config.StoreConfig, db *gorm.DB) (tasks.Store, error) {
	switch cfg.Driver {
	case "file":
		return tasks.NewFileStore(cfg.FilePath), nil
	case "sqlite":
		return tasks.NewGormStore(db)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Driver)
	}
}

// NewAuthService собирает регистрацию и вход поверх таблицы users.
// Без настоящего auth.jwt_secret возвращает ошибку.
func NewAuthService(cfg config.AuthConfig, db *gorm.DB) (*auth.Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	users, err := auth.NewUserRepository(db)
	if err != nil {
		return nil, err
	}
	return auth.NewService(users,
		auth.NewPasswordHasher(cfg.BcryptCost),
		auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL, cfg.Issuer),
	), nil
}
