// Package config загружает настройки сервера и CLI.
//
// Источники по возрастанию приоритета: значения по умолчанию,
// YAML-файл (если указан), переменные окружения TASKBOARD_*.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Addr           string        `mapstructure:"addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type StoreConfig struct {
	// Driver: "sqlite" или "file".
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	FilePath   string `mapstructure:"file_path"`
}

type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
	Issuer     string        `mapstructure:"issuer"`
	BcryptCost int           `mapstructure:"bcrypt_cost"`
}

// placeholderSecrets встречаются в примерах конфигов и не годятся для подписи.
var placeholderSecrets = map[string]bool{
	"change-me":               true,
	"change-me-in-production": true,
	"secret":                  true,
}

// Validate проверяет, что сессии можно подписывать. CLI секрет не нужен,
// поэтому проверка вызывается только на стороне сервера.
func (a AuthConfig) Validate() error {
	secret := strings.TrimSpace(a.JWTSecret)
	if secret == "" {
		return fmt.Errorf("auth.jwt_secret is required (set TASKBOARD_AUTH_JWT_SECRET)")
	}
	if placeholderSecrets[strings.ToLower(secret)] {
		return fmt.Errorf("auth.jwt_secret is a placeholder value, set a real secret")
	}
	return nil
}

type ClientConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	Token          string        `mapstructure:"token"`
	UndoDelay      time.Duration `mapstructure:"undo_delay"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// UndoPolicy: "single" или "queue".
	UndoPolicy string `mapstructure:"undo_policy"`
}

type Config struct {
	LogLevel string       `mapstructure:"log_level"`
	HTTP     HTTPConfig   `mapstructure:"http"`
	Store    StoreConfig  `mapstructure:"store"`
	Auth     AuthConfig   `mapstructure:"auth"`
	Client   ClientConfig `mapstructure:"client"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.request_timeout", 5*time.Second)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "taskboard.db")
	v.SetDefault("store.file_path", "tasks.json")

	// Секрета по умолчанию нет: сервер без него не стартует.
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.issuer", "taskboard")
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("client.server_url", "http://localhost:8080")
	v.SetDefault("client.token", "")
	v.SetDefault("client.undo_delay", 3*time.Second)
	v.SetDefault("client.request_timeout", 10*time.Second)
	v.SetDefault("client.undo_policy", "single")
}

// Load читает конфигурацию. path может быть пустым.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TASKBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case "sqlite", "file":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	switch c.Client.UndoPolicy {
	case "single", "queue":
	default:
		return fmt.Errorf("unsupported undo policy %q", c.Client.UndoPolicy)
	}
	if c.Client.UndoDelay <= 0 {
		return fmt.Errorf("client.undo_delay must be positive")
	}
	return nil
}
