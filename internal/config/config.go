// Package config はアプリケーション設定を読み込みます。
// 優先順位: デフォルト値 < TOMLファイル(CONFIG_FILE) < 環境変数(.env を含む)
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

type Config struct {
	Port            string        `toml:"port"`
	Debug           bool          `toml:"debug"`
	LogLevel        string        `toml:"log_level"`
	LogFormat       string        `toml:"log_format"`
	AllowOrigins    []string      `toml:"allow_origins"`
	ShutdownTimeout time.Duration `toml:"shutdown_timeout"`

	Database DatabaseConfig `toml:"database"`
	Session  SessionConfig  `toml:"session"`
	Redis    RedisConfig    `toml:"redis"`
}

type DatabaseConfig struct {
	Driver     string `toml:"driver"`
	User       string `toml:"user"`
	Pass       string `toml:"pass"`
	Host       string `toml:"host"`
	Port       string `toml:"port"`
	Name       string `toml:"name"`
	SQLitePath string `toml:"sqlite_path"`
}

type SessionConfig struct {
	JWTSecret    string        `toml:"jwt_secret"`
	TTL          time.Duration `toml:"ttl"`
	CookieName   string        `toml:"cookie_name"`
	CookieSecure bool          `toml:"cookie_secure"`
	LoginURL     string        `toml:"login_url"`
}

// RedisConfig のURLが空の場合、フラッシュメッセージはプロセス内に保持されます。
type RedisConfig struct {
	URL      string        `toml:"url"`
	FlashTTL time.Duration `toml:"flash_ttl"`
}

// Default はデフォルト設定を返します。
func Default() *Config {
	return &Config{
		Port:            "8080",
		LogLevel:        "info",
		LogFormat:       "text",
		AllowOrigins:    []string{"http://localhost:3000"},
		ShutdownTimeout: 30 * time.Second,
		Database: DatabaseConfig{
			Driver:     DriverSQLite,
			Host:       "127.0.0.1",
			Port:       "3306",
			SQLitePath: "todo.db",
		},
		Session: SessionConfig{
			TTL:        24 * time.Hour,
			CookieName: "todo_session",
			LoginURL:   "/accounts/login/",
		},
		Redis: RedisConfig{
			FlashTTL: 10 * time.Minute,
		},
	}
}

// Load は .env、TOMLファイル、環境変数の順に設定を読み込みます。
// configPath が空なら CONFIG_FILE を参照します。
func Load(configPath string, envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Debugf("no .env file loaded: %v", err)
	}

	cfg := Default()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_FILE")
	}
	if configPath != "" {
		if _, err := toml.DecodeFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("decode config file %s: %w", configPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString("PORT", &c.Port)
	setString("LOG_LEVEL", &c.LogLevel)
	setString("LOG_FORMAT", &c.LogFormat)
	setString("DB_DRIVER", &c.Database.Driver)
	setString("DB_USER", &c.Database.User)
	setString("DB_PASS", &c.Database.Pass)
	setString("DB_HOST", &c.Database.Host)
	setString("DB_PORT", &c.Database.Port)
	setString("DB_NAME", &c.Database.Name)
	setString("SQLITE_PATH", &c.Database.SQLitePath)
	setString("JWT_SECRET", &c.Session.JWTSecret)
	setString("COOKIE_NAME", &c.Session.CookieName)
	setString("LOGIN_URL", &c.Session.LoginURL)
	setString("REDIS_URL", &c.Redis.URL)

	if v, ok := os.LookupEnv("ALLOW_ORIGINS"); ok && v != "" {
		c.AllowOrigins = splitList(v)
	}

	for _, b := range []struct {
		key string
		dst *bool
	}{
		{"DEBUG", &c.Debug},
		{"COOKIE_SECURE", &c.Session.CookieSecure},
	} {
		if err := setBool(b.key, b.dst); err != nil {
			return err
		}
	}

	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"SESSION_TTL", &c.Session.TTL},
		{"FLASH_TTL", &c.Redis.FlashTTL},
		{"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout},
	} {
		if err := setDuration(d.key, d.dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate は必須項目と値の範囲を確認します。
func (c *Config) Validate() error {
	if c.Session.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET environment variable not set")
	}
	switch c.Database.Driver {
	case DriverMySQL:
		if c.Database.User == "" || c.Database.Host == "" || c.Database.Name == "" {
			return fmt.Errorf("mysql driver requires DB_USER, DB_HOST and DB_NAME")
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			return fmt.Errorf("sqlite driver requires SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("invalid SESSION_TTL: must be greater than zero")
	}
	if !strings.HasPrefix(c.Session.LoginURL, "/") {
		return fmt.Errorf("invalid LOGIN_URL %q: must be a local path", c.Session.LoginURL)
	}
	return nil
}

// MySQLDSN は環境変数からMySQL接続文字列 (DSN) を構築します。
// clientFoundRows=true で UPDATE の影響行数を一致行数として扱います。
func (c *Config) MySQLDSN() string {
	d := c.Database
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&clientFoundRows=true", d.User, d.Pass, d.Host, d.Port, d.Name)
}

func setString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
