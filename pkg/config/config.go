package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config configuración del gateway
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Session SessionConfig `mapstructure:"session"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Attempt AttemptConfig `mapstructure:"attempt"`
	Logging LoggingConfig `mapstructure:"logging"`

	v *viper.Viper
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	AllowedOrigin   string        `mapstructure:"allowed_origin"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BackendConfig API REST de ShikkhaPro
type BackendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SessionConfig struct {
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
	Secure     bool          `mapstructure:"secure"`
}

type CacheConfig struct {
	QuizTTL time.Duration `mapstructure:"quiz_ttl"`
}

type AttemptConfig struct {
	AutoSubmitTimeout time.Duration `mapstructure:"auto_submit_timeout"`
}

// LoggingConfig rotación de archivos de log
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.name", "ShikkhaPro Gateway")
	v.SetDefault("server.allowed_origin", "*")
	v.SetDefault("server.shutdown_timeout", 5*time.Second)

	v.SetDefault("backend.base_url", "http://localhost:5000/api")
	v.SetDefault("backend.timeout", 15*time.Second)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.cookie_name", "shikkha_session")
	v.SetDefault("session.secure", false)

	v.SetDefault("cache.quiz_ttl", time.Hour)

	v.SetDefault("attempt.auto_submit_timeout", 30*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
}

// Load lee .env, config/config.yaml y variables SHIKKHA_* (en ese orden de
// menor a mayor prioridad, sobre los valores por defecto).
func Load(projectRoot string) (*Config, error) {
	// .env es opcional
	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error leyendo .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SHIKKHA") // SHIKKHA_SERVER_PORT
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error leyendo archivo de configuración: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("no se pudo decodificar la configuración: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate revisa los valores que no tienen un valor por defecto útil
func (c *Config) Validate() error {
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url es obligatorio")
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend.base_url inválido: %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return errors.New("backend.timeout debe ser positivo")
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl debe ser positivo")
	}
	if c.Session.CookieName == "" {
		return errors.New("session.cookie_name es obligatorio")
	}
	return nil
}

// Addr dirección de escucha del servidor
func (c *Config) Addr() string {
	if strings.Contains(c.Server.Port, ":") {
		return c.Server.Port
	}
	return ":" + c.Server.Port
}

// OnChange recarga el archivo de configuración cuando cambia. Solo hay
// recarga si Load encontró config/config.yaml.
func (c *Config) OnChange(log *zap.Logger, fn func(*Config)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		log.Info("Archivo de configuración modificado, recargando", zap.String("file", e.Name))
		next, err := decode(c.v)
		if err != nil {
			log.Error("Error recargando configuración", zap.Error(err))
			return
		}
		fn(next)
	})
	c.v.WatchConfig()
}
