package config

import (
	"bytes"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort        = 4000
	defaultEnv         = "development"
	defaultDBHost      = "127.0.0.1"
	defaultDBPort      = 3306
	defaultDBUser      = "root"
	defaultDBPassword  = "password"
	defaultDBName      = "notedeck"
	defaultDBCharset   = "utf8mb4"
	defaultDBLoc       = "Local"
	defaultRedisHost   = "localhost"
	defaultRedisPort   = 6379
	defaultRedisDB     = 0
	defaultJWTTTLHours = 24 * 7
	defaultStorageDir  = "uploads"

	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	Env            string                `yaml:"env"` // "development" | "production"
	DSN            string                `yaml:"-"`
	RedisURL       string                `yaml:"-"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	JWTTTLHours    int                   `yaml:"jwt_ttl_hours"`
	Storage        StorageRuntimeConfig  `yaml:"storage"`
}

type DatabaseRuntimeConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
	Loc      string `yaml:"loc"`
}

type RedisRuntimeConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type StorageRuntimeConfig struct {
	Driver string   `yaml:"driver"` // "local" | "s3"
	Dir    string   `yaml:"dir"`
	S3     S3Config `yaml:"s3"`
}

type S3Config struct {
	Region string `yaml:"region"`
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

type rawAppConfig struct {
	Port           *int                  `yaml:"port"`
	Env            string                `yaml:"env"`
	Database       rawDatabaseConfig     `yaml:"database"`
	Redis          rawRedisConfig        `yaml:"redis"`
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	JWTTTLHours    *int                  `yaml:"jwt_ttl_hours"`
	Storage        *StorageRuntimeConfig `yaml:"storage"`
}

type rawDatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     *int   `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Charset  string `yaml:"charset"`
	Loc      string `yaml:"loc"`
}

type rawRedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     *int   `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       *int   `yaml:"db"`
	TLS      *bool  `yaml:"tls"`
}

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	raw := rawAppConfig{}
	if err := decoder.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	applyRawAppConfig(&cfg, raw)
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if cfg.Storage.Driver != StorageDriverLocal && cfg.Storage.Driver != StorageDriverS3 {
		return nil, fmt.Errorf("invalid storage.driver %q in %q, expected local or s3", cfg.Storage.Driver, path)
	}
	if cfg.Storage.Driver == StorageDriverS3 && strings.TrimSpace(cfg.Storage.S3.Bucket) == "" {
		return nil, fmt.Errorf("storage.s3.bucket is required when storage.driver is s3")
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port:        defaultPort,
		Env:         defaultEnv,
		JWTTTLHours: defaultJWTTTLHours,
		Database: DatabaseRuntimeConfig{
			Host:     defaultDBHost,
			Port:     defaultDBPort,
			User:     defaultDBUser,
			Password: defaultDBPassword,
			Name:     defaultDBName,
			Charset:  defaultDBCharset,
			Loc:      defaultDBLoc,
		},
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Storage: StorageRuntimeConfig{
			Driver: StorageDriverLocal,
			Dir:    defaultStorageDir,
		},
	}
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != nil {
		cfg.Port = *raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = strings.ToLower(v)
	}

	db := cfg.Database
	if v := strings.TrimSpace(raw.Database.DSN); v != "" {
		db.DSN = v
	}
	if v := strings.TrimSpace(raw.Database.Host); v != "" {
		db.Host = v
	}
	if raw.Database.Port != nil {
		db.Port = *raw.Database.Port
	}
	if v := strings.TrimSpace(raw.Database.User); v != "" {
		db.User = v
	}
	if v := strings.TrimSpace(raw.Database.Password); v != "" {
		db.Password = v
	}
	if v := strings.TrimSpace(raw.Database.Name); v != "" {
		db.Name = v
	}
	if v := strings.TrimSpace(raw.Database.Charset); v != "" {
		db.Charset = v
	}
	if v := strings.TrimSpace(raw.Database.Loc); v != "" {
		db.Loc = v
	}
	cfg.Database = db

	rd := cfg.Redis
	if v := strings.TrimSpace(raw.Redis.URL); v != "" {
		rd.URL = v
	}
	if v := strings.TrimSpace(raw.Redis.Host); v != "" {
		rd.Host = v
	}
	if raw.Redis.Port != nil {
		rd.Port = *raw.Redis.Port
	}
	if v := strings.TrimSpace(raw.Redis.Username); v != "" {
		rd.Username = v
	}
	if v := strings.TrimSpace(raw.Redis.Password); v != "" {
		rd.Password = v
	}
	if raw.Redis.DB != nil {
		rd.DB = *raw.Redis.DB
	}
	if raw.Redis.TLS != nil {
		rd.TLS = *raw.Redis.TLS
	}
	cfg.Redis = rd

	if raw.AllowedOrigins != nil {
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	}
	if v := strings.TrimSpace(raw.JWTSecret); v != "" {
		cfg.JWTSecret = v
	}
	if raw.JWTTTLHours != nil && *raw.JWTTTLHours > 0 {
		cfg.JWTTTLHours = *raw.JWTTTLHours
	}
	if raw.Storage != nil {
		st := *raw.Storage
		st.Driver = strings.ToLower(strings.TrimSpace(st.Driver))
		if st.Driver == "" {
			st.Driver = cfg.Storage.Driver
		}
		if strings.TrimSpace(st.Dir) == "" {
			st.Dir = cfg.Storage.Dir
		}
		cfg.Storage = st
	}

	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
}

// DSNValue builds a MySQL DSN, preferring an explicit dsn over the parts.
func (c DatabaseRuntimeConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	params := neturl.Values{}
	params.Set("charset", c.Charset)
	params.Set("parseTime", "true")
	params.Set("loc", c.Loc)

	auth := c.User
	if c.Password != "" {
		auth += ":" + c.Password
	}

	return fmt.Sprintf("%s@tcp(%s)/%s?%s",
		auth,
		net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		c.Name,
		params.Encode(),
	)
}

// URLValue builds a redis URL, preferring an explicit url over the parts.
func (c RedisRuntimeConfig) URLValue() string {
	if v := strings.TrimSpace(c.URL); v != "" {
		if strings.HasPrefix(v, "redis://") || strings.HasPrefix(v, "rediss://") {
			return v
		}
		return "redis://" + v
	}

	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}
	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + strconv.Itoa(c.DB),
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = neturl.UserPassword(c.Username, c.Password)
		} else {
			u.User = neturl.User(c.Username)
		}
	} else if c.Password != "" {
		u.User = neturl.UserPassword("", c.Password)
	}
	return u.String()
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// JWTTTL returns the configured token lifetime.
func (c *AppConfig) JWTTTL() time.Duration {
	hours := c.JWTTTLHours
	if hours <= 0 {
		hours = defaultJWTTTLHours
	}
	return time.Duration(hours) * time.Hour
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}
