package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `json:"app"`
	Server     ServerConfig     `json:"server"`
	Database   DatabaseConfig   `json:"database"`
	JWT        JWTConfig        `json:"jwt"`
	Storage    StorageConfig    `json:"storage"`
	Redis      RedisConfig      `json:"redis"`
	Crypto     CryptoConfig     `json:"crypto"`
	Validation ValidationConfig `json:"validation"`
	Security   SecurityConfig   `json:"security"`
	Uploads    UploadsConfig    `json:"uploads"`
	Mail       MailConfig       `json:"mail"`
	OAuth      OAuthConfig      `json:"oauth"`
	Admin      AdminConfig      `json:"admin"`
	Log        LogConfig        `json:"log"`
	RateLimit  RateLimitConfig  `json:"rateLimit"`
}

type AppConfig struct {
	Name string `json:"name"`
	Env  string `json:"env"`
}

type CryptoConfig struct {
	// PrivateKey is a base64 encoded PEM key. When set, access tokens are signed with RS256.
	PrivateKey string `json:"privateKey"`
}

type ServerConfig struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	PublicURL string `json:"publicUrl"`
	BodyLimit string `json:"bodyLimit"`
}

type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"sslMode"`
	Debug    bool   `json:"debug"`

	MaxOpenConns int           `json:"maxOpenConns"`
	MaxIdleConns int           `json:"maxIdleConns"`
	ConnMaxLife  time.Duration `json:"connMaxLife"`
	// ConnectAttempts bounds the startup retry loop; attempts are 2s apart, doubling.
	ConnectAttempts int `json:"connectAttempts"`
}

// DSN builds the postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

type JWTConfig struct {
	Secret     string        `json:"secret"`
	AccessTTL  time.Duration `json:"accessTtl"`
	RefreshTTL time.Duration `json:"refreshTtl"`
}

type StorageConfig struct {
	Provider string   `json:"provider"` // local, s3, r2
	BasePath string   `json:"basePath"`
	S3       S3Config `json:"s3"`
}

type S3Config struct {
	BucketName string `json:"bucketName"`
	Endpoint   string `json:"endpoint"`
	Region     string `json:"region"`
	AccessKey  string `json:"accessKey"`
	SecretKey  string `json:"secretKey"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	Username string `json:"username"`
	DB       int    `json:"db"`
}

// ValidationConfig drives the request schema middleware.
type ValidationConfig struct {
	// Methods subject to body validation.
	Methods []string `json:"methods"`
	// SafeUserFields survive redaction when an echoed payload carries credentials.
	SafeUserFields []string `json:"safeUserFields"`
}

type SecurityConfig struct {
	MinPasswordScore int           `json:"minPasswordScore"`
	ResetCodeTTL     time.Duration `json:"resetCodeTtl"`
	ResetWindow      time.Duration `json:"resetWindow"`
	ResetMaxPerEmail int           `json:"resetMaxPerEmail"`
}

type UploadsConfig struct {
	MaxAvatarBytes int64 `json:"maxAvatarBytes"`
	// MaxAvatarPixels caps width*height declared by an image header, checked before decoding.
	MaxAvatarPixels int64 `json:"maxAvatarPixels"`
	AvatarSizes     []int `json:"avatarSizes"`
	AvatarQuality   int   `json:"avatarQuality"`
}

type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// Enabled reports whether outgoing mail is configured.
func (m MailConfig) Enabled() bool {
	return m.Host != "" && m.From != ""
}

type OAuthConfig struct {
	GoogleUserInfoURL string `json:"googleUserInfoUrl"`
}

type AdminConfig struct {
	PanelEnabled bool `json:"panelEnabled"`
}

type LogConfig struct {
	Level string `json:"level"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `json:"requestsPerSecond"`
}

// Defaults returns the built-in configuration every other layer is merged onto.
func Defaults() *Config {
	return &Config{
		App: AppConfig{
			Name: "waos",
			Env:  "development",
		},
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8080,
			PublicURL: "http://localhost:8080",
			BodyLimit: "10M",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "waos",
			SSLMode: "disable",

			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLife:     time.Hour,
			ConnectAttempts: 5,
		},
		JWT: JWTConfig{
			Secret:     "your-secret-key",
			AccessTTL:  24 * time.Hour,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Storage: StorageConfig{
			Provider: "local",
			BasePath: "./storage",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Validation: ValidationConfig{
			Methods: []string{http.MethodPost, http.MethodPut},
			SafeUserFields: []string{
				"id", "lastName", "displayName", "username", "email", "bio", "position",
				"roles", "provider", "profileImageURL", "createdAt", "updatedAt",
			},
		},
		Security: SecurityConfig{
			MinPasswordScore: 3,
			ResetCodeTTL:     15 * time.Minute,
			ResetWindow:      time.Hour,
			ResetMaxPerEmail: 3,
		},
		Uploads: UploadsConfig{
			MaxAvatarBytes:  5 << 20,
			MaxAvatarPixels: 40_000_000,
			AvatarSizes:     []int{128, 256, 512},
			AvatarQuality:   85,
		},
		Mail: MailConfig{
			Port: 587,
		},
		OAuth: OAuthConfig{
			GoogleUserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
		Log: LogConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
		},
	}
}

// Load builds the configuration from defaults, discovered config files and the environment.
func Load() (*Config, error) {
	cfg := Defaults()
	cfg.App.Env = getEnv("APP_ENV", cfg.App.Env)

	files, err := Discover(getEnv("CONFIG_FILES", "config/*.json"), cfg.App.Env)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if err := cfg.MergeFile(file); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.App.Name = getEnv("APP_NAME", c.App.Name)

	c.Server.Host = getEnv("SERVER_HOST", c.Server.Host)
	c.Server.Port = getEnvAsInt("SERVER_PORT", c.Server.Port)
	c.Server.PublicURL = getEnv("PUBLIC_URL", c.Server.PublicURL)
	c.Server.BodyLimit = getEnv("SERVER_BODY_LIMIT", c.Server.BodyLimit)

	c.Database.Host = getEnv("POSTGRES_HOST", c.Database.Host)
	c.Database.Port = getEnvAsInt("POSTGRES_PORT", c.Database.Port)
	c.Database.User = getEnv("POSTGRES_USER", c.Database.User)
	c.Database.Password = getEnv("POSTGRES_PASSWORD", c.Database.Password)
	c.Database.Name = getEnv("POSTGRES_DB", c.Database.Name)
	c.Database.SSLMode = getEnv("POSTGRES_SSLMODE", c.Database.SSLMode)
	c.Database.Debug = getEnvAsBool("POSTGRES_DEBUG", c.Database.Debug)
	c.Database.MaxOpenConns = getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", c.Database.MaxOpenConns)
	c.Database.MaxIdleConns = getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", c.Database.MaxIdleConns)
	c.Database.ConnMaxLife = getEnvAsDuration("POSTGRES_CONN_MAX_LIFE", c.Database.ConnMaxLife)
	c.Database.ConnectAttempts = getEnvAsInt("POSTGRES_CONNECT_ATTEMPTS", c.Database.ConnectAttempts)

	c.JWT.Secret = getEnv("JWT_SECRET", c.JWT.Secret)
	c.JWT.AccessTTL = getEnvAsDuration("JWT_ACCESS_TTL", c.JWT.AccessTTL)
	c.JWT.RefreshTTL = getEnvAsDuration("JWT_REFRESH_TTL", c.JWT.RefreshTTL)

	c.Storage.Provider = getEnv("STORAGE_PROVIDER", c.Storage.Provider)
	c.Storage.BasePath = getEnv("STORAGE_BASE_PATH", c.Storage.BasePath)
	c.Storage.S3.BucketName = getEnv("S3_BUCKET_NAME", c.Storage.S3.BucketName)
	c.Storage.S3.Endpoint = getEnv("S3_ENDPOINT", c.Storage.S3.Endpoint)
	c.Storage.S3.Region = getEnv("S3_REGION", c.Storage.S3.Region)
	c.Storage.S3.AccessKey = getEnv("S3_ACCESS_KEY", c.Storage.S3.AccessKey)
	c.Storage.S3.SecretKey = getEnv("S3_SECRET_KEY", c.Storage.S3.SecretKey)

	if host, ok := os.LookupEnv("REDIS_HOST"); ok {
		c.Redis.Addr = fmt.Sprintf("%s:%d", host, getEnvAsInt("REDIS_PORT", 6379))
	}
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.Username = getEnv("REDIS_USERNAME", c.Redis.Username)
	c.Redis.DB = getEnvAsInt("REDIS_DB", c.Redis.DB)

	c.Crypto.PrivateKey = getEnv("PRIVATE_KEY", c.Crypto.PrivateKey)

	c.Validation.Methods = getEnvAsList("VALIDATION_METHODS", c.Validation.Methods)
	c.Validation.SafeUserFields = getEnvAsList("VALIDATION_SAFE_USER_FIELDS", c.Validation.SafeUserFields)

	c.Security.MinPasswordScore = getEnvAsInt("SECURITY_MIN_PASSWORD_SCORE", c.Security.MinPasswordScore)
	c.Security.ResetCodeTTL = getEnvAsDuration("SECURITY_RESET_CODE_TTL", c.Security.ResetCodeTTL)
	c.Security.ResetWindow = getEnvAsDuration("SECURITY_RESET_WINDOW", c.Security.ResetWindow)
	c.Security.ResetMaxPerEmail = getEnvAsInt("SECURITY_RESET_MAX_PER_EMAIL", c.Security.ResetMaxPerEmail)

	c.Uploads.MaxAvatarBytes = getEnvAsInt64("UPLOADS_MAX_AVATAR_BYTES", c.Uploads.MaxAvatarBytes)
	c.Uploads.MaxAvatarPixels = getEnvAsInt64("UPLOADS_MAX_AVATAR_PIXELS", c.Uploads.MaxAvatarPixels)
	c.Uploads.AvatarSizes = getEnvAsIntList("UPLOADS_AVATAR_SIZES", c.Uploads.AvatarSizes)
	c.Uploads.AvatarQuality = getEnvAsInt("UPLOADS_AVATAR_QUALITY", c.Uploads.AvatarQuality)

	c.Mail.Host = getEnv("SMTP_HOST", c.Mail.Host)
	c.Mail.Port = getEnvAsInt("SMTP_PORT", c.Mail.Port)
	c.Mail.Username = getEnv("SMTP_USERNAME", c.Mail.Username)
	c.Mail.Password = getEnv("SMTP_PASSWORD", c.Mail.Password)
	c.Mail.From = getEnv("MAIL_FROM", c.Mail.From)

	c.OAuth.GoogleUserInfoURL = getEnv("GOOGLE_USERINFO_URL", c.OAuth.GoogleUserInfoURL)
	c.Admin.PanelEnabled = getEnvAsBool("ADMIN_PANEL_ENABLED", c.Admin.PanelEnabled)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.RateLimit.RequestsPerSecond = getEnvAsFloat("RATE_LIMIT_RPS", c.RateLimit.RequestsPerSecond)
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvAsIntList reads a comma separated list of integers. One bad item keeps the default.
func getEnvAsIntList(key string, defaultValue []int) []int {
	if _, exists := os.LookupEnv(key); !exists {
		return defaultValue
	}
	var out []int
	for _, item := range getEnvAsList(key, nil) {
		n, err := strconv.Atoi(item)
		if err != nil {
			return defaultValue
		}
		out = append(out, n)
	}
	return out
}

func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
