package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or a .env file loaded by main).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	OTP       OTPConfig
	Calls     CallsConfig
	Recording RecordingConfig
	Telegram  TelegramConfig
	HTTP      HTTPConfig
	Bootstrap BootstrapConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type OTPConfig struct {
	TTL         time.Duration
	MaxAttempts int
	// Requests allowed per identity inside RateWindow.
	RateLimit  int
	RateWindow time.Duration
}

type CallsConfig struct {
	DailyLimit   int
	HistoryLimit int
}

type RecordingConfig struct {
	Dir        string
	STUNURLs   []string
	GatherWait time.Duration
}

type TelegramConfig struct {
	BotToken    string
	AdminChatID string
	APIBaseURL  string
}

// Enabled reports whether both credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.AdminChatID != ""
}

type HTTPConfig struct {
	AllowedOrigins []string
}

type BootstrapConfig struct {
	AdminUser     string
	AdminPassword string
}

func Load() (Config, error) {
	c := Config{}
	p := &envParser{}

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	c.App.Port = p.requiredInt("APP_PORT")

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	c.DB.Port = p.requiredInt("DB_PORT")
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	c.Redis.Port = p.requiredInt("REDIS_PORT")
	c.Redis.Password = os.Getenv("REDIS_PASSWORD")
	c.Redis.DB = p.optionalInt("REDIS_DB")

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate().
	c.Auth.AccessTokenTTL = p.duration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = p.duration("JWT_REFRESH_TTL")

	c.OTP.TTL = p.duration("OTP_TTL")
	c.OTP.MaxAttempts = p.optionalInt("OTP_MAX_ATTEMPTS")
	c.OTP.RateLimit = p.optionalInt("OTP_RATE_LIMIT")
	c.OTP.RateWindow = p.duration("OTP_RATE_WINDOW")

	c.Calls.DailyLimit = p.optionalInt("CALL_DAILY_LIMIT")
	c.Calls.HistoryLimit = p.optionalInt("CALL_HISTORY_LIMIT")

	c.Recording.Dir = strings.TrimSpace(os.Getenv("RECORDINGS_DIR"))
	c.Recording.STUNURLs = splitList(os.Getenv("STUN_URLS"))
	c.Recording.GatherWait = p.duration("RECORDING_GATHER_TIMEOUT")

	c.Telegram.BotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	c.Telegram.AdminChatID = strings.TrimSpace(os.Getenv("TELEGRAM_ADMIN_CHAT_ID"))
	c.Telegram.APIBaseURL = strings.TrimSpace(os.Getenv("TELEGRAM_API_URL"))

	c.HTTP.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	c.Bootstrap.AdminUser = strings.TrimSpace(os.Getenv("ADMIN_USER"))
	c.Bootstrap.AdminPassword = os.Getenv("ADMIN_PASS")

	if err := joinErrors(p.errs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks required values and fills defaults in place.
func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if !isValidPort(c.App.Port) {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if !isValidPort(c.DB.Port) {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if c.DB.SSLMode == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if !isValidPort(c.Redis.Port) {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		// Agents work shifts; one token per shift.
		c.Auth.AccessTokenTTL = 6 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.OTP.TTL <= 0 {
		c.OTP.TTL = 5 * time.Minute
	}
	if c.OTP.MaxAttempts <= 0 {
		c.OTP.MaxAttempts = 3
	}
	if c.OTP.RateLimit <= 0 {
		c.OTP.RateLimit = 3
	}
	if c.OTP.RateWindow <= 0 {
		c.OTP.RateWindow = time.Minute
	}

	if c.Calls.DailyLimit <= 0 {
		c.Calls.DailyLimit = 10
	}
	if c.Calls.HistoryLimit <= 0 {
		c.Calls.HistoryLimit = 50
	}

	if c.Recording.Dir == "" {
		c.Recording.Dir = "recordings"
	}
	if len(c.Recording.STUNURLs) == 0 {
		c.Recording.STUNURLs = []string{"stun:stun.l.google.com:19302"}
	}
	if c.Recording.GatherWait <= 0 {
		c.Recording.GatherWait = 10 * time.Second
	}

	if c.Telegram.APIBaseURL == "" {
		c.Telegram.APIBaseURL = "https://api.telegram.org"
	}

	if c.IsProduction() {
		for _, o := range c.HTTP.AllowedOrigins {
			if o == "*" {
				errs = append(errs, errors.New("ALLOWED_ORIGINS must not contain * in production"))
				break
			}
		}
	}

	if (c.Bootstrap.AdminUser == "") != (c.Bootstrap.AdminPassword == "") {
		errs = append(errs, errors.New("ADMIN_USER and ADMIN_PASS must be set together"))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

// envParser collects parse failures so Load can report all of them at once.
type envParser struct {
	errs []error
}

func (p *envParser) requiredInt(key string) int {
	n, err := mustInt(key)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return n
}

func (p *envParser) optionalInt(key string) int {
	if strings.TrimSpace(os.Getenv(key)) == "" {
		return 0
	}
	return p.requiredInt(key)
}

func (p *envParser) duration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s must be a duration, got %q", key, v))
		return 0
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isValidPort(p int) bool {
	return p > 0 && p <= 65535
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
