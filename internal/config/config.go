package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	FrontendURL string

	HTTP     HTTPConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	VNPay    VNPayConfig
	Notify   NotifyConfig
	Storage  StorageConfig
}

type HTTPConfig struct {
	Port           string
	AllowedOrigins []string
	// proxies whose X-Forwarded-For is honoured; empty means use the socket address
	TrustedProxies []string
	// IPN rate limit per client IP
	IPNRate  float64
	IPNBurst int
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	Schema   string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&search_path=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode, d.Schema,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type VNPayConfig struct {
	PaymentURL string
	TmnCode    string
	SecretKey  string
	ReturnURL  string
	Version    string
	Command    string
	CurrCode   string
	Locale     string
	OrderType  string
	RequestTTL time.Duration
	Mock       bool
}

type NotifyConfig struct {
	QueueSize int
	Timeout   time.Duration
	DedupeTTL time.Duration

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	SNSTopicARN string
	AWSEndpoint string

	TelegramToken  string
	TelegramChatID int64
}

func (n NotifyConfig) EmailEnabled() bool    { return n.SMTPHost != "" && n.SMTPFrom != "" }
func (n NotifyConfig) SNSEnabled() bool      { return n.SNSTopicARN != "" }
func (n NotifyConfig) TelegramEnabled() bool { return n.TelegramToken != "" && n.TelegramChatID != 0 }

// StorageConfig selects where payment proofs go: S3 when a bucket is set,
// otherwise a local directory.
type StorageConfig struct {
	S3Bucket      string
	S3Endpoint    string
	UploadDir     string
	MaxProofBytes int64
}

func (s StorageConfig) S3Enabled() bool { return s.S3Bucket != "" }

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:         getEnv("APP_ENV", "development"),
		FrontendURL: strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
		HTTP: HTTPConfig{
			Port:           getEnv("PORT", "8080"),
			AllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
			TrustedProxies: splitList(getEnv("TRUSTED_PROXIES", "")),
			IPNRate:        getFloat("IPN_RATE_PER_SEC", 5),
			IPNBurst:       getInt("IPN_RATE_BURST", 20),
		},
		Database: DatabaseConfig{
			Host:     getEnv("BLUEPRINT_DB_HOST", "localhost"),
			Port:     getEnv("BLUEPRINT_DB_PORT", "5432"),
			User:     getEnv("BLUEPRINT_DB_USERNAME", ""),
			Password: getEnv("BLUEPRINT_DB_PASSWORD", ""),
			Name:     getEnv("BLUEPRINT_DB_DATABASE", ""),
			Schema:   getEnv("BLUEPRINT_DB_SCHEMA", "public"),
			SSLMode:  getEnv("BLUEPRINT_DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getDuration("JWT_TTL", 24*time.Hour),
		},
		VNPay: VNPayConfig{
			PaymentURL: getEnv("VNPAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			TmnCode:    getEnv("VNPAY_TMN_CODE", ""),
			SecretKey:  getEnv("VNPAY_SECRET_KEY", ""),
			ReturnURL:  getEnv("VNPAY_RETURN_URL", "http://localhost:8080/payment/vnpay-return"),
			Version:    "2.1.0",
			Command:    "pay",
			CurrCode:   "VND",
			Locale:     getEnv("VNPAY_LOCALE", "vn"),
			OrderType:  "other",
			RequestTTL: time.Hour,
			Mock:       getBool("VNPAY_MOCK", false),
		},
		Notify: NotifyConfig{
			QueueSize:      getInt("NOTIFY_QUEUE_SIZE", 100),
			Timeout:        getDuration("NOTIFY_TIMEOUT", 10*time.Second),
			DedupeTTL:      getDuration("NOTIFY_DEDUPE_TTL", 24*time.Hour),
			SMTPHost:       getEnv("SMTP_HOST", ""),
			SMTPPort:       getEnv("SMTP_PORT", "587"),
			SMTPUser:       getEnv("SMTP_USER", ""),
			SMTPPass:       getEnv("SMTP_PASS", ""),
			SMTPFrom:       getEnv("SMTP_FROM", ""),
			SNSTopicARN:    getEnv("SNS_PAYMENT_TOPIC_ARN", ""),
			AWSEndpoint:    getEnv("AWS_ENDPOINT", ""),
			TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
			TelegramChatID: int64(getInt("TELEGRAM_STAFF_CHAT_ID", 0)),
		},
		Storage: StorageConfig{
			S3Bucket:      getEnv("PROOF_S3_BUCKET", ""),
			S3Endpoint:    getEnv("AWS_ENDPOINT", ""),
			UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
			MaxProofBytes: int64(getInt("PROOF_MAX_BYTES", 5<<20)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks required settings. Mock payments are never allowed in production.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.User == "" {
		missing = append(missing, "BLUEPRINT_DB_USERNAME")
	}
	if c.Database.Name == "" {
		missing = append(missing, "BLUEPRINT_DB_DATABASE")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if !c.VNPay.Mock {
		if c.VNPay.TmnCode == "" {
			missing = append(missing, "VNPAY_TMN_CODE")
		}
		if c.VNPay.SecretKey == "" {
			missing = append(missing, "VNPAY_SECRET_KEY")
		}
	}
	if len(c.HTTP.AllowedOrigins) == 0 {
		missing = append(missing, "CORS_ALLOWED_ORIGINS")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.VNPay.Mock && c.IsProduction() {
		return errors.New("VNPAY_MOCK must not be enabled when APP_ENV=production")
	}
	if c.VNPay.Mock && c.VNPay.SecretKey == "" {
		// mock callbacks are still signed so the return path can verify them
		c.VNPay.SecretKey = "mock-secret"
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(key string, fallback float64) float64 {
	v, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
