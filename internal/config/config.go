package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	BackendFile  = "file"
	BackendMongo = "mongo"

	CalendarNone   = "none"
	CalendarGoogle = "google"
	CalendarCalDAV = "caldav"
)

type Config struct {
	Env        string
	ServerAddr string
	LogLevel   slog.Level
	Timezone   *time.Location

	StoreBackend string
	DataDir      string
	MongoURI     string
	MongoDB      string

	RedisURL      string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BookingBuffer   time.Duration
	DisplayBuffer   time.Duration
	CalendarTimeout time.Duration

	CalendarProvider      string
	GoogleCalendarID      string
	GoogleCredentialsFile string
	GoogleClientID        string
	GoogleClientSecret    string
	GoogleTokenFile       string
	CalDAVURL             string
	CalDAVUsername        string
	CalDAVPassword        string
	CalDAVCalendarPath    string

	FrontendOrigins []string

	AdminAPIKey       string
	AdminUser         string
	AdminPasswordHash string
	JWTSecret         string
	AccessTTLMinutes  int
	RefreshTTLMinutes int
	CookieSecure      bool

	RateLimitMeetings  int
	RateLimitWindowSec int

	BrevoAPIKey      string
	BrevoSenderEmail string
	BrevoSenderName  string
	BrevoSandbox     bool
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// Load reads the environment, after merging an optional .env file whose
// values never override variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	loc, err := time.LoadLocation(getEnv("BUSINESS_TIMEZONE", "America/Bogota"))
	if err != nil {
		return nil, fmt.Errorf("business timezone: %w", err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/v1tr0")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "v1tr0"
	}

	cfg := &Config{
		Env:        getEnv("APP_ENV", "development"),
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   level,
		Timezone:   loc,

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", BackendFile)),
		DataDir:      getEnv("DATA_DIR", "./data"),
		MongoURI:     mongoURI,
		MongoDB:      mongoDB,

		RedisURL:      getEnv("REDIS_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		BookingBuffer:   time.Duration(getEnvInt("BOOKING_BUFFER_MINUTES", 30)) * time.Minute,
		DisplayBuffer:   time.Duration(getEnvInt("DISPLAY_BUFFER_MINUTES", 5)) * time.Minute,
		CalendarTimeout: time.Duration(getEnvInt("CALENDAR_TIMEOUT_SECONDS", 5)) * time.Second,

		CalendarProvider:      strings.ToLower(getEnv("CALENDAR_PROVIDER", CalendarNone)),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", "primary"),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleClientID:        getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:    getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleTokenFile:       getEnv("GOOGLE_TOKEN_FILE", ""),
		CalDAVURL:             getEnv("CALDAV_URL", ""),
		CalDAVUsername:        getEnv("CALDAV_USERNAME", ""),
		CalDAVPassword:        getEnv("CALDAV_PASSWORD", ""),
		CalDAVCalendarPath:    getEnv("CALDAV_CALENDAR_PATH", ""),

		FrontendOrigins: splitList(getEnv("FRONTEND_ORIGINS", "http://localhost:3000")),

		AdminAPIKey:       getEnv("ADMIN_API_KEY", ""),
		AdminUser:         getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:  getEnvInt("ACCESS_TTL_MINUTES", 15),
		RefreshTTLMinutes: getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:      getEnvBool("COOKIE_SECURE", false),

		RateLimitMeetings:  getEnvInt("RATE_LIMIT_MEETINGS", 10),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),

		BrevoAPIKey:      getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail: getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:  getEnv("BREVO_SENDER_NAME", "V1TR0"),
		BrevoSandbox:     getEnvBool("BREVO_SANDBOX", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case BackendFile, BackendMongo:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	switch c.CalendarProvider {
	case CalendarNone, CalendarGoogle, CalendarCalDAV:
	default:
		return fmt.Errorf("unknown CALENDAR_PROVIDER %q", c.CalendarProvider)
	}
	if c.BookingBuffer <= 0 || c.DisplayBuffer <= 0 {
		return fmt.Errorf("past-time buffers must be positive")
	}
	if c.CalendarTimeout <= 0 {
		return fmt.Errorf("CALENDAR_TIMEOUT_SECONDS must be positive")
	}
	if c.RateLimitMeetings <= 0 || c.RateLimitWindowSec <= 0 {
		return fmt.Errorf("rate limit settings must be positive")
	}
	return nil
}

func (c *Config) RedisEnabled() bool {
	return c.RedisURL != "" || c.RedisAddr != ""
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	// Only the first path segment names the database.
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
