package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"realestate-leads/scoring"
)

// Storage backends selectable with STORAGE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	StorageBackend string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	MongoURI      string
	MongoDatabase string

	Sources           []string
	FeedCities        []string
	FeedBaseURL       string
	WinWinURL         string
	MadlanURL         string
	FixturePath       string
	ChromeBin         string
	PagesToScrape     int
	MaxConcurrency    int
	RateLimitMs       int
	MaxRetries        int
	RequestTimeoutSec int
	ListingsPerPage   int

	CSVOutputPath string

	BaselinesPath     string
	DefaultBaseline   float64
	ScaleFactor       float64
	HotDealThreshold  int
	GoodDealThreshold int

	APIPort              string
	LogLevel             string
	DefaultCommissionPct float64

	TelegramToken  string
	TelegramChatID int64
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() *Config {
	return &Config{
		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendPostgres)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "leads"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "leads123"),
		PostgresDB:       getEnv("POSTGRES_DB", "realestate"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DB", "realestate"),

		Sources:           getEnvList("SOURCES", []string{"yad2", "winwin", "madlan"}),
		FeedCities:        getEnvList("FEED_CITIES", []string{"תל אביב", "רמת גן", "חיפה", "ירושלים", "באר שבע"}),
		FeedBaseURL:       getEnv("FEED_BASE_URL", "https://www.yad2.co.il/api/feed/get"),
		WinWinURL:         getEnv("WINWIN_URL", "https://www.winwin.co.il/real-estate/sale"),
		MadlanURL:         getEnv("MADLAN_URL", "https://www.madlan.co.il/real-estate/sale"),
		FixturePath:       getEnv("FIXTURE_PATH", "./testdata/listings.json"),
		ChromeBin:         getEnv("CHROME_BIN", ""),
		PagesToScrape:     getEnvInt("PAGES_TO_SCRAPE", 3),
		MaxConcurrency:    getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:       getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		RequestTimeoutSec: getEnvInt("REQUEST_TIMEOUT_SEC", 10),
		ListingsPerPage:   getEnvInt("LISTINGS_PER_PAGE", 50),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/raw_listings.csv"),

		BaselinesPath:     getEnv("BASELINES_PATH", ""),
		DefaultBaseline:   getEnvFloat("DEFAULT_BASELINE_PER_SQM", scoring.DefaultBaselinePerSqm),
		ScaleFactor:       getEnvFloat("SCORE_SCALE_FACTOR", scoring.DefaultScaleFactor),
		HotDealThreshold:  getEnvInt("HOT_DEAL_THRESHOLD", scoring.DefaultHotDealThreshold),
		GoodDealThreshold: getEnvInt("GOOD_DEAL_THRESHOLD", scoring.DefaultGoodDealThreshold),

		APIPort:              getEnv("PORT", "5000"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DefaultCommissionPct: getEnvFloat("DEFAULT_COMMISSION_PCT", 2),

		TelegramToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID: int64(getEnvInt("TELEGRAM_CHAT_ID", 0)),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// ScoringParams returns the scoring tuning from the environment.
func (c *Config) ScoringParams() scoring.Params {
	return scoring.Params{
		ScaleFactor:       c.ScaleFactor,
		HotDealThreshold:  c.HotDealThreshold,
		GoodDealThreshold: c.GoodDealThreshold,
	}
}

// SourceEnabled reports whether name is listed in SOURCES.
func (c *Config) SourceEnabled(name string) bool {
	for _, s := range c.Sources {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
