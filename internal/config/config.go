package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig holds the runtime configuration of the service
type AppConfig struct {
	Port        string
	Environment string

	// AI
	DefaultModel       string
	AvalAIAPIKey       string
	AvalAIBaseURL      string
	GoogleAPIKey       string
	GroqAPIKey         string
	GroqBaseURL        string
	AIRequestTimeout   time.Duration
	DefaultTemperature float32
	MaxTokens          int

	E2B       E2BConfig
	Firecrawl FirecrawlConfig
	Packages  PackageConfig

	// Storage and persistence
	RedisURL         string
	DatabaseURL      string
	SQLitePath       string
	ScreenshotDir    string
	ScreenshotBucket string
	AWSRegion        string
	S3Endpoint       string
	AWSAccessKeyID   string
	AWSSecretKey     string
	ScrapeCacheTTL   time.Duration

	// HTTP
	RateLimitPerMinute int
	RateLimitBurst     int
	AllowedOrigins     []string
}

// E2BConfig configures sandbox provisioning
type E2BConfig struct {
	APIKey           string
	APIURL           string
	Domain           string
	Template         string
	SandboxTimeout   time.Duration
	CreateTimeout    time.Duration
	VitePort         int
	ViteStartupDelay time.Duration
	CSSRebuildDelay  time.Duration
}

// FirecrawlConfig configures the scraping vendor
type FirecrawlConfig struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// PackageConfig configures npm installs inside the sandbox
type PackageConfig struct {
	UseLegacyPeerDeps bool
	InstallTimeout    time.Duration
	AutoRestartVite   bool
}

// Load reads the configuration from the process environment.
// Call godotenv.Load before Load so .env values are visible.
func Load() *AppConfig {
	return &AppConfig{
		Port:        GetWithDefault("PORT", "8080"),
		Environment: GetEnvironment(),

		DefaultModel:       GetWithDefault(EnvDefaultModel, "gpt-5-mini"),
		AvalAIAPIKey:       os.Getenv(EnvAvalAIAPIKey),
		AvalAIBaseURL:      GetWithDefault("AVALAI_BASE_URL", "https://api.avalai.ir/v1"),
		GoogleAPIKey:       os.Getenv(EnvGoogleAPIKey),
		GroqAPIKey:         os.Getenv(EnvGroqAPIKey),
		GroqBaseURL:        GetWithDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1"),
		AIRequestTimeout:   getDuration("AI_REQUEST_TIMEOUT", 120*time.Second),
		DefaultTemperature: 0.7,
		MaxTokens:          getInt("AI_MAX_TOKENS", 8000),

		E2B: E2BConfig{
			APIKey:           os.Getenv(EnvE2BAPIKey),
			APIURL:           GetWithDefault("E2B_API_URL", "https://api.e2b.dev"),
			Domain:           GetWithDefault("E2B_DOMAIN", "e2b.app"),
			Template:         GetWithDefault("E2B_TEMPLATE", "code-interpreter-v1"),
			SandboxTimeout:   time.Duration(getInt("E2B_TIMEOUT_MINUTES", 15)) * time.Minute,
			CreateTimeout:    getDuration("E2B_CREATE_TIMEOUT", 30*time.Second),
			VitePort:         getInt("VITE_PORT", 5173),
			ViteStartupDelay: getDuration("VITE_STARTUP_DELAY", 7*time.Second),
			CSSRebuildDelay:  2 * time.Second,
		},
		Firecrawl: FirecrawlConfig{
			APIKey:  os.Getenv(EnvFirecrawlAPIKey),
			BaseURL: GetWithDefault("FIRECRAWL_BASE_URL", "https://api.firecrawl.dev"),
			Timeout: getDuration("FIRECRAWL_TIMEOUT", 60*time.Second),
		},
		Packages: PackageConfig{
			UseLegacyPeerDeps: getBool("NPM_LEGACY_PEER_DEPS", true),
			InstallTimeout:    getDuration("PACKAGE_INSTALL_TIMEOUT", 60*time.Second),
			AutoRestartVite:   getBool("AUTO_RESTART_VITE", true),
		},

		RedisURL:         os.Getenv("REDIS_URL"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		SQLitePath:       GetWithDefault("SQLITE_PATH", "open-lovable.db"),
		ScreenshotDir:    os.Getenv("SCREENSHOT_DIR"),
		ScreenshotBucket: os.Getenv("SCREENSHOT_BUCKET"),
		AWSRegion:        GetWithDefault("AWS_REGION", "us-east-1"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		AWSAccessKeyID:   os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretKey:     os.Getenv("AWS_SECRET_ACCESS_KEY"),
		ScrapeCacheTTL:   getDuration("SCRAPE_CACHE_TTL", 10*time.Minute),

		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 20),
		AllowedOrigins:     getList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}
}

// HasAIProvider reports whether at least one model provider key is configured
func (c *AppConfig) HasAIProvider() bool {
	return c.AvalAIAPIKey != "" || c.GoogleAPIKey != "" || c.GroqAPIKey != ""
}

func getInt(envVar string, def int) int {
	if v := os.Getenv(envVar); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getBool(envVar string, def bool) bool {
	if v := os.Getenv(envVar); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

// getDuration accepts Go duration strings ("30s") or a bare number of milliseconds.
func getDuration(envVar string, def time.Duration) time.Duration {
	v := os.Getenv(envVar)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

func getList(envVar string, def []string) []string {
	v := os.Getenv(envVar)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
