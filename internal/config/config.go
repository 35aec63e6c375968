package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type StoreDriver string

const (
	StoreMemory StoreDriver = "memory"
	StoreSQLite StoreDriver = "sqlite"
	StoreRedis  StoreDriver = "redis"
	StoreMySQL  StoreDriver = "mysql"
)

type IdentityKind string

const (
	IdentityMemory IdentityKind = "memory"
	IdentityGoTrue IdentityKind = "gotrue"
)

type GeneratorKind string

const (
	GeneratorGemini GeneratorKind = "gemini"
	GeneratorKIE    GeneratorKind = "kie"
)

// Config aggregates runtime configuration for the service and its collaborators.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Generator GeneratorConfig `mapstructure:"generator"`
	History   HistoryConfig   `mapstructure:"history"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	S3        S3Config        `mapstructure:"s3"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	PublicURL       string        `mapstructure:"public_url"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// StoreConfig selects the key-value backend that holds users, history and plans.
type StoreConfig struct {
	Driver        StoreDriver `mapstructure:"driver"`
	SQLitePath    string      `mapstructure:"sqlite_path"`
	RedisAddr     string      `mapstructure:"redis_addr"`
	RedisPassword string      `mapstructure:"redis_password"`
	RedisDB       int         `mapstructure:"redis_db"`
	RedisPrefix   string      `mapstructure:"redis_prefix"`
	MySQLDSN      string      `mapstructure:"mysql_dsn"`
}

type AuthConfig struct {
	Provider    IdentityKind  `mapstructure:"provider"`
	AdminEmail  string        `mapstructure:"admin_email"`
	SignupBonus int           `mapstructure:"signup_bonus"`
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTTTL      time.Duration `mapstructure:"jwt_ttl"`
	GoTrue      GoTrueConfig  `mapstructure:"gotrue"`
	OIDC        OIDCConfig    `mapstructure:"oidc"`
}

type GoTrueConfig struct {
	// URL overrides the hosted endpoint derived from ProjectRef.
	URL        string `mapstructure:"url"`
	ProjectRef string `mapstructure:"project_ref"`
	APIKey     string `mapstructure:"api_key"`
}

// OIDCConfig configures federated sign-in (Google by default).
type OIDCConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Issuer         string        `mapstructure:"issuer"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	RedirectURL    string        `mapstructure:"redirect_url"`
	AllowedDomains []string      `mapstructure:"allowed_domains"`
	StateTTL       time.Duration `mapstructure:"state_ttl"`
}

type GeneratorConfig struct {
	Provider       GeneratorKind `mapstructure:"provider"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	Gemini         GeminiConfig  `mapstructure:"gemini"`
	KIE            KIEConfig     `mapstructure:"kie"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type KIEConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
}

type HistoryConfig struct {
	// Limit caps the shared generation log across all users.
	Limit int `mapstructure:"limit"`
}

type CheckoutConfig struct {
	// Simulated lets any signed-in user credit a plan's bundle without paying.
	// Leave it off outside development.
	Simulated bool `mapstructure:"simulated"`
}

type S3Config struct {
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	Bucket        string `mapstructure:"bucket"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	UsePathStyle  bool   `mapstructure:"use_path_style"`
	Prefix        string `mapstructure:"prefix"`
}

// Enabled reports whether generated images should be uploaded instead of kept inline.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

type TelegramConfig struct {
	BotToken    string `mapstructure:"bot_token"`
	AdminChatID int64  `mapstructure:"admin_chat_id"`
}

func (c TelegramConfig) Enabled() bool {
	return c.BotToken != "" && c.AdminChatID != 0
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

const defaultKIEBaseURL = "https://api.kie.ai"

// Load reads configuration from an optional .env file, an optional YAML file and
// LUMINA_* environment variables, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	v.SetEnvPrefix("LUMINA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.lumina")
		v.AddConfigPath("/etc/lumina")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Generator.KIE.BaseURL = normalizeKIEBaseURL(cfg.Generator.KIE.BaseURL, defaultKIEBaseURL)
	cfg.Auth.AdminEmail = strings.ToLower(strings.TrimSpace(cfg.Auth.AdminEmail))

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 2*time.Minute)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", string(StoreSQLite))
	v.SetDefault("store.sqlite_path", "./data/lumina.db")
	v.SetDefault("store.redis_addr", "localhost:6379")
	v.SetDefault("store.redis_password", "")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.redis_prefix", "")
	v.SetDefault("store.mysql_dsn", "")

	v.SetDefault("auth.provider", string(IdentityMemory))
	v.SetDefault("auth.admin_email", "admin@lumina.ai")
	v.SetDefault("auth.signup_bonus", 5)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_ttl", 72*time.Hour)
	v.SetDefault("auth.gotrue.url", "")
	v.SetDefault("auth.gotrue.project_ref", "")
	v.SetDefault("auth.gotrue.api_key", "")
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.issuer", "https://accounts.google.com")
	v.SetDefault("auth.oidc.client_id", "")
	v.SetDefault("auth.oidc.client_secret", "")
	v.SetDefault("auth.oidc.redirect_url", "")
	v.SetDefault("auth.oidc.allowed_domains", []string{})
	v.SetDefault("auth.oidc.state_ttl", 10*time.Minute)

	v.SetDefault("generator.provider", string(GeneratorGemini))
	v.SetDefault("generator.request_timeout", 60*time.Second)
	v.SetDefault("generator.gemini.api_key", "")
	v.SetDefault("generator.gemini.model", "gemini-2.5-flash-image")
	v.SetDefault("generator.kie.api_key", "")
	v.SetDefault("generator.kie.base_url", defaultKIEBaseURL)
	v.SetDefault("generator.kie.model", "nano-banana-pro")
	v.SetDefault("generator.kie.poll_interval", 2*time.Second)
	v.SetDefault("generator.kie.max_attempts", 60)

	v.SetDefault("history.limit", 100)

	v.SetDefault("checkout.simulated", false)

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("s3.use_path_style", false)
	v.SetDefault("s3.prefix", "generations")

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.admin_chat_id", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func validate(c *Config) error {
	var missing []string

	switch c.Store.Driver {
	case StoreMemory, StoreRedis:
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			missing = append(missing, "LUMINA_STORE_SQLITE_PATH")
		}
	case StoreMySQL:
		if c.Store.MySQLDSN == "" {
			missing = append(missing, "LUMINA_STORE_MYSQL_DSN")
		}
	default:
		return fmt.Errorf("unsupported store driver: %q", c.Store.Driver)
	}

	if c.History.Limit <= 0 {
		return fmt.Errorf("history limit must be positive, got %d", c.History.Limit)
	}

	if c.S3.Enabled() {
		if c.S3.Region == "" {
			missing = append(missing, "LUMINA_S3_REGION")
		}
		if c.S3.AccessKey == "" {
			missing = append(missing, "LUMINA_S3_ACCESS_KEY")
		}
		if c.S3.SecretKey == "" {
			missing = append(missing, "LUMINA_S3_SECRET_KEY")
		}
		if c.S3.PublicBaseURL == "" {
			missing = append(missing, "LUMINA_S3_PUBLIC_BASE_URL")
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}

// ValidateServe checks the settings only the HTTP server needs, so that offline
// commands can run against the store without provider credentials.
func (c *Config) ValidateServe() error {
	var missing []string
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "LUMINA_AUTH_JWT_SECRET")
	}

	switch c.Auth.Provider {
	case IdentityMemory:
	case IdentityGoTrue:
		if c.Auth.GoTrue.URL == "" && c.Auth.GoTrue.ProjectRef == "" {
			missing = append(missing, "LUMINA_AUTH_GOTRUE_URL or LUMINA_AUTH_GOTRUE_PROJECT_REF")
		}
		if c.Auth.GoTrue.APIKey == "" {
			missing = append(missing, "LUMINA_AUTH_GOTRUE_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported identity provider: %q", c.Auth.Provider)
	}

	if c.Auth.OIDC.Enabled {
		if c.Auth.OIDC.Issuer == "" {
			missing = append(missing, "LUMINA_AUTH_OIDC_ISSUER")
		}
		if c.Auth.OIDC.ClientID == "" {
			missing = append(missing, "LUMINA_AUTH_OIDC_CLIENT_ID")
		}
		if c.Auth.OIDC.RedirectURL == "" {
			missing = append(missing, "LUMINA_AUTH_OIDC_REDIRECT_URL")
		}
	}

	switch c.Generator.Provider {
	case GeneratorGemini:
		if c.Generator.Gemini.APIKey == "" {
			missing = append(missing, "LUMINA_GENERATOR_GEMINI_API_KEY")
		}
	case GeneratorKIE:
		if c.Generator.KIE.APIKey == "" {
			missing = append(missing, "LUMINA_GENERATOR_KIE_API_KEY")
		}
	default:
		return fmt.Errorf("unsupported generator provider: %q", c.Generator.Provider)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %v", missing)
	}
	return nil
}

// normalizeKIEBaseURL ensures we always hit the documented API host. The root kie.ai
// domain serves HTML instead of JSON.
func normalizeKIEBaseURL(raw string, fallback string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return fallback
	}

	if parsed.Scheme == "" {
		parsed.Scheme = "https"
	}
	if parsed.Host == "" {
		parsed.Host = parsed.Path
		parsed.Path = ""
	}

	if parsed.Host == "kie.ai" {
		parsed.Host = "api.kie.ai"
	}

	return parsed.String()
}

// loadEnvFile overlays the first .env file found onto the process environment.
// A missing file is not an error.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Overload(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
