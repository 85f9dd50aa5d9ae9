package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Automator AutomatorConfig `mapstructure:"automator"`
	Profile   ProfileConfig   `mapstructure:"profile"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver-specific connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
	}
	return c.Path
}

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
}

type BrowserConfig struct {
	Headless    bool   `mapstructure:"headless"`
	ChromePath  string `mapstructure:"chrome_path"`
	UserDataDir string `mapstructure:"user_data_dir"`
	UserAgent   string `mapstructure:"user_agent"`
	WindowW     int    `mapstructure:"window_width"`
	WindowH     int    `mapstructure:"window_height"`
}

type AutomatorConfig struct {
	ProcessedDir    string        `mapstructure:"processed_dir"`
	RateLimitDelay  time.Duration `mapstructure:"rate_limit_delay"`
	Strategies      []string      `mapstructure:"strategies"`
	AgentMaxSteps   int           `mapstructure:"agent_max_steps"`
	LocatorLogPath  string        `mapstructure:"locator_log_path"`
	ChunkSize       int           `mapstructure:"chunk_size"`
	AnalysisRetries int           `mapstructure:"analysis_retries"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	CacheSize       int           `mapstructure:"cache_size"`
}

// ProfileConfig is the candidate identity used to fill application forms.
type ProfileConfig struct {
	FirstName          string `mapstructure:"first_name"`
	LastName           string `mapstructure:"last_name"`
	Email              string `mapstructure:"email"`
	Phone              string `mapstructure:"phone"`
	LinkedIn           string `mapstructure:"linkedin"`
	GitHub             string `mapstructure:"github"`
	Website            string `mapstructure:"website"`
	City               string `mapstructure:"city"`
	State              string `mapstructure:"state"`
	ZipCode            string `mapstructure:"zip_code"`
	Country            string `mapstructure:"country"`
	WorkAuthorized     bool   `mapstructure:"work_authorized"`
	RequireSponsorship bool   `mapstructure:"require_sponsorship"`
	YearsExperience    int    `mapstructure:"years_experience"`
	CurrentTitle       string `mapstructure:"current_title"`
	TechStack          string `mapstructure:"tech_stack"`
	Background         string `mapstructure:"background"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	// Enable environment variable override
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/jobs.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("automator.processed_dir", "./data/processed_applications")
	v.SetDefault("automator.rate_limit_delay", 10*time.Second)
	v.SetDefault("automator.strategies", []string{"agent", "platform"})
	v.SetDefault("automator.agent_max_steps", 50)
	v.SetDefault("automator.locator_log_path", "./data/ai_identified_locators.jsonl")
	v.SetDefault("automator.chunk_size", 50000)
	v.SetDefault("automator.analysis_retries", 2)
	v.SetDefault("automator.retry_delay", 5*time.Second)
	v.SetDefault("automator.cache_ttl", time.Hour)
	v.SetDefault("automator.cache_size", 10)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.name", "DB_NAME")
	v.BindEnv("llm.api_key", "OPENAI_API_KEY")
	v.BindEnv("llm.base_url", "OPENAI_BASE_URL")
	v.BindEnv("llm.model", "LLM_MODEL")
	v.BindEnv("browser.chrome_path", "CHROME_PATH")
	v.BindEnv("browser.user_data_dir", "CHROME_USER_DATA_DIR")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
