package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Exchange Exchange `mapstructure:"exchange"`
	Symbols  []string `mapstructure:"symbols"`
	Risk     Risk     `mapstructure:"risk"`
	Schedule Schedule `mapstructure:"schedule"`
	AI       AI       `mapstructure:"ai"`
	Telegram Telegram `mapstructure:"telegram"`
	FCM      FCM      `mapstructure:"fcm"`
	Trading  Trading  `mapstructure:"trading"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	API      API      `mapstructure:"api"`
	Database Database `mapstructure:"database"`
}

// Exchange holds the venue connection settings.
type Exchange struct {
	Name           string  `mapstructure:"name"` // "binance" or "bybit"
	ApiKey         string  `mapstructure:"api_key"`
	SecretKey      string  `mapstructure:"api_secret"`
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	RequestTimeout int     `mapstructure:"request_timeout"` // seconds
	QuoteCurrency  string  `mapstructure:"quote_currency"`
	Category       string  `mapstructure:"category"`
}

// Risk holds the six options consumed by the risk core.
type Risk struct {
	MaxRiskPerTrade    float64 `mapstructure:"max_risk_per_trade"`
	MaxDailyDrawdown   float64 `mapstructure:"max_daily_drawdown"`
	MaxOpenPositions   int     `mapstructure:"max_open_positions"`
	CooldownHours      float64 `mapstructure:"cooldown_hours"`
	MinRewardRiskRatio float64 `mapstructure:"min_reward_risk_ratio"`
	MinConfidence      int     `mapstructure:"min_confidence"`
}

// Schedule controls the cadence of the periodic tasks.
type Schedule struct {
	AnalysisIntervalMinutes int    `mapstructure:"analysis_interval_minutes"`
	MonitorIntervalMinutes  int    `mapstructure:"monitor_interval_minutes"`
	DailyReportTime         string `mapstructure:"daily_report_time"` // HH:MM, local time
}

// AI holds the settings for the LLM signal source.
type AI struct {
	BaseURL       string  `mapstructure:"base_url"`
	ApiKey        string  `mapstructure:"api_key"`
	Model         string  `mapstructure:"model"`
	MaxTokens     int     `mapstructure:"max_tokens"`
	PromptVersion string  `mapstructure:"prompt_version"`
	Timeout       int     `mapstructure:"timeout"` // seconds per model call
	Temperature   float32 `mapstructure:"temperature"`
	TopP          float32 `mapstructure:"top_p"`
}

// Telegram holds the bot credentials for trade alerts.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// FCM holds the Firebase push settings.
type FCM struct {
	Enabled         bool     `mapstructure:"enabled"`
	CredentialsFile string   `mapstructure:"credentials_file"`
	Tokens          []string `mapstructure:"tokens"`
}

// Trading holds the execution mode switches.
type Trading struct {
	DryRun bool `mapstructure:"dry_run"`
	Demo   bool `mapstructure:"demo"`
}

// Server holds the configuration for the dashboard web server.
type Server struct {
	Port int `mapstructure:"port"`
}

// API holds the configuration for the engine's status endpoint.
type API struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// DefaultRisk returns the risk limits used when the config file omits them.
func DefaultRisk() Risk {
	return Risk{
		MaxRiskPerTrade:    0.02,
		MaxDailyDrawdown:   0.05,
		MaxOpenPositions:   3,
		CooldownHours:      2,
		MinRewardRiskRatio: 2.0,
		MinConfidence:      70,
	}
}

// LoadConfig reads configuration from file or environment variables.
// An empty file means "<path>/config.yml".
func LoadConfig(path, file string) (config Config, err error) {
	v := viper.New()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(path)
		v.SetConfigName("config") // name of config file (without extension)
		v.SetConfigType("yml")
	}

	// Allow environment variables to override config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	err = v.ReadInConfig()
	if err != nil {
		return
	}

	err = v.Unmarshal(&config)
	return
}

func setDefaults(v *viper.Viper) {
	r := DefaultRisk()
	v.SetDefault("risk.max_risk_per_trade", r.MaxRiskPerTrade)
	v.SetDefault("risk.max_daily_drawdown", r.MaxDailyDrawdown)
	v.SetDefault("risk.max_open_positions", r.MaxOpenPositions)
	v.SetDefault("risk.cooldown_hours", r.CooldownHours)
	v.SetDefault("risk.min_reward_risk_ratio", r.MinRewardRiskRatio)
	v.SetDefault("risk.min_confidence", r.MinConfidence)

	v.SetDefault("exchange.name", "binance")
	v.SetDefault("exchange.rate_limit", 20)      // requests per second
	v.SetDefault("exchange.rate_limit_burst", 5) // burst size
	v.SetDefault("exchange.request_timeout", 10)
	v.SetDefault("exchange.quote_currency", "USDT")
	v.SetDefault("exchange.category", "linear")

	v.SetDefault("symbols", []string{"BTCUSDT"})

	v.SetDefault("schedule.analysis_interval_minutes", 60)
	v.SetDefault("schedule.monitor_interval_minutes", 5)
	v.SetDefault("schedule.daily_report_time", "23:55")

	v.SetDefault("ai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 1024)
	v.SetDefault("ai.prompt_version", "v1")
	v.SetDefault("ai.timeout", 30)
	v.SetDefault("ai.temperature", 0.3)
	v.SetDefault("ai.top_p", 0.8)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("database.dsn", "data/trading.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("api.port", 8081)
}
