package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Source   SourceConfig   `mapstructure:"source"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Feedback FeedbackConfig `mapstructure:"feedback"`
	Debug    bool           `mapstructure:"debug"`
}

type SourceConfig struct {
	MessagesFile string `mapstructure:"messages_file"`
	Mailbox      string `mapstructure:"mailbox"`
	SinceDays    int    `mapstructure:"since_days"`
	StartDate    string `mapstructure:"start_date"`
	MaxMessages  int    `mapstructure:"max_messages"`
}

type OpenAIConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type FeedbackConfig struct {
	File        string         `mapstructure:"file"`
	UseDatabase bool           `mapstructure:"use_database"`
	Database    DatabaseConfig `mapstructure:"database"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	// Remove leading slash from path to get database name
	dbName := strings.TrimPrefix(u.Path, "/")

	return DatabaseConfig{
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   dbName,
		SSLMode:  "disable",
	}, nil
}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("source.mailbox", "INBOX")
	v.SetDefault("source.since_days", 60)
	v.SetDefault("source.max_messages", 1000)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 500)
	v.SetDefault("openai.temperature", 0.1)
	v.SetDefault("feedback.file", "deadline_agent_feedback.jsonl")
	v.SetDefault("feedback.database.port", 5432)
	v.SetDefault("feedback.database.host", "localhost")
	v.SetDefault("feedback.database.user", "postgres")
	v.SetDefault("feedback.database.sslmode", "disable")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read the config file
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %v", err)
		}
		config.Feedback.Database = dbConfig
	}

	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.OpenAI.APIKey = apiKey
	}

	return &config, nil
}

// Validate reports configuration problems before any I/O is attempted, so
// a bad setup never surfaces as a mid-scan failure.
func (c *Config) Validate() error {
	if c.Source.MessagesFile == "" {
		return fmt.Errorf("source.messages_file is required")
	}
	if c.Source.SinceDays < 0 {
		return fmt.Errorf("source.since_days must be non-negative")
	}
	if c.Source.SinceDays > 0 && c.Source.StartDate != "" {
		return fmt.Errorf("source.since_days and source.start_date are mutually exclusive")
	}
	if c.Source.StartDate != "" {
		if _, err := time.Parse("2006-01-02", c.Source.StartDate); err != nil {
			return fmt.Errorf("source.start_date must be YYYY-MM-DD: %v", err)
		}
	}
	if c.Source.MaxMessages <= 0 {
		return fmt.Errorf("source.max_messages must be positive")
	}
	if c.Feedback.UseDatabase {
		db := c.Feedback.Database
		if db.Host == "" || db.User == "" || db.DBName == "" {
			return fmt.Errorf("feedback.database requires host, user and dbname")
		}
	} else if c.Feedback.File == "" {
		return fmt.Errorf("feedback.file is required")
	}
	return nil
}
