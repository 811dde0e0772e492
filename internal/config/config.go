package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
	// MonthLayout is the format of before_month and after_month
	MonthLayout = "2006-01"
	// DefaultMaxRetries applies when worker max_retries is not set
	DefaultMaxRetries = 3
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	PrefetchCount int  `yaml:"prefetch_count"`
	AutoAck       bool `yaml:"auto_ack"`
	Exclusive     bool `yaml:"exclusive"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency       int           `yaml:"concurrency"`
	JobTimeout        time.Duration `yaml:"job_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxRetries        *int          `yaml:"max_retries"` // nil means DefaultMaxRetries
}

// AnalysisConfig holds the report pipeline settings
type AnalysisConfig struct {
	InputPath    string   `yaml:"input_path"`
	DataDir      string   `yaml:"data_dir"`
	OutputDir    string   `yaml:"output_dir"`
	CleanedFile  string   `yaml:"cleaned_file"`
	Industry     string   `yaml:"industry"`
	Companies    []string `yaml:"companies"`
	BeforeMonth  string   `yaml:"before_month"`
	AfterMonth   string   `yaml:"after_month"`
	TopStates    int      `yaml:"top_states"`
	TopSkills    int      `yaml:"top_skills"`
	TopCompanies int      `yaml:"top_companies"`

	Columns       ColumnsConfig      `yaml:"columns"`
	DateFields    []string           `yaml:"date_fields"`
	NumericFields []string           `yaml:"numeric_fields"`
	FillValues    map[string]float64 `yaml:"fill_values"`

	Chart ChartConfig `yaml:"chart"`
}

// ColumnsConfig maps each report role to a dataset column
type ColumnsConfig struct {
	Company    string `yaml:"company"`
	State      string `yaml:"state"`
	Industry   string `yaml:"industry"`
	Posted     string `yaml:"posted"`
	SalaryFrom string `yaml:"salary_from"`
	SalaryTo   string `yaml:"salary_to"`
	Skills     string `yaml:"skills"`
}

// ChartConfig holds chart dimensions in inches
type ChartConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.ApplyDefaults()

	return &config, nil
}

// ApplyDefaults fills unset analysis settings with the Lightcast export layout
func (c *Config) ApplyDefaults() {
	a := &c.Analysis

	setString(&a.DataDir, ".")
	setString(&a.OutputDir, "_output")
	setString(&a.CleanedFile, "lightcast_cleaned.csv")
	setString(&a.Industry, "Retail Trade")
	setInt(&a.TopStates, 20)
	setInt(&a.TopSkills, 10)
	setInt(&a.TopCompanies, 50)

	setString(&a.Columns.Company, "COMPANY_NAME")
	setString(&a.Columns.State, "STATE_NAME")
	setString(&a.Columns.Industry, "NAICS2_NAME")
	setString(&a.Columns.Posted, "POSTED")
	setString(&a.Columns.SalaryFrom, "SALARY_FROM")
	setString(&a.Columns.SalaryTo, "SALARY_TO")
	setString(&a.Columns.Skills, "SKILLS_NAME")

	if a.DateFields == nil {
		a.DateFields = []string{"POSTED", "EXPIRED", "LAST_UPDATED_DATE"}
	}
	if a.NumericFields == nil {
		a.NumericFields = []string{"SALARY_FROM", "SALARY_TO", "MIN_YEARS_EXPERIENCE"}
	}
	if a.FillValues == nil {
		a.FillValues = map[string]float64{
			"SALARY_FROM":          0,
			"SALARY_TO":            0,
			"MIN_YEARS_EXPERIENCE": 0,
		}
	}

	if a.Chart.Width <= 0 {
		a.Chart.Width = 12
	}
	if a.Chart.Height <= 0 {
		a.Chart.Height = 6
	}

	if c.Worker.MaxRetries == nil {
		retries := DefaultMaxRetries
		c.Worker.MaxRetries = &retries
	}
}

// RetryLimit returns max_retries, or DefaultMaxRetries when it is unset.
// An explicit 0 disables retries.
func (w *WorkerConfig) RetryLimit() int {
	if w.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *w.MaxRetries
}

func (w *WorkerConfig) validateRetries() error {
	if w.RetryLimit() < 0 {
		return fmt.Errorf("worker max_retries must not be negative")
	}
	return nil
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst <= 0 {
		*dst = def
	}
}

// ValidateAPIConfig checks the settings the API service depends on
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}

	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	// New reports are stamped with the worker retry limit
	return c.Worker.validateRetries()
}

// ValidateWorkerConfig checks the settings the worker service depends on
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job_timeout must be greater than 0")
	}

	if c.Worker.HeartbeatInterval <= 0 {
		return fmt.Errorf("worker heartbeat_interval must be greater than 0")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return fmt.Errorf("worker shutdown_timeout must be greater than 0")
	}

	if err := c.Worker.validateRetries(); err != nil {
		return err
	}

	return c.ValidateAnalysisConfig()
}

// ValidateAnalysisConfig checks the report pipeline settings
func (c *Config) ValidateAnalysisConfig() error {
	a := c.Analysis

	if a.OutputDir == "" {
		return fmt.Errorf("analysis output_dir is required")
	}

	if a.Columns.Company == "" || a.Columns.State == "" || a.Columns.Industry == "" {
		return fmt.Errorf("analysis columns company, state and industry are required")
	}

	for _, m := range []struct {
		name  string
		value string
	}{
		{"before_month", a.BeforeMonth},
		{"after_month", a.AfterMonth},
	} {
		if m.value == "" {
			continue
		}
		if _, err := time.Parse(MonthLayout, m.value); err != nil {
			return fmt.Errorf("invalid analysis %s: %q (want YYYY-MM)", m.name, m.value)
		}
	}

	if a.Chart.Width <= 0 || a.Chart.Height <= 0 {
		return fmt.Errorf("analysis chart width and height must be greater than 0")
	}

	return nil
}
