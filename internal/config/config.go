package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds configuration for both the ordering and the kitchen service
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	HTTP     HTTPConfig     `yaml:"http"`
	Kitchen  KitchenConfig  `yaml:"kitchen"`
	Ordering OrderingConfig `yaml:"ordering"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// RabbitMQConfig holds RabbitMQ connection configuration
type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	// Enabled turns kitchen status event publishing on.
	Enabled bool `yaml:"enabled"`
}

type HTTPConfig struct {
	OrderPort   int      `yaml:"order_port"`
	KitchenPort int      `yaml:"kitchen_port"`
	// CORSOrigins lists browser origins allowed on the ordering API. Empty allows any.
	CORSOrigins []string `yaml:"cors_origins"`
}

// KitchenConfig configures timers and the ready callback of the kitchen service
type KitchenConfig struct {
	SchedulingEnabled bool          `yaml:"scheduling_enabled"`
	PrepDelay         time.Duration `yaml:"prep_delay"`
	CookDelay         time.Duration `yaml:"cook_delay"`
	// CookDelayMax > CookDelay draws the cook delay uniformly from the range.
	CookDelayMax        time.Duration `yaml:"cook_delay_max"`
	CallbackURLTemplate string        `yaml:"callback_url_template"`
	CallbackSecret      string        `yaml:"callback_secret"`
	HTTPTimeout         time.Duration `yaml:"http_timeout"`
}

// OrderingConfig configures the ordering service's kitchen client and webhook
type OrderingConfig struct {
	KitchenBaseURL string        `yaml:"kitchen_base_url"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	CallbackSecret string        `yaml:"callback_secret"`
}

// Default returns the configuration used when a key is absent from the file
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "restaurant_user", Password: "restaurant_pass", Database: "restaurant_db"},
		RabbitMQ: RabbitMQConfig{Host: "localhost", Port: 5672, User: "guest", Password: "guest"},
		HTTP:     HTTPConfig{OrderPort: 3000, KitchenPort: 3001},
		Kitchen: KitchenConfig{
			SchedulingEnabled:   true,
			PrepDelay:           0,
			CookDelay:           30 * time.Second,
			CallbackURLTemplate: "http://localhost:3000/api/internal/orders/{orderId}/kitchen-ready?kitchenOrderId={kitchenOrderId}",
			HTTPTimeout:         10 * time.Second,
		},
		Ordering: OrderingConfig{
			KitchenBaseURL: "http://localhost:3001",
			HTTPTimeout:    5 * time.Second,
		},
	}
}

// Load reads configuration from a YAML file, then applies .env and environment overrides.
// Unknown YAML keys are rejected.
func Load(filename string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values with environment variables when they are set
func (c *Config) applyEnv() error {
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.RabbitMQ.Host = getEnv("RABBITMQ_HOST", c.RabbitMQ.Host)
	c.RabbitMQ.User = getEnv("RABBITMQ_USER", c.RabbitMQ.User)
	c.RabbitMQ.Password = getEnv("RABBITMQ_PASSWORD", c.RabbitMQ.Password)
	c.Kitchen.CallbackURLTemplate = getEnv("KITCHEN_CALLBACK_URL_TEMPLATE", c.Kitchen.CallbackURLTemplate)
	c.Kitchen.CallbackSecret = getEnv("KITCHEN_CALLBACK_SECRET", c.Kitchen.CallbackSecret)
	c.Ordering.KitchenBaseURL = getEnv("ORDERING_KITCHEN_BASE_URL", c.Ordering.KitchenBaseURL)
	c.Ordering.CallbackSecret = getEnv("ORDERING_CALLBACK_SECRET", c.Ordering.CallbackSecret)

	var err error
	if c.Database.Port, err = getEnvInt("DB_PORT", c.Database.Port); err != nil {
		return err
	}
	if c.RabbitMQ.Port, err = getEnvInt("RABBITMQ_PORT", c.RabbitMQ.Port); err != nil {
		return err
	}
	if c.RabbitMQ.Enabled, err = getEnvBool("RABBITMQ_ENABLED", c.RabbitMQ.Enabled); err != nil {
		return err
	}
	if c.Kitchen.SchedulingEnabled, err = getEnvBool("KITCHEN_SCHEDULING_ENABLED", c.Kitchen.SchedulingEnabled); err != nil {
		return err
	}
	if c.Kitchen.PrepDelay, err = getEnvDuration("KITCHEN_PREP_DELAY", c.Kitchen.PrepDelay); err != nil {
		return err
	}
	if c.Kitchen.CookDelay, err = getEnvDuration("KITCHEN_COOK_DELAY", c.Kitchen.CookDelay); err != nil {
		return err
	}
	return nil
}

// Validate checks value ranges that the YAML types cannot express
func (c *Config) Validate() error {
	switch {
	case c.Kitchen.PrepDelay < 0:
		return fmt.Errorf("kitchen.prep_delay must not be negative")
	case c.Kitchen.CookDelay < 0:
		return fmt.Errorf("kitchen.cook_delay must not be negative")
	case c.Kitchen.CookDelayMax != 0 && c.Kitchen.CookDelayMax < c.Kitchen.CookDelay:
		return fmt.Errorf("kitchen.cook_delay_max must be at least kitchen.cook_delay")
	case c.Kitchen.HTTPTimeout <= 0:
		return fmt.Errorf("kitchen.http_timeout must be positive")
	case c.Ordering.HTTPTimeout <= 0:
		return fmt.Errorf("ordering.http_timeout must be positive")
	}
	for name, port := range map[string]int{"http.order_port": c.HTTP.OrderPort, "http.kitchen_port": c.HTTP.KitchenPort} {
		if port < 1 || port > 65535 {
			return fmt.Errorf("%s out of range: %d", name, port)
		}
	}
	return nil
}

// DatabaseURL returns a PostgreSQL connection URL
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port, c.Database.Database)
}

// RabbitMQURL returns an AMQP connection URL
func (c *Config) RabbitMQURL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		c.RabbitMQ.User, c.RabbitMQ.Password, c.RabbitMQ.Host, c.RabbitMQ.Port)
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
