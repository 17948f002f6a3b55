package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"
	_ "time/tzdata" // zone data for VENDOR_TIMEZONE / DASHBOARD_TIMEZONE in slim images

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers.
const (
	DriverAppwrite = "appwrite"
	DriverMongo    = "mongodb"
	DriverMemory   = "memory"
)

// Config holds the settings shared by the API server and the provisioner.
type Config struct {
	Port     string `env:"PORT" envDefault:"3000"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile  string `env:"LOG_FILE"`

	StoreDriver  string        `env:"STORE_DRIVER" envDefault:"appwrite"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"10s"`

	AppwriteEndpoint     string `env:"APPWRITE_ENDPOINT"`
	AppwriteProjectID    string `env:"APPWRITE_PROJECT_ID"`
	AppwriteAPIKey       string `env:"APPWRITE_API_KEY"`
	AppwriteDatabaseID   string `env:"APPWRITE_DATABASE_ID"`
	AppwriteCollectionID string `env:"APPWRITE_COLLECTION_VENTAS_ID"`

	MongoURI        string `env:"MONGODB_URI"`
	MongoDatabase   string `env:"MONGODB_DATABASE" envDefault:"SalesDatabase"`
	MongoCollection string `env:"MONGODB_COLLECTION" envDefault:"ventas"`

	MaxPageLimit   int      `env:"MAX_PAGE_LIMIT" envDefault:"100"`
	VendorTimezone string   `env:"VENDOR_TIMEZONE" envDefault:"America/Santiago"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	WebhookRateLimit float64 `env:"WEBHOOK_RATE_LIMIT" envDefault:"20"`
	WebhookRateBurst int     `env:"WEBHOOK_RATE_BURST" envDefault:"40"`
}

// Dashboard holds the settings of the dashboard binary.
type Dashboard struct {
	Port           string        `env:"DASHBOARD_PORT" envDefault:"8080"`
	APIBase        string        `env:"DASHBOARD_API_BASE" envDefault:"http://localhost:3000/api"`
	Timezone       string        `env:"DASHBOARD_TIMEZONE" envDefault:"America/Santiago"`
	Locale         string        `env:"DASHBOARD_LOCALE" envDefault:"es-CL"`
	CurrencyDigits int           `env:"DASHBOARD_CURRENCY_DIGITS" envDefault:"0"`
	DefaultLimit   int           `env:"DASHBOARD_DEFAULT_LIMIT" envDefault:"50"`
	RequestTimeout time.Duration `env:"DASHBOARD_REQUEST_TIMEOUT" envDefault:"10s"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFile        string        `env:"LOG_FILE"`
}

// ConfigurationError lists every missing or invalid setting found at startup.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "configuration error: " + strings.Join(parts, "; ")
}

func (e *ConfigurationError) orNil() error {
	if len(e.Missing) == 0 && len(e.Invalid) == 0 {
		return nil
	}
	return e
}

// Load reads .env files (if present) and then the process environment.
// Values already set in the environment win over .env entries.
func Load(files ...string) (*Config, error) {
	if err := loadDotenv(files...); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigurationError{Invalid: []string{err.Error()}}
	}
	return cfg, nil
}

// LoadDashboard is Load for the dashboard binary.
func LoadDashboard(files ...string) (*Dashboard, error) {
	if err := loadDotenv(files...); err != nil {
		return nil, err
	}
	cfg := &Dashboard{}
	if err := env.Parse(cfg); err != nil {
		return nil, &ConfigurationError{Invalid: []string{err.Error()}}
	}
	return cfg, cfg.Validate()
}

func loadDotenv(files ...string) error {
	err := godotenv.Load(files...)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load .env: %w", err)
}

// ValidateServer checks what the ingest and query endpoints need.
func (c *Config) ValidateServer() error {
	problems := &ConfigurationError{}
	c.validateCommon(problems)

	switch c.StoreDriver {
	case DriverAppwrite:
		c.validateAppwrite(problems)
		requireValue(problems, "APPWRITE_DATABASE_ID", c.AppwriteDatabaseID)
		requireValue(problems, "APPWRITE_COLLECTION_VENTAS_ID", c.AppwriteCollectionID)
	case DriverMongo:
		requireValue(problems, "MONGODB_URI", c.MongoURI)
	}

	if c.MaxPageLimit < 1 {
		problems.Invalid = append(problems.Invalid, "MAX_PAGE_LIMIT")
	}
	if _, err := time.LoadLocation(c.VendorTimezone); err != nil {
		problems.Invalid = append(problems.Invalid, "VENDOR_TIMEZONE")
	}
	if c.WebhookRateLimit <= 0 || c.WebhookRateBurst < 1 {
		problems.Invalid = append(problems.Invalid, "WEBHOOK_RATE_LIMIT/WEBHOOK_RATE_BURST")
	}
	return problems.orNil()
}

// ValidateProvision checks what the schema provisioner needs.
// Database and collection IDs are an output of provisioning, so they are not required.
func (c *Config) ValidateProvision() error {
	problems := &ConfigurationError{}
	c.validateCommon(problems)

	switch c.StoreDriver {
	case DriverAppwrite:
		c.validateAppwrite(problems)
	case DriverMongo:
		requireValue(problems, "MONGODB_URI", c.MongoURI)
	case DriverMemory:
		problems.Invalid = append(problems.Invalid, "STORE_DRIVER (memory has no schema)")
	}
	return problems.orNil()
}

// VendorLocation returns the zone used for sale dates sent without an offset.
func (c *Config) VendorLocation() *time.Location {
	loc, err := time.LoadLocation(c.VendorTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c *Config) validateCommon(problems *ConfigurationError) {
	switch c.StoreDriver {
	case DriverAppwrite, DriverMongo, DriverMemory:
	default:
		problems.Invalid = append(problems.Invalid, "STORE_DRIVER")
	}
	if c.StoreTimeout <= 0 {
		problems.Invalid = append(problems.Invalid, "STORE_TIMEOUT")
	}
}

func (c *Config) validateAppwrite(problems *ConfigurationError) {
	if requireValue(problems, "APPWRITE_ENDPOINT", c.AppwriteEndpoint) {
		if u, err := url.Parse(c.AppwriteEndpoint); err != nil || u.Scheme == "" || u.Host == "" {
			problems.Invalid = append(problems.Invalid, "APPWRITE_ENDPOINT")
		}
	}
	requireValue(problems, "APPWRITE_PROJECT_ID", c.AppwriteProjectID)
	requireValue(problems, "APPWRITE_API_KEY", c.AppwriteAPIKey)
}

// Validate checks the dashboard settings.
func (d *Dashboard) Validate() error {
	problems := &ConfigurationError{}
	if requireValue(problems, "DASHBOARD_API_BASE", d.APIBase) {
		if u, err := url.Parse(d.APIBase); err != nil || u.Scheme == "" || u.Host == "" {
			problems.Invalid = append(problems.Invalid, "DASHBOARD_API_BASE")
		}
	}
	if _, err := time.LoadLocation(d.Timezone); err != nil {
		problems.Invalid = append(problems.Invalid, "DASHBOARD_TIMEZONE")
	}
	if d.CurrencyDigits < 0 || d.CurrencyDigits > 4 {
		problems.Invalid = append(problems.Invalid, "DASHBOARD_CURRENCY_DIGITS")
	}
	if d.DefaultLimit < 1 {
		problems.Invalid = append(problems.Invalid, "DASHBOARD_DEFAULT_LIMIT")
	}
	return problems.orNil()
}

// Location returns the zone that defines the dashboard's calendar day.
func (d *Dashboard) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func requireValue(problems *ConfigurationError, key, value string) bool {
	if strings.TrimSpace(value) == "" {
		problems.Missing = append(problems.Missing, key)
		return false
	}
	return true
}
