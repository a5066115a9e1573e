// Package ads is a small client for the Google Ads REST interface. It
// covers what a report harvest needs: OAuth2 credentials, streaming GAQL
// search, and the structured failure the API returns.
package ads

import (
	"strings"
	"time"

	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
)

const (
	// DefaultEndpoint is the public API host
	DefaultEndpoint = "https://googleads.googleapis.com"
	// DefaultAPIVersion is the REST version requests are sent to
	DefaultAPIVersion = "v21"
	// DefaultTimeout bounds one HTTP exchange, stream included
	DefaultTimeout = 5 * time.Minute

	tokenURL   = "https://oauth2.googleapis.com/token"
	adwordsAPI = "https://www.googleapis.com/auth/adwords"
)

// Config holds everything needed to build a Service. It is a plain value so
// it can be copied into every worker, each of which builds its own Service.
type Config struct {
	DeveloperToken string `yaml:"developer_token"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	RefreshToken   string `yaml:"refresh_token"`
	// AccessToken skips the OAuth2 refresh flow when set
	AccessToken     string `yaml:"access_token"`
	LoginCustomerID string `yaml:"login_customer_id"`

	APIVersion        string        `yaml:"api_version"`
	Endpoint          string        `yaml:"endpoint"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
}

// LoadConfig reads a google-ads.yaml credentials file. ${VAR} references are
// expanded from the environment.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return Config{}, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load ads credentials").
			WithDetail("file", path)
	}
	return cfg.WithDefaults(), nil
}

// WithDefaults fills unset tuning fields
func (c Config) WithDefaults() Config {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	c.LoginCustomerID = NormalizeCustomerID(c.LoginCustomerID)
	return c
}

// Validate checks that credentials are present
func (c Config) Validate() error {
	if c.DeveloperToken == "" {
		return errors.New(errors.ErrorTypeConfig, "developer_token is required")
	}
	if c.AccessToken != "" {
		return nil
	}
	if c.ClientID == "" || c.ClientSecret == "" || c.RefreshToken == "" {
		return errors.New(errors.ErrorTypeConfig, "client_id, client_secret and refresh_token are required")
	}
	return nil
}

// NormalizeCustomerID strips the dashes of the 123-456-7890 display form
func NormalizeCustomerID(id string) string {
	return strings.ReplaceAll(strings.TrimSpace(id), "-", "")
}
