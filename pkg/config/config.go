// Package config provides the configuration system for adharvest.
// It defines a single Settings structure loaded from an optional YAML file,
// ADHARVEST_* environment variables and command-line flags (through viper),
// plus the loaders for the auxiliary files a run needs: the databases file
// and YAML files with ${VAR} substitution.
//
// The settings are organized into logical sections:
//   - Harvest: worker pool sizing and retry behaviour
//   - Ads: API client tuning
//   - Warehouse: database target selection
//   - Output: sink selection and file sink backend
//   - Reports: which report definitions to run
//   - Observability: logging, metrics push, tracing
//   - Notify: failure event publishing
package config

import (
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// Settings is the root configuration structure
type Settings struct {
	Harvest       HarvestConfig       `mapstructure:"harvest" yaml:"harvest"`
	Ads           AdsConfig           `mapstructure:"ads" yaml:"ads"`
	Warehouse     WarehouseConfig     `mapstructure:"warehouse" yaml:"warehouse"`
	Output        OutputConfig        `mapstructure:"output" yaml:"output"`
	Reports       ReportsConfig       `mapstructure:"reports" yaml:"reports"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
	Notify        NotifyConfig        `mapstructure:"notify" yaml:"notify"`
}

// HarvestConfig controls the worker pool and retry loop
type HarvestConfig struct {
	// Workers fixes the pool size; 0 derives it from the CPU count
	Workers int `mapstructure:"workers" yaml:"workers"`
	// ProcsPerCPU scales the derived pool size. Workers spend most of their
	// time blocked on the network, so more than one per CPU is reasonable.
	ProcsPerCPU int `mapstructure:"procs_per_cpu" yaml:"procs_per_cpu"`
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`
	// BackoffFactor is multiplied by the attempt number between retries
	BackoffFactor time.Duration `mapstructure:"backoff_factor" yaml:"backoff_factor"`
}

// PoolSize returns the effective worker count
func (h HarvestConfig) PoolSize() int {
	if h.Workers > 0 {
		return h.Workers
	}
	per := h.ProcsPerCPU
	if per <= 0 {
		per = 1
	}
	return runtime.NumCPU() * per
}

// AdsConfig tunes the ads API client
type AdsConfig struct {
	// CredentialsFile is the google-ads.yaml holding OAuth credentials
	CredentialsFile   string        `mapstructure:"credentials_file" yaml:"credentials_file"`
	LoginCustomerID   string        `mapstructure:"login_customer_id" yaml:"login_customer_id"`
	APIVersion        string        `mapstructure:"api_version" yaml:"api_version"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// TokenServiceURL, when set, fetches credentials from the token
	// management service for TokenAccount instead of CredentialsFile alone
	TokenServiceURL string `mapstructure:"token_service_url" yaml:"token_service_url"`
	TokenServiceKey string `mapstructure:"token_service_key" yaml:"token_service_key"`
	TokenAccount    string `mapstructure:"token_account" yaml:"token_account"`
}

// WarehouseConfig selects the relational target
type WarehouseConfig struct {
	DatabasesFile   string `mapstructure:"databases_file" yaml:"databases_file"`
	Database        string `mapstructure:"database" yaml:"database"`
	TimestampColumn string `mapstructure:"timestamp_column" yaml:"timestamp_column"`
	MaxConns        int    `mapstructure:"max_conns" yaml:"max_conns"`
}

// OutputConfig selects the sink
type OutputConfig struct {
	// Sink is "warehouse" or "file"
	Sink string `mapstructure:"sink" yaml:"sink"`
	// Dir is the local directory or object key prefix for file output
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Backend is "local", "s3" or "gcs"
	Backend         string `mapstructure:"backend" yaml:"backend"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	CredentialsFile string `mapstructure:"credentials_file" yaml:"credentials_file"`
	// Compression is "none", "gzip", "zstd" or "lz4"
	Compression string `mapstructure:"compression" yaml:"compression"`
}

// ReportsConfig chooses report definitions
type ReportsConfig struct {
	File  string   `mapstructure:"file" yaml:"file"`
	Names []string `mapstructure:"names" yaml:"names"`
}

// ObservabilityConfig contains monitoring settings
type ObservabilityConfig struct {
	LogLevel    string `mapstructure:"log_level" yaml:"log_level"`
	LogEncoding string `mapstructure:"log_encoding" yaml:"log_encoding"`
	Pushgateway string `mapstructure:"pushgateway" yaml:"pushgateway"`
	MetricsJob  string `mapstructure:"metrics_job" yaml:"metrics_job"`
	Tracing     bool   `mapstructure:"tracing" yaml:"tracing"`
}

// NotifyConfig configures failure event publishing
type NotifyConfig struct {
	KafkaBrokers []string `mapstructure:"kafka_brokers" yaml:"kafka_brokers"`
	KafkaTopic   string   `mapstructure:"kafka_topic" yaml:"kafka_topic"`
}

// Sink kinds
const (
	SinkWarehouse = "warehouse"
	SinkFile      = "file"
)

// SetDefaults registers default values on v
func SetDefaults(v *viper.Viper) {
	v.SetDefault("harvest.workers", 0)
	v.SetDefault("harvest.procs_per_cpu", 1)
	v.SetDefault("harvest.max_retries", 5)
	v.SetDefault("harvest.backoff_factor", 5*time.Second)

	v.SetDefault("ads.credentials_file", "google-ads.yaml")
	// empty api_version, endpoint and timeout keep what the credentials
	// file says, or the client defaults
	v.SetDefault("ads.api_version", "")
	v.SetDefault("ads.endpoint", "")
	v.SetDefault("ads.requests_per_second", 10.0)
	v.SetDefault("ads.timeout", time.Duration(0))

	v.SetDefault("warehouse.databases_file", "databases.json")
	v.SetDefault("warehouse.database", "DESA STG")
	v.SetDefault("warehouse.timestamp_column", "FECHA_CREACION")
	v.SetDefault("warehouse.max_conns", 4)

	v.SetDefault("output.sink", SinkWarehouse)
	v.SetDefault("output.dir", "out")
	v.SetDefault("output.backend", "local")
	v.SetDefault("output.compression", "none")
	v.SetDefault("output.bucket", "")
	v.SetDefault("output.region", "")
	v.SetDefault("output.credentials_file", "")

	v.SetDefault("reports.file", "")
	v.SetDefault("reports.names", []string{})

	v.SetDefault("ads.login_customer_id", "")
	v.SetDefault("ads.token_service_url", "")
	v.SetDefault("ads.token_service_key", "")
	v.SetDefault("ads.token_account", "")

	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_encoding", "json")
	v.SetDefault("observability.pushgateway", "")
	v.SetDefault("observability.metrics_job", "adharvest")
	v.SetDefault("observability.tracing", false)

	// viper only unmarshals keys it knows about, so every key needs a
	// default for AutomaticEnv to reach it
	v.SetDefault("notify.kafka_brokers", []string{})
	v.SetDefault("notify.kafka_topic", "")
}

// NewViper returns a viper instance with defaults and environment binding.
// ADHARVEST_HARVEST_MAX_RETRIES overrides harvest.max_retries, and so on.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("ADHARVEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadSettings reads the optional settings file into v and decodes it
func LoadSettings(v *viper.Viper, file string) (*Settings, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read settings file").
				WithDetail("file", file)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks settings that do not depend on other files
func (s *Settings) Validate() error {
	if s.Harvest.MaxRetries < 0 {
		return errors.New(errors.ErrorTypeConfig, "harvest.max_retries must not be negative")
	}
	if s.Harvest.BackoffFactor < 0 {
		return errors.New(errors.ErrorTypeConfig, "harvest.backoff_factor must not be negative")
	}
	if s.Harvest.Workers < 0 {
		return errors.New(errors.ErrorTypeConfig, "harvest.workers must not be negative")
	}

	switch s.Output.Sink {
	case SinkWarehouse, SinkFile:
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown sink %q, expected %s or %s", s.Output.Sink, SinkWarehouse, SinkFile)
	}

	switch s.Output.Backend {
	case "local", "s3", "gcs":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown output backend %q", s.Output.Backend)
	}
	if s.Output.Backend != "local" && s.Output.Bucket == "" {
		return errors.Newf(errors.ErrorTypeConfig, "output backend %s requires a bucket", s.Output.Backend)
	}

	switch s.Output.Compression {
	case "", "none", "gzip", "zstd", "lz4":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown compression %q", s.Output.Compression)
	}

	if len(s.Notify.KafkaBrokers) > 0 && s.Notify.KafkaTopic == "" {
		return errors.New(errors.ErrorTypeConfig, "notify.kafka_topic is required when brokers are set")
	}
	return nil
}
