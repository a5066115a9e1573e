package main

import (
	"context"
	"io/fs"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/auth"
	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
)

// addGlobalFlags registers the flags every command shares. They are bound to
// viper once, on the root, so that subcommands never rebind a key.
func addGlobalFlags(root *cobra.Command, v *viper.Viper) {
	flags := root.PersistentFlags()
	flags.String("config", "", "Settings file (YAML); ADHARVEST_* environment variables override it")
	flags.String("google-ads-config", "google-ads.yaml", "Google Ads credentials file")
	flags.StringP("login-customer-id", "l", "", "Manager account used to access the customer accounts")
	flags.String("databases-file", "databases.json", "Warehouse targets file")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-encoding", "json", "Log encoding (json, console)")

	bind(v, flags, map[string]string{
		"ads.credentials_file":       "google-ads-config",
		"ads.login_customer_id":      "login-customer-id",
		"warehouse.databases_file":   "databases-file",
		"observability.log_level":    "log-level",
		"observability.log_encoding": "log-encoding",
	})
}

func bind(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		_ = v.BindPFlag(key, flags.Lookup(name))
	}
}

// setup loads settings and replaces the global logger with one honouring
// them
func setup(cmd *cobra.Command, v *viper.Viper) (*config.Settings, error) {
	file, _ := cmd.Flags().GetString("config")
	settings, err := config.LoadSettings(v, file)
	if err != nil {
		return nil, err
	}

	if err := logger.Init(logger.Config{
		Level:    settings.Observability.LogLevel,
		Encoding: settings.Observability.LogEncoding,
	}); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialise logger")
	}
	return settings, nil
}

// adsConfig loads the credentials file, overlays the token service
// credentials when one is configured, and applies the settings on top
func adsConfig(ctx context.Context, s *config.Settings) (ads.Config, error) {
	cfg, err := ads.LoadConfig(s.Ads.CredentialsFile)
	if err != nil {
		if s.Ads.TokenServiceURL == "" || !errors.Is(err, fs.ErrNotExist) {
			return ads.Config{}, err
		}
		cfg = ads.Config{}
	}
	if s.Ads.TokenServiceURL != "" {
		if s.Ads.TokenAccount == "" {
			return ads.Config{}, errors.New(errors.ErrorTypeConfig, "ads.token_account is required with ads.token_service_url")
		}
		creds, err := auth.NewTokenService(s.Ads.TokenServiceURL, s.Ads.TokenServiceKey).
			GoogleAdsCredentials(ctx, s.Ads.TokenAccount)
		if err != nil {
			return ads.Config{}, err
		}
		cfg = creds.Apply(cfg, time.Now())
	}
	if s.Ads.LoginCustomerID != "" {
		cfg.LoginCustomerID = s.Ads.LoginCustomerID
	}
	if s.Ads.APIVersion != "" {
		cfg.APIVersion = s.Ads.APIVersion
	}
	if s.Ads.Endpoint != "" {
		cfg.Endpoint = s.Ads.Endpoint
	}
	if s.Ads.Timeout > 0 {
		cfg.Timeout = s.Ads.Timeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = s.Ads.RequestsPerSecond
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return ads.Config{}, err
	}
	return cfg, nil
}

// customerIDs strips dashes and checks that every id is numeric. Duplicates
// are kept.
func customerIDs(raw []string) ([]string, error) {
	ids := make([]string, 0, len(raw))
	for _, r := range raw {
		id := ads.NormalizeCustomerID(r)
		if id == "" {
			continue
		}
		if strings.IndexFunc(id, func(c rune) bool { return !unicode.IsDigit(c) }) >= 0 {
			return nil, errors.Newf(errors.ErrorTypeValidation, "invalid customer id %q", r)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, "at least one customer id is required")
	}
	return ids, nil
}
