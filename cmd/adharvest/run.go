package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/internal/harvest"
	"github.com/ajitpratap0/adharvest/pkg/config"
	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
	"github.com/ajitpratap0/adharvest/pkg/metrics"
	"github.com/ajitpratap0/adharvest/pkg/notify"
	"github.com/ajitpratap0/adharvest/pkg/observability"
	"github.com/ajitpratap0/adharvest/pkg/report"
)

type runOptions struct {
	customerIDs    []string
	startDate      string
	endDate        string
	campaignStatus string
	now            func() time.Time
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	opts := &runOptions{now: time.Now}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest reports for a set of customer accounts",
		Long: `Run every selected report for every customer id in parallel and write the
results to the configured sink.

Example:
  adharvest run -c 123-456-7890,2345678901 -s 2024-01-01 -e 2024-01-31 -d "DESA STG"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest(cmd, v, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringSliceVarP(&opts.customerIDs, "customer-ids", "c", nil, "Customer ids to harvest, comma separated or repeated (required)")
	_ = cmd.MarkFlagRequired("customer-ids")
	flags.StringVarP(&opts.startDate, "start-date", "s", "", "First day of the report range, YYYY-MM-DD (default today)")
	flags.StringVarP(&opts.endDate, "end-date", "e", "", "Last day of the report range, YYYY-MM-DD (default today)")
	flags.StringVarP(&opts.campaignStatus, "campaign-status", "k", "ENABLED",
		"Campaign status filter: ENABLED, PAUSED, REMOVED, UNKNOWN or UNSPECIFIED")

	flags.StringP("database", "d", "DESA STG", "Warehouse target, a key of the databases file")
	flags.String("sink", config.SinkWarehouse, "Where results go: warehouse or file")
	flags.String("output-dir", "out", "Directory, or object prefix, for file output")
	flags.String("output-backend", "local", "File output backend: local, s3 or gcs")
	flags.String("bucket", "", "Bucket for the s3 and gcs backends")
	flags.String("compression", "none", "File compression: none, gzip, zstd or lz4")
	flags.String("reports", "", "YAML file with report definitions (default built-in reports)")
	flags.StringSlice("report", nil, "Only run the named reports")
	flags.Int("workers", 0, "Worker count (default CPUs x procs-per-cpu)")
	flags.Int("procs-per-cpu", 1, "Workers per CPU when --workers is not set")
	flags.Int("max-retries", 5, "Retries of a failed API request")
	flags.Duration("backoff-factor", 5*time.Second, "The n-th retry waits n times this")
	flags.String("metrics-pushgateway", "", "Prometheus Pushgateway URL to push run metrics to")
	flags.Bool("trace", false, "Export OpenTelemetry spans to stderr")
	flags.StringSlice("kafka-brokers", nil, "Kafka brokers receiving failure events")
	flags.String("kafka-topic", "", "Kafka topic for failure events")

	bind(v, flags, map[string]string{
		"warehouse.database":        "database",
		"output.sink":               "sink",
		"output.dir":                "output-dir",
		"output.backend":            "output-backend",
		"output.bucket":             "bucket",
		"output.compression":        "compression",
		"reports.file":              "reports",
		"reports.names":             "report",
		"harvest.workers":           "workers",
		"harvest.procs_per_cpu":     "procs-per-cpu",
		"harvest.max_retries":       "max-retries",
		"harvest.backoff_factor":    "backoff-factor",
		"observability.pushgateway": "metrics-pushgateway",
		"observability.tracing":     "trace",
		"notify.kafka_brokers":      "kafka-brokers",
		"notify.kafka_topic":        "kafka-topic",
	})
	return cmd
}

// plan is everything a run needs, validated before any API or sink work
type plan struct {
	accounts    []string
	definitions []report.Definition
	query       report.QueryOptions
	database    string
	target      config.Database
}

func buildPlan(s *config.Settings, opts *runOptions) (*plan, error) {
	now := opts.now()
	dates, err := config.ParseDateRange(opts.startDate, opts.endDate, now)
	if err != nil {
		return nil, err
	}
	status, err := report.NormalizeStatus(opts.campaignStatus)
	if err != nil {
		return nil, err
	}
	accounts, err := customerIDs(opts.customerIDs)
	if err != nil {
		return nil, err
	}

	defs := report.Builtin()
	if s.Reports.File != "" {
		if defs, err = report.LoadDefinitions(s.Reports.File); err != nil {
			return nil, err
		}
	}
	if defs, err = report.Select(defs, s.Reports.Names); err != nil {
		return nil, err
	}

	p := &plan{
		accounts:    accounts,
		definitions: defs,
		query: report.QueryOptions{
			Start:          dates.Start,
			End:            dates.End,
			CampaignStatus: status,
			Today:          now,
		},
	}

	if s.Output.Sink == config.SinkWarehouse {
		dbs, err := config.LoadDatabases(s.Warehouse.DatabasesFile)
		if err != nil {
			return nil, err
		}
		if p.database, p.target, err = dbs.Lookup(s.Warehouse.Database); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func runHarvest(cmd *cobra.Command, v *viper.Viper, opts *runOptions) error {
	settings, err := setup(cmd, v)
	if err != nil {
		return err
	}
	p, err := buildPlan(settings, opts)
	if err != nil {
		return err
	}
	adsCfg, err := adsConfig(cmd.Context(), settings)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ctx := logger.WithRunID(cmd.Context(), runID)
	log := logger.WithContext(ctx).With(zap.String("component", "adharvest-cli"))

	tracing := observability.DefaultTracingConfig(version)
	tracing.Enabled = settings.Observability.Tracing
	shutdownTracing, err := observability.InitTracing(tracing)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("failed to flush spans", zap.Error(err))
		}
	}()

	out, err := openSink(ctx, settings, p.target)
	if err != nil {
		return err
	}
	defer func() {
		if err := out.Close(); err != nil {
			log.Warn("failed to close sink", zap.Error(err))
		}
	}()

	publisher, err := openPublisher(settings)
	if err != nil {
		return err
	}
	defer publisher.Close()

	workers := settings.Harvest.PoolSize()
	log.Info("starting harvest",
		zap.Strings("accounts", p.accounts),
		zap.Int("reports", len(p.definitions)),
		zap.Int("workers", workers),
		zap.String("sink", settings.Output.Sink),
		zap.String("database", p.database),
		zap.Time("start_date", p.query.Start),
		zap.Time("end_date", p.query.End))

	h := &harvest.Harvester{
		Dispatcher: &harvest.Dispatcher{
			Workers: workers,
			Factory: harvest.ServiceFactory(adsCfg, workers),
			Template: harvest.FetchWorker{
				MaxRetries:    settings.Harvest.MaxRetries,
				BackoffFactor: settings.Harvest.BackoffFactor,
			},
			Logger: log,
		},
		Forwarder: &harvest.Forwarder{
			Sink:            out,
			TimestampColumn: settings.Warehouse.TimestampColumn,
			Logger:          log,
		},
		Reporter:  &harvest.Reporter{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()},
		Publisher: publisher,
		Logger:    log,
	}

	started := time.Now()
	res, err := h.Run(ctx, harvest.Request{
		RunID:       runID,
		Accounts:    p.accounts,
		Definitions: p.definitions,
		Query:       p.query,
	})
	if err != nil {
		return err
	}

	log.Info("harvest completed",
		zap.Duration("duration", time.Since(started)),
		zap.Int("successes", len(res.Summary.Successes)),
		zap.Int("failures", len(res.Summary.Failures)),
		zap.Int("records_inserted", res.Forward.Inserted),
		zap.Int("records_failed", res.Forward.Failed))

	if url := settings.Observability.Pushgateway; url != "" {
		if err := metrics.Push(ctx, url, settings.Observability.MetricsJob, runID); err != nil {
			log.Warn("failed to push metrics", zap.Error(err))
		}
	}

	if code := res.ExitCode(); code != harvest.ExitOK {
		return &exitError{code: code, err: errors.Newf(errors.ErrorTypeStructural,
			"%d unit(s) ended on a response that does not match its report definition", res.Summary.StructuralFailures())}
	}
	return nil
}

func openPublisher(s *config.Settings) (notify.Publisher, error) {
	if len(s.Notify.KafkaBrokers) == 0 {
		return notify.Nop{}, nil
	}
	p, err := notify.NewKafkaPublisher(s.Notify.KafkaBrokers, s.Notify.KafkaTopic)
	if err != nil {
		return nil, err
	}
	return p, nil
}
