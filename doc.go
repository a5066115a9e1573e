// Package adharvest pulls Google Ads reports for many customer accounts in
// parallel and loads the rows into a warehouse table or into report files.
//
// The command line lives in cmd/adharvest. A run expands every customer id
// and report definition into one unit of work, fetches the units on a worker
// pool with retries, forwards the successful ones to a sink and prints a
// summary of successes and failures.
//
// # Packages
//
//   - internal/harvest: unit generation, workers, dispatcher, forwarding, reporting
//   - pkg/ads: Google Ads REST client
//   - pkg/auth: credentials from the token management service
//   - pkg/report: report definitions and GAQL query assembly
//   - pkg/sink: warehouse and file sinks
//   - pkg/config: settings, databases file, date ranges
//   - pkg/notify: failure events on Kafka
//   - pkg/metrics, pkg/observability: Prometheus metrics and OpenTelemetry spans
//   - pkg/errors, pkg/logger: typed errors and zap logging
package adharvest
