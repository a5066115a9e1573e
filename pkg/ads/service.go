package ads

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/ajitpratap0/adharvest/pkg/errors"
	"github.com/ajitpratap0/adharvest/pkg/logger"
)

// Row is one decoded search result, keyed by camelCase field names
type Row = map[string]interface{}

// Searcher runs GAQL queries against one account. Implementations are not
// required to be safe for concurrent use.
type Searcher interface {
	// SearchStream calls fn once per non-empty batch of rows, in API order.
	// A failure reported by the API is returned as *APIError.
	SearchStream(ctx context.Context, customerID, query string, fn func([]Row) error) error
}

// Service is a live API handle: an authenticated HTTP client and a request
// rate limiter.
type Service struct {
	cfg       Config
	client    *http.Client
	transport *http.Transport
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewService builds a Service from cfg
func NewService(ctx context.Context, cfg Config) (*Service, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.With(zap.String("component", "ads"))
	transport := NewTransport(DefaultTransportConfig(), log)
	// the token source and the API client share one transport
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: transport, Timeout: cfg.Timeout})

	var ts oauth2.TokenSource
	if cfg.AccessToken != "" {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	} else {
		oc := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL},
			Scopes:       []string{adwordsAPI},
		}
		ts = oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	}

	client := oauth2.NewClient(ctx, ts)
	client.Timeout = cfg.Timeout

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Service{
		cfg:       cfg,
		client:    client,
		transport: transport,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    log,
	}, nil
}

// streamBatch is one element of the searchStream response array
type streamBatch struct {
	Results   []Row       `json:"results"`
	RequestID string      `json:"requestId"`
	Error     *statusBody `json:"error"`
}

// SearchStream implements Searcher
func (s *Service) SearchStream(ctx context.Context, customerID, query string, fn func([]Row) error) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return transportError(err)
	}

	customerID = NormalizeCustomerID(customerID)
	body, err := gojson.Marshal(map[string]string{"query": query})
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to marshal search request")
	}

	url := fmt.Sprintf("%s/%s/customers/%s/googleAds:searchStream", s.cfg.Endpoint, s.cfg.APIVersion, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to create search request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("developer-token", s.cfg.DeveloperToken)
	if s.cfg.LoginCustomerID != "" {
		req.Header.Set("login-customer-id", s.cfg.LoginCustomerID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := http.StatusUnauthorized
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			apiErr := parseErrorBody(re.Body, status, "")
			apiErr.Code = statusCode(http.StatusUnauthorized)
			apiErr.Cause = err
			return apiErr
		}
		return transportError(err)
	}
	defer resp.Body.Close()

	requestID := resp.Header.Get("request-id")
	s.logger.Debug("search stream opened",
		zap.String("customer_id", customerID),
		zap.String("request_id", requestID),
		zap.Int("status", resp.StatusCode))

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return parseErrorBody(data, resp.StatusCode, requestID)
	}

	return decodeStream(resp.Body, requestID, fn)
}

// decodeStream walks the top-level JSON array one batch at a time, so a
// large report is never held in memory twice.
func decodeStream(r io.Reader, requestID string, fn func([]Row) error) error {
	dec := gojson.NewDecoder(r)
	dec.UseNumber()

	token, err := dec.Token()
	if err != nil {
		return transportError(err)
	}
	if delim, ok := token.(gojson.Delim); !ok || delim != '[' {
		return errors.New(errors.ErrorTypeStructural, "search stream response is not a JSON array").
			WithDetail("request_id", requestID)
	}

	for dec.More() {
		var batch streamBatch
		if err := dec.Decode(&batch); err != nil {
			var typeErr *gojson.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				return errors.Wrap(err, errors.ErrorTypeStructural, "unexpected search stream batch").
					WithDetail("request_id", requestID)
			}
			// a stream cut short surfaces here
			return transportError(err)
		}
		if batch.RequestID != "" {
			requestID = batch.RequestID
		}
		if batch.Error != nil {
			return batch.Error.toAPIError(http.StatusOK, requestID)
		}
		if len(batch.Results) == 0 {
			continue
		}
		if err := fn(batch.Results); err != nil {
			return err
		}
	}

	if _, err := dec.Token(); err != nil {
		return transportError(err)
	}
	return nil
}

// Close releases idle connections
func (s *Service) Close() {
	s.transport.CloseIdleConnections()
}

// Config returns the effective configuration, defaults applied
func (s *Service) Config() Config {
	return s.cfg
}
