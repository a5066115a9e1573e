package ads

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ajitpratap0/adharvest/pkg/errors"
)

func newTestService(t *testing.T, handler http.HandlerFunc) *Service {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := NewService(context.Background(), Config{
		DeveloperToken:  "dev-token",
		AccessToken:     "access",
		LoginCustomerID: "999-000-1111",
		Endpoint:        srv.URL + "/",
	})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc
}

func TestSearchStreamBatches(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v21/customers/1234567890/googleAds:searchStream", r.URL.Path)
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))
		assert.Equal(t, "9990001111", r.Header.Get("login-customer-id"))
		assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, gojson.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SELECT customer.id FROM customer", body["query"])

		w.Header().Set("request-id", "req-1")
		_, _ = io.WriteString(w, `[
			{"results":[{"customer":{"id":"1"},"metrics":{"clicks":"7","ctr":0.5}}],"fieldMask":"customer.id","requestId":"req-1"},
			{"results":[]},
			{"results":[{"customer":{"id":"2"}},{"customer":{"id":"3"}}],"requestId":"req-1"}
		]`)
	})

	var sizes []int
	var rows []Row
	err := svc.SearchStream(context.Background(), "123-456-7890", "SELECT customer.id FROM customer", func(batch []Row) error {
		sizes = append(sizes, len(batch))
		rows = append(rows, batch...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, sizes)
	require.Len(t, rows, 3)

	metrics := rows[0]["metrics"].(map[string]interface{})
	assert.Equal(t, gojson.Number("0.5"), metrics["ctr"])
	assert.Equal(t, "7", metrics["clicks"])
}

func TestSearchStreamHTTPError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("request-id", "req-400")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `[{"error":{
			"code":400,
			"message":"Request contains an invalid argument.",
			"status":"INVALID_ARGUMENT",
			"details":[{
				"@type":"type.googleapis.com/google.ads.googleads.v21.errors.GoogleAdsFailure",
				"errors":[
					{"errorCode":{"queryError":"UNRECOGNIZED_FIELD"},
					 "message":"Unrecognized field in the query: 'metrics.average_position'.",
					 "location":{"fieldPathElements":[{"fieldName":"query"},{"fieldName":"select_clause","index":3}]}},
					{"errorCode":{"queryError":"PROHIBITED_SEGMENT"},"message":"bad segment"}
				],
				"requestId":"req-400"
			}]
		}}]`)
	})

	err := svc.SearchStream(context.Background(), "1", "q", func([]Row) error { return nil })
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "req-400", apiErr.RequestID)
	assert.Equal(t, "INVALID_ARGUMENT", apiErr.Code)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	require.Len(t, apiErr.Errors, 2)
	assert.Equal(t, "UNRECOGNIZED_FIELD", apiErr.Errors[0].Code)
	assert.Equal(t, []string{"query", "select_clause"}, apiErr.Errors[0].FieldPath)
	assert.Empty(t, apiErr.Errors[1].FieldPath)
	assert.Contains(t, apiErr.Error(), "req-400")
}

func TestSearchStreamPlainErrorBody(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, "upstream busy")
	})

	err := svc.SearchStream(context.Background(), "1", "q", func([]Row) error { return nil })
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeUnavailable, apiErr.Code)
	assert.Equal(t, "upstream busy", apiErr.Message)
}

func TestSearchStreamInStreamError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[
			{"results":[{"customer":{"id":"1"}}],"requestId":"req-2"},
			{"error":{"code":429,"message":"Too many requests","status":"RESOURCE_EXHAUSTED"}}
		]`)
	})

	batches := 0
	err := svc.SearchStream(context.Background(), "1", "q", func([]Row) error {
		batches++
		return nil
	})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 1, batches)
	assert.Equal(t, "RESOURCE_EXHAUSTED", apiErr.Code)
	assert.Equal(t, "req-2", apiErr.RequestID)
}

func TestSearchStreamTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	svc, err := NewService(context.Background(), Config{DeveloperToken: "d", AccessToken: "a", Endpoint: url})
	require.NoError(t, err)

	err = svc.SearchStream(context.Background(), "1", "q", func([]Row) error { return nil })
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeUnavailable, apiErr.Code)
	assert.NotNil(t, apiErr.Unwrap())
}

func TestSearchStreamNotAnArray(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	})

	err := svc.SearchStream(context.Background(), "1", "q", func([]Row) error { return nil })
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeStructural))
}

func TestSearchStreamCallbackError(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"results":[{"a":1}]},{"results":[{"a":2}]}]`)
	})

	stop := errors.New(errors.ErrorTypeInternal, "stop")
	calls := 0
	err := svc.SearchStream(context.Background(), "1", "q", func([]Row) error {
		calls++
		return stop
	})
	assert.Equal(t, stop, err)
	assert.Equal(t, 1, calls)
}

func TestConfigValidation(t *testing.T) {
	_, err := NewService(context.Background(), Config{})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = NewService(context.Background(), Config{DeveloperToken: "d", ClientID: "id"})
	require.Error(t, err)

	_, err = NewService(context.Background(), Config{
		DeveloperToken: "d", ClientID: "id", ClientSecret: "s", RefreshToken: "r",
	})
	require.NoError(t, err)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("ADS_REFRESH_TOKEN", "refresh-from-env")
	file := filepath.Join(t.TempDir(), "google-ads.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
developer_token: dev
client_id: cid
client_secret: secret
refresh_token: ${ADS_REFRESH_TOKEN}
login_customer_id: 123-456-7890
use_proto_plus: true
`), 0o600))

	cfg, err := LoadConfig(file)
	require.NoError(t, err)
	assert.Equal(t, "refresh-from-env", cfg.RefreshToken)
	assert.Equal(t, "1234567890", cfg.LoginCustomerID)
	assert.Equal(t, DefaultAPIVersion, cfg.APIVersion)
	assert.Equal(t, DefaultEndpoint, cfg.Endpoint)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	require.NoError(t, cfg.Validate())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewTransport(t *testing.T) {
	tr := NewTransport(DefaultTransportConfig(), zap.NewNop())
	assert.Contains(t, tr.TLSClientConfig.NextProtos, "h2")
	assert.Equal(t, 4, tr.MaxIdleConnsPerHost)

	cfg := DefaultTransportConfig()
	cfg.EnableHTTP2 = false
	plain := NewTransport(cfg, zap.NewNop())
	assert.NotContains(t, plain.TLSClientConfig.NextProtos, "h2")
}

func TestAPIErrorType(t *testing.T) {
	tests := []struct {
		code string
		want errors.ErrorType
	}{
		{CodeUnavailable, errors.ErrorTypeConnection},
		{"RESOURCE_EXHAUSTED", errors.ErrorTypeRateLimit},
		{"DEADLINE_EXCEEDED", errors.ErrorTypeTimeout},
		{"INVALID_ARGUMENT", errors.ErrorTypeAPI},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := &APIError{Code: tt.code}
			assert.Equal(t, tt.want, err.ErrorType())
			assert.True(t, errors.IsRetryable(err))
		})
	}
}
