package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/errors"
)

const tokens = `{"success":true,"data":[
	{"isMasterToken":false,"isExpired":true,"tokenData":{"token":"stale","developerToken":"dev-old"}},
	{"isMasterToken":false,"tokenData":{"token":"plain","developerToken":"dev-plain","refreshToken":"r-plain"}},
	{"isMasterToken":true,"tokenData":{"token":"master","developerToken":"dev","clientId":"cid","clientSecret":"cs",
		"refreshToken":"r","loginCustomerId":"123-456-7890","setToExpireOn":"2030-01-01T00:00:00Z"}}
]}`

func tokenServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/api/adAccount/acct-1/tokens", r.URL.Path)
		assert.Equal(t, "GOOGLE", r.URL.Query().Get("platform"))
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGoogleAdsCredentialsPrefersMasterToken(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, tokens)

	creds, err := NewTokenService(srv.URL, "key").GoogleAdsCredentials(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "master", creds.AccessToken)
	assert.Equal(t, "dev", creds.DeveloperToken)
	assert.Equal(t, "cid", creds.ClientID)
	assert.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), creds.ExpiresAt)
}

func TestGoogleAdsCredentialsFallsBackToUnexpired(t *testing.T) {
	srv := tokenServer(t, http.StatusOK, `{"success":true,"data":[
		{"isExpired":true,"tokenData":{"token":"stale"}},
		{"tokenData":{"token":"plain"}}
	]}`)

	creds, err := NewTokenService(srv.URL, "key").GoogleAdsCredentials(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "plain", creds.AccessToken)
	assert.True(t, creds.ExpiresAt.IsZero())
}

func TestGoogleAdsCredentialsErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   errors.ErrorType
	}{
		{"forbidden", http.StatusForbidden, `{}`, errors.ErrorTypeAuthentication},
		{"server error", http.StatusBadGateway, `{}`, errors.ErrorTypeConnection},
		{"no usable token", http.StatusOK, `{"success":true,"data":[{"isExpired":true}]}`, errors.ErrorTypeAuthentication},
		{"unsuccessful", http.StatusOK, `{"success":false,"data":[]}`, errors.ErrorTypeAuthentication},
		{"garbage", http.StatusOK, `not json`, errors.ErrorTypeAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := tokenServer(t, tt.status, tt.body)
			_, err := NewTokenService(srv.URL, "key").GoogleAdsCredentials(context.Background(), "acct-1")
			require.Error(t, err)
			assert.True(t, errors.IsType(err, tt.want), err.Error())
		})
	}
}

func TestApply(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	creds := &Credentials{
		AccessToken:     "token",
		RefreshToken:    "refresh",
		ClientID:        "cid",
		ClientSecret:    "secret",
		DeveloperToken:  "dev",
		LoginCustomerID: "123-456-7890",
		ExpiresAt:       now.Add(time.Hour),
	}

	cfg := creds.Apply(ads.Config{Endpoint: "http://local", ClientID: "file-cid"}, now)
	assert.Equal(t, "token", cfg.AccessToken)
	assert.Equal(t, "cid", cfg.ClientID)
	assert.Equal(t, "dev", cfg.DeveloperToken)
	assert.Equal(t, "1234567890", cfg.LoginCustomerID)
	assert.Equal(t, "http://local", cfg.Endpoint)

	t.Run("login customer from settings wins", func(t *testing.T) {
		cfg := creds.Apply(ads.Config{LoginCustomerID: "42"}, now)
		assert.Equal(t, "42", cfg.LoginCustomerID)
	})

	t.Run("near expiry drops the access token", func(t *testing.T) {
		cfg := creds.Apply(ads.Config{AccessToken: "file"}, now.Add(58*time.Minute))
		assert.Empty(t, cfg.AccessToken)
		assert.Equal(t, "refresh", cfg.RefreshToken)
		assert.NoError(t, cfg.Validate())
	})
}
