// Package auth fetches Google Ads credentials from a token management
// service, for deployments where OAuth tokens are not kept in
// google-ads.yaml.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/adharvest/pkg/ads"
	"github.com/ajitpratap0/adharvest/pkg/errors"
)

// TokenService is a client of the token management service
type TokenService struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// tokenData is one stored credential set
type tokenData struct {
	DeveloperToken  string `json:"developerToken"`
	LoginCustomerID string `json:"loginCustomerId"`
	SetToExpireOn   string `json:"setToExpireOn"`
	Token           string `json:"token"`
	ClientSecret    string `json:"clientSecret"`
	ClientID        string `json:"clientId"`
	RefreshToken    string `json:"refreshToken"`
	IsExpired       bool   `json:"isExpired"`
}

type platformToken struct {
	TokenData     tokenData `json:"tokenData"`
	IsMasterToken bool      `json:"isMasterToken"`
	IsExpired     bool      `json:"isExpired"`
}

type tokenResponse struct {
	Success bool            `json:"success"`
	Data    []platformToken `json:"data"`
}

// Credentials are the Google Ads credentials of one account
type Credentials struct {
	AccessToken     string
	RefreshToken    string
	ClientID        string
	ClientSecret    string
	DeveloperToken  string
	LoginCustomerID string
	ExpiresAt       time.Time
}

// NewTokenService returns a client for the service at baseURL
func NewTokenService(baseURL, apiKey string) *TokenService {
	return &TokenService{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GoogleAdsCredentials fetches the credentials stored for accountID. A
// master token is preferred, otherwise the first unexpired one is used.
func (s *TokenService) GoogleAdsCredentials(ctx context.Context, accountID string) (*Credentials, error) {
	u := fmt.Sprintf("%s/v1/api/adAccount/%s/tokens?platform=GOOGLE", s.baseURL, url.PathEscape(accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create token request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to reach token service")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Newf(errors.ErrorTypeAuthentication, "token service refused the api key (status %d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, errors.Newf(errors.ErrorTypeConnection, "token service returned status %d", resp.StatusCode).
			WithDetail("account_id", accountID)
	}

	var body tokenResponse
	if err := gojson.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to decode token response")
	}

	token, ok := pick(body.Data)
	if !body.Success || !ok {
		return nil, errors.New(errors.ErrorTypeAuthentication, "no usable token found for account").
			WithDetail("account_id", accountID)
	}

	var expiresAt time.Time
	if token.TokenData.SetToExpireOn != "" {
		expiresAt, err = time.Parse(time.RFC3339, token.TokenData.SetToExpireOn)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to parse token expiry").
				WithDetail("account_id", accountID)
		}
	}

	return &Credentials{
		AccessToken:     token.TokenData.Token,
		RefreshToken:    token.TokenData.RefreshToken,
		ClientID:        token.TokenData.ClientID,
		ClientSecret:    token.TokenData.ClientSecret,
		DeveloperToken:  token.TokenData.DeveloperToken,
		LoginCustomerID: token.TokenData.LoginCustomerID,
		ExpiresAt:       expiresAt,
	}, nil
}

func pick(tokens []platformToken) (platformToken, bool) {
	var fallback *platformToken
	for i := range tokens {
		t := &tokens[i]
		if t.IsExpired || t.TokenData.IsExpired {
			continue
		}
		if t.IsMasterToken {
			return *t, true
		}
		if fallback == nil {
			fallback = t
		}
	}
	if fallback == nil {
		return platformToken{}, false
	}
	return *fallback, true
}

// Expired reports whether the access token expires within five minutes
func (c *Credentials) Expired(now time.Time) bool {
	if c.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(5 * time.Minute).After(c.ExpiresAt)
}

// Apply overlays the fetched credentials on cfg. The access token is only
// used while still valid; otherwise the refresh token flow takes over.
func (c *Credentials) Apply(cfg ads.Config, now time.Time) ads.Config {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.DeveloperToken, c.DeveloperToken)
	set(&cfg.ClientID, c.ClientID)
	set(&cfg.ClientSecret, c.ClientSecret)
	set(&cfg.RefreshToken, c.RefreshToken)
	if cfg.LoginCustomerID == "" {
		cfg.LoginCustomerID = ads.NormalizeCustomerID(c.LoginCustomerID)
	}
	if c.AccessToken != "" && !c.Expired(now) {
		cfg.AccessToken = c.AccessToken
	} else {
		cfg.AccessToken = ""
	}
	return cfg
}
