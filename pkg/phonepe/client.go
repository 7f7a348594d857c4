package phonepe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/bikerent-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bikerent-backend/pkg/errors"
	"github.com/angelmondragon/bikerent-backend/pkg/metrics"
)

const (
	uatBaseURL  = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	uatAuthURL  = "https://api-preprod.phonepe.com/apis/pg-sandbox/v1/oauth/token"
	prodBaseURL = "https://api.phonepe.com/apis/pg"
	prodAuthURL = "https://api.phonepe.com/apis/identity-manager/v1/oauth/token"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Client talks to the PhonePe subscriptions v2 API.
type Client struct {
	http          *http.Client
	baseURL       string
	authURL       string
	clientID      string
	clientSecret  string
	clientVersion string
	metrics       *metrics.PaymentMetrics
}

// NewClient builds a client for the configured environment. m may be nil.
func NewClient(cfg config.PhonePeConfig, m *metrics.PaymentMetrics) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("phonepe client id and secret are required")
	}

	baseURL, authURL := prodBaseURL, prodAuthURL
	if cfg.IsUAT {
		baseURL, authURL = uatBaseURL, uatAuthURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.AuthURL != "" {
		authURL = cfg.AuthURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	version := cfg.ClientVersion
	if version == "" {
		version = "1"
	}

	return &Client{
		http:          &http.Client{Timeout: timeout},
		baseURL:       strings.TrimRight(baseURL, "/"),
		authURL:       authURL,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		clientVersion: version,
		metrics:       m,
	}, nil
}

// FetchToken performs the client-credentials exchange.
func (c *Client) FetchToken(ctx context.Context) (*TokenResponse, error) {
	form := url.Values{
		"client_id":      {c.clientID},
		"client_version": {c.clientVersion},
		"client_secret":  {c.clientSecret},
		"grant_type":     {"client_credentials"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var out TokenResponse
	if _, err := c.do(req, "token", &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, pkgerrors.New(pkgerrors.CodeRemoteAPI, "token response missing access_token")
	}
	return &out, nil
}

// SetupSubscription starts a mandate setup with a penny-drop verification charge.
func (c *Client) SetupSubscription(ctx context.Context, token string, body SetupRequest) (*Result[SetupResponse], error) {
	var out SetupResponse
	raw, err := c.call(ctx, token, http.MethodPost, "/subscriptions/v2/setup", body, "setup", &out)
	if err != nil {
		return nil, err
	}
	return &Result[SetupResponse]{Data: out, Raw: raw}, nil
}

// SubscriptionStatus fetches the processor's view of a subscription.
func (c *Client) SubscriptionStatus(ctx context.Context, token, merchantSubscriptionID string) (*Result[StatusResponse], error) {
	path := "/subscriptions/v2/" + url.PathEscape(merchantSubscriptionID) + "/status?details=true"
	var out StatusResponse
	raw, err := c.call(ctx, token, http.MethodGet, path, nil, "status", &out)
	if err != nil {
		return nil, err
	}
	return &Result[StatusResponse]{Data: out, Raw: raw}, nil
}

// Notify announces an upcoming redemption; with AutoDebit the processor executes it after the notice window.
func (c *Client) Notify(ctx context.Context, token string, body NotifyRequest) (json.RawMessage, error) {
	return c.call(ctx, token, http.MethodPost, "/subscriptions/v2/notify", body, "notify", nil)
}

// Redeem executes a previously notified redemption.
func (c *Client) Redeem(ctx context.Context, token, merchantOrderID string) (json.RawMessage, error) {
	return c.call(ctx, token, http.MethodPost, "/subscriptions/v2/redeem", redeemRequest{MerchantOrderID: merchantOrderID}, "redeem", nil)
}

// Cancel revokes a subscription at the processor.
func (c *Client) Cancel(ctx context.Context, token, merchantSubscriptionID string) (json.RawMessage, error) {
	path := "/subscriptions/v2/" + url.PathEscape(merchantSubscriptionID) + "/cancel"
	return c.call(ctx, token, http.MethodPost, path, struct{}{}, "cancel", nil)
}

func (c *Client) call(ctx context.Context, token, method, path string, body any, op string, out any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode "+op+" request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build "+op+" request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "O-Bearer "+token)

	return c.do(req, op, out)
}

func (c *Client) do(req *http.Request, op string, out any) (raw json.RawMessage, err error) {
	defer func() { c.metrics.IncProcessorCall(op, err) }()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRemoteAPI, err, "phonepe "+op+" request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeRemoteAPI, err, "read phonepe "+op+" response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, pkgerrors.New(
			pkgerrors.CodeRemoteAPI,
			fmt.Sprintf("phonepe %s returned %d", op, resp.StatusCode),
		).WithDetails(bodyDetails(data))
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(data) {
		return nil, pkgerrors.New(pkgerrors.CodeRemoteAPI, "phonepe "+op+" returned invalid json").WithDetails(string(data))
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeRemoteAPI, err, "decode phonepe "+op+" response")
		}
	}
	return json.RawMessage(data), nil
}

// bodyDetails forwards processor error bodies to operators as JSON when possible.
func bodyDetails(data []byte) any {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	return string(trimmed)
}
