package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pediamatch/intake-service/internal/config"
)

const providerTwilio = "twilio"

// TwilioClient sends SMS through the Twilio Messages REST resource.
type TwilioClient struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
}

// NewTwilioClient builds a client from config. A nil httpClient uses a
// client with a 10s timeout.
func NewTwilioClient(cfg config.TwilioConfig, httpClient *http.Client) *TwilioClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &TwilioClient{
		accountSID: cfg.AccountSID,
		authToken:  cfg.AuthToken,
		from:       cfg.FromNumber,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

type twilioMessage struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

// Send posts one message and returns its SID.
func (t *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	if t.accountSID == "" || t.authToken == "" || t.from == "" {
		return "", &ProviderError{Provider: providerTwilio, Err: errors.New("credentials not configured")}
	}

	form := url.Values{}
	form.Set("From", t.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := t.baseURL + "/2010-04-01/Accounts/" + url.PathEscape(t.accountSID) + "/Messages.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &ProviderError{Provider: providerTwilio, Err: err}
	}
	req.SetBasicAuth(t.accountSID, t.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	res, err := t.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: providerTwilio, Err: err}
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err != nil {
		return "", &ProviderError{Provider: providerTwilio, StatusCode: res.StatusCode, Err: err}
	}
	if res.StatusCode >= 300 {
		return "", &ProviderError{Provider: providerTwilio, StatusCode: res.StatusCode, Body: string(raw)}
	}

	var msg twilioMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", &ProviderError{Provider: providerTwilio, StatusCode: res.StatusCode, Body: string(raw), Err: err}
	}
	return msg.SID, nil
}
