package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/pediamatch/intake-service/internal/config"
)

const providerSendGrid = "sendgrid"

// SendGridClient sends plain-text email through the SendGrid v3 mail API.
type SendGridClient struct {
	apiKey string
	host   string
	from   *mail.Email
}

// NewSendGridClient builds a client sending as fromName <fromAddress>.
func NewSendGridClient(cfg config.SendGridConfig, fromName, fromAddress string) *SendGridClient {
	return &SendGridClient{
		apiKey: cfg.APIKey,
		host:   cfg.BaseURL,
		from:   mail.NewEmail(fromName, fromAddress),
	}
}

// Send delivers one message and returns the X-Message-Id header value.
func (s *SendGridClient) Send(ctx context.Context, to, subject, body string) (string, error) {
	if s.apiKey == "" {
		return "", &ProviderError{Provider: providerSendGrid, Err: errors.New("api key not configured")}
	}

	req := sendgrid.GetRequest(s.apiKey, "/v3/mail/send", s.host)
	req.Method = rest.Post
	req.Body = mail.GetRequestBody(s.buildMessage(to, subject, body))

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return "", &ProviderError{Provider: providerSendGrid, Err: err}
	}
	if res.StatusCode >= 300 {
		return "", &ProviderError{Provider: providerSendGrid, StatusCode: res.StatusCode, Body: res.Body}
	}
	return firstHeader(res.Headers, "X-Message-Id"), nil
}

func (s *SendGridClient) buildMessage(to, subject, body string) *mail.SGMailV3 {
	m := mail.NewV3Mail()
	m.SetFrom(s.from)
	m.Subject = subject

	p := mail.NewPersonalization()
	p.AddTos(mail.NewEmail("", to))
	m.AddPersonalizations(p)
	m.AddContent(mail.NewContent("text/plain", body))
	return m
}

func firstHeader(headers map[string][]string, key string) string {
	for k, v := range headers {
		if len(v) > 0 && strings.EqualFold(k, key) {
			return v[0]
		}
	}
	return ""
}
