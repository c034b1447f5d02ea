// Package gateway holds the outbound SMS and email provider clients.
package gateway

import (
	"context"
	"fmt"
)

// SmsGateway sends a text message and returns the provider message id.
type SmsGateway interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// EmailGateway sends a plain-text email and returns the provider message id.
type EmailGateway interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// ProviderError reports a transport, auth or API failure from a provider.
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
	default:
		return e.Provider + ": send failed"
	}
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
